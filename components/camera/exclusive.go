package camera

import (
	"context"
	"image"
	"sync"

	"go.uber.org/atomic"
)

type exclusiveSource struct {
	src  Source
	held atomic.Bool
}

// Exclusive wraps src so that a second Open fails with ErrSourceBusy until the first stream is
// closed. Wrapping an exclusive source again returns it unchanged.
func Exclusive(src Source) Source {
	if ex, ok := src.(*exclusiveSource); ok {
		return ex
	}
	return &exclusiveSource{src: src}
}

func (es *exclusiveSource) Open(ctx context.Context) (Stream, error) {
	if !es.held.CompareAndSwap(false, true) {
		return nil, ErrSourceBusy
	}
	stream, err := es.src.Open(ctx)
	if err != nil {
		es.held.Store(false)
		return nil, err
	}
	return &exclusiveStream{Stream: stream, release: func() { es.held.Store(false) }}, nil
}

type exclusiveStream struct {
	Stream
	closeOnce sync.Once
	closeErr  error
	release   func()
}

func (s *exclusiveStream) Read(ctx context.Context) (image.Image, error) {
	return s.Stream.Read(ctx)
}

// Close closes the underlying stream once and gives the device back.
func (s *exclusiveStream) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Stream.Close(ctx)
		s.release()
	})
	return s.closeErr
}
