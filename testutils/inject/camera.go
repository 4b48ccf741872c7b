package inject

import (
	"context"
	"image"

	"github.com/ysay/zari-vision/components/camera"
)

// FrameSource is an injected camera source.
type FrameSource struct {
	camera.Source
	OpenFunc func(ctx context.Context) (camera.Stream, error)
}

// Open calls the injected Open or the real version.
func (s *FrameSource) Open(ctx context.Context) (camera.Stream, error) {
	if s.OpenFunc == nil {
		return s.Source.Open(ctx)
	}
	return s.OpenFunc(ctx)
}

// Stream is an injected open camera stream.
type Stream struct {
	camera.Stream
	ReadFunc  func(ctx context.Context) (image.Image, error)
	CloseFunc func(ctx context.Context) error
}

// Read calls the injected Read or the real version.
func (s *Stream) Read(ctx context.Context) (image.Image, error) {
	if s.ReadFunc == nil {
		return s.Stream.Read(ctx)
	}
	return s.ReadFunc(ctx)
}

// Close calls the injected Close or the real version.
func (s *Stream) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.Stream == nil {
			return nil
		}
		return s.Stream.Close(ctx)
	}
	return s.CloseFunc(ctx)
}
