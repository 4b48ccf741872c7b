// Package camera defines the frame sources the seat monitor reads from and the registry of
// camera models.
package camera

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
)

// SubtypeName identifies the camera API in logs and errors.
const SubtypeName = "camera"

var (
	// ErrSourceBusy is returned by Open when the device is already held by another session.
	ErrSourceBusy = errors.New("camera is in use by another session")
	// ErrEndOfStream is returned by Read when the source has no more frames.
	ErrEndOfStream = errors.New("camera has no more frames")
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("camera stream has been closed")
)

// A Source is a camera that can be opened for reading. Open acquires the underlying device; the
// returned Stream must be closed to release it.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// A Stream is an open camera. Read blocks until the next frame is available. Frames returned by
// Read are owned by the caller.
type Stream interface {
	Read(ctx context.Context) (image.Image, error)
	Close(ctx context.Context) error
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) (Stream, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Registry holds every registered camera model.
var Registry = resource.NewRegistry[Source](SubtypeName)

// RegisterModel registers a camera model. Models register themselves in init.
func RegisterModel(model string, reg resource.Registration[Source]) {
	Registry.Register(model, reg)
}

// FromConfig builds the configured camera. The result allows a single open stream at a time.
func FromConfig(ctx context.Context, cfg config.ComponentConfig, logger logging.Logger) (Source, error) {
	src, err := Registry.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return Exclusive(src), nil
}

// ReadImage opens src, reads one frame and closes it again. The stream is closed even when the
// read fails.
func ReadImage(ctx context.Context, src Source) (img image.Image, err error) {
	stream, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := stream.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return stream.Read(ctx)
}
