// Package fake implements cameras that need no hardware: a synthetic dining room scene and a
// still image read from disk.
package fake

import (
	"context"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/rimage"
)

// Model is the name of the synthetic camera model.
const Model = "fake"

const (
	initialWidth  = 1280
	initialHeight = 720
)

func init() {
	camera.RegisterModel(Model, resource.Registration[camera.Source]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (camera.Source, error) {
			conf, err := resource.NativeConfig[Config](attrs)
			if err != nil {
				return nil, err
			}
			return NewCamera(conf, logger), nil
		},
	})
}

// Config are the attributes of the fake camera.
type Config struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Frames limits how many frames a stream yields before reporting end of stream. Zero means
	// no limit.
	Frames int `json:"frames,omitempty"`
}

// Validate checks that the config attributes are valid for a fake camera.
func (conf *Config) Validate(path string) error {
	if conf.Width < 0 || conf.Height < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("got illegal negative dimensions for width and height (%d, %d)", conf.Width, conf.Height))
	}
	if conf.Frames < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("frames cannot be negative, got %d", conf.Frames))
	}
	return nil
}

// Camera renders a fixed scene with two chairs, one of them occupied.
type Camera struct {
	Width  int
	Height int
	Frames int
	logger logging.Logger
}

// NewCamera returns a new fake camera.
func NewCamera(conf *Config, logger logging.Logger) *Camera {
	width, height := conf.Width, conf.Height
	if width == 0 {
		width = initialWidth
	}
	if height == 0 {
		height = initialHeight
	}
	return &Camera{Width: width, Height: height, Frames: conf.Frames, logger: logger}
}

// Open starts a stream of synthetic frames.
func (c *Camera) Open(ctx context.Context) (camera.Stream, error) {
	frame := Scene(c.Width, c.Height)
	c.logger.Debugw("opened fake camera", "width", c.Width, "height", c.Height)
	return newStillStream(frame, c.Frames), nil
}

// Scene draws the fake camera's frame: a floor, a table and two chairs, with a person in the
// left chair.
func Scene(width, height int) image.Image {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.NRGBA{R: 214, G: 196, B: 170, A: 255})
	dc.Clear()

	w, h := float64(width), float64(height)
	dc.SetColor(color.NRGBA{R: 120, G: 80, B: 50, A: 255})
	dc.DrawRectangle(0.35*w, 0.45*h, 0.3*w, 0.15*h)
	dc.Fill()

	dc.SetColor(color.NRGBA{R: 90, G: 60, B: 40, A: 255})
	dc.DrawRectangle(0.15*w, 0.5*h, 0.12*w, 0.25*h)
	dc.DrawRectangle(0.73*w, 0.5*h, 0.12*w, 0.25*h)
	dc.Fill()

	dc.SetColor(color.NRGBA{R: 40, G: 70, B: 160, A: 255})
	dc.DrawEllipse(0.21*w, 0.42*h, 0.035*w, 0.06*h)
	dc.DrawRectangle(0.17*w, 0.48*h, 0.08*w, 0.2*h)
	dc.Fill()

	rimage.DrawString(dc, "fake camera", image.Pt(10, 10), rimage.Black, 18)
	return dc.Image()
}

// stillStream hands out copies of one frame.
type stillStream struct {
	frame  image.Image
	limit  int
	served int
	closed bool
}

func newStillStream(frame image.Image, limit int) *stillStream {
	return &stillStream{frame: frame, limit: limit}
}

func (s *stillStream) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, camera.ErrClosed
	}
	if s.limit > 0 && s.served >= s.limit {
		return nil, camera.ErrEndOfStream
	}
	s.served++
	return rimage.CloneToNRGBA(s.frame), nil
}

func (s *stillStream) Close(ctx context.Context) error {
	s.closed = true
	return nil
}
