// Package fake implements a detector that returns detections listed in its config. It pairs with
// the fake camera for demos and end to end tests without a model server.
package fake

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/vision/objectdetection"
)

// Model is the name of the static detector model.
const Model = "fake"

func init() {
	vision.RegisterModel(Model, resource.Registration[vision.Service]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (vision.Service, error) {
			conf, err := resource.NativeConfig[Config](attrs)
			if err != nil {
				return nil, err
			}
			return NewDetector(conf), nil
		},
	})
}

// Config lists the detections to return. Width and Height are the geometry the boxes are given
// in; zero means they are already in frame pixels.
type Config struct {
	Detections []objectdetection.DetectionJSON `json:"detections"`
	Width      int                             `json:"width,omitempty"`
	Height     int                             `json:"height,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if (c.Width == 0) != (c.Height == 0) {
		return utils.NewConfigValidationError(path, errors.New("width and height must be set together"))
	}
	for i, d := range c.Detections {
		if d.Confidence < 0 || d.Confidence > 1 {
			return utils.NewConfigValidationError(path,
				errors.Errorf("detection %d confidence must be in [0, 1], got %v", i, d.Confidence))
		}
	}
	return nil
}

// Detector returns the same detections for every frame, filtered by the call's params.
type Detector struct {
	dets []objectdetection.Detection
	size image.Point
}

// NewDetector returns a static detector.
func NewDetector(conf *Config) *Detector {
	return &Detector{dets: objectdetection.FromJSON(conf.Detections), size: image.Pt(conf.Width, conf.Height)}
}

// Detections returns the configured detections in the pixel space of img.
func (d *Detector) Detections(
	ctx context.Context,
	img image.Image,
	params vision.Params,
) ([]objectdetection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dets := d.dets
	if d.size.X > 0 {
		var err error
		dets, err = objectdetection.ScaleDetections(dets, d.size, image.Pt(img.Bounds().Dx(), img.Bounds().Dy()))
		if err != nil {
			return nil, err
		}
	}
	for _, f := range vision.Postprocessors(params) {
		dets = f(dets)
	}
	return dets, nil
}

// Close is a no-op.
func (d *Detector) Close(ctx context.Context) error {
	return nil
}
