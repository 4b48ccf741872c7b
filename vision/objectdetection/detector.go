package objectdetection

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// Detector returns the detections found in an image.
type Detector func(context.Context, image.Image) ([]Detection, error)

// Preprocessor transforms an image before it reaches the Detector.
type Preprocessor func(image.Image) image.Image

// Build zips up a preprocessor, a detector and any number of postprocessors into one Detector.
// The preprocessor and postprocessors are optional.
func Build(prep Preprocessor, det Detector, posts ...Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("object detection pipeline must have a Detector")
	}
	if prep == nil {
		prep = func(img image.Image) image.Image { return img }
	}
	filters := make([]Postprocessor, 0, len(posts))
	for _, p := range posts {
		if p != nil {
			filters = append(filters, p)
		}
	}
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		dets, err := det(ctx, prep(img))
		if err != nil {
			return nil, err
		}
		for _, f := range filters {
			dets = f(dets)
		}
		return dets, nil
	}, nil
}
