package objectdetection

import (
	"image"

	"github.com/pkg/errors"
)

// ScaleDetections maps detections found in an image of size from onto an image of size to.
// Boxes are scaled per axis and truncated to integer pixels.
func ScaleDetections(dets []Detection, from, to image.Point) ([]Detection, error) {
	if from.X <= 0 || from.Y <= 0 {
		return nil, errors.Errorf("cannot scale detections from empty geometry %v", from)
	}
	if from == to {
		return dets, nil
	}
	sx := float64(to.X) / float64(from.X)
	sy := float64(to.Y) / float64(from.Y)
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		bb := d.BoundingBox()
		scaled := image.Rect(
			int(float64(bb.Min.X)*sx), int(float64(bb.Min.Y)*sy),
			int(float64(bb.Max.X)*sx), int(float64(bb.Max.Y)*sy),
		)
		out = append(out, NewDetection(scaled, d.Score(), d.Label()))
	}
	return out, nil
}
