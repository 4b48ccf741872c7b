package objectdetection

import (
	"image"

	"github.com/samber/lo"
)

// DetectionJSON is the wire form of a detection: the bbox is [x1, y1, x2, y2] in pixels.
type DetectionJSON struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// Detection converts the wire form back to a Detection.
func (dj DetectionJSON) Detection() Detection {
	return NewDetection(image.Rect(dj.BBox[0], dj.BBox[1], dj.BBox[2], dj.BBox[3]), dj.Confidence, dj.Label)
}

// ToJSON converts detections to their wire form, keeping order. The result is never nil.
func ToJSON(dets []Detection) []DetectionJSON {
	return lo.Map(dets, func(d Detection, _ int) DetectionJSON {
		bb := d.BoundingBox()
		return DetectionJSON{
			Label:      d.Label(),
			Confidence: d.Score(),
			BBox:       [4]int{bb.Min.X, bb.Min.Y, bb.Max.X, bb.Max.Y},
		}
	})
}

// FromJSON converts wire detections to Detections, keeping order.
func FromJSON(in []DetectionJSON) []Detection {
	return lo.Map(in, func(dj DetectionJSON, _ int) Detection {
		return dj.Detection()
	})
}
