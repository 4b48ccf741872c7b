package objectdetection

import (
	"image"
	"sort"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// NewAreaFilter returns a function that filters out detections below a certain area.
func NewAreaFilter(area int) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.BoundingBox().Dx()*d.BoundingBox().Dy() >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewScoreFilter returns a function that filters out detections below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Score() >= conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewMaxDetectionsFilter returns a function that keeps at most n detections, in the order given.
// A non-positive n keeps everything.
func NewMaxDetectionsFilter(n int) Postprocessor {
	return func(in []Detection) []Detection {
		if n <= 0 || len(in) <= n {
			return in
		}
		return in[:n]
	}
}

// NewNMSFilter returns a function that performs per-label non-maximum suppression. Detections are
// visited from highest to lowest score and dropped when their IoU with an already kept detection
// of the same label exceeds iouThreshold. The result is sorted by descending score.
func NewNMSFilter(iouThreshold float64) Postprocessor {
	return func(in []Detection) []Detection {
		sorted := make([]Detection, len(in))
		copy(sorted, in)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Score() > sorted[j].Score()
		})
		out := make([]Detection, 0, len(sorted))
		for _, d := range sorted {
			suppressed := false
			for _, kept := range out {
				if kept.Label() == d.Label() && IoU(*kept.BoundingBox(), *d.BoundingBox()) > iouThreshold {
					suppressed = true
					break
				}
			}
			if !suppressed {
				out = append(out, d)
			}
		}
		return out
	}
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	interArea := inter.Dx() * inter.Dy()
	union := a.Dx()*a.Dy() + b.Dx()*b.Dy() - interArea
	if union <= 0 {
		return 0
	}
	return float64(interArea) / float64(union)
}
