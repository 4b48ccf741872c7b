package seating

import (
	"image"
	"math"
	"strconv"

	"github.com/ysay/zari-vision/vision/objectdetection"
)

// DefaultMarginRatio is the fraction of a chair's width and height added on each side before
// testing whether a person is sitting in it.
const DefaultMarginRatio = 0.1

// A Resolver decides which chairs are occupied. It holds no state between calls.
type Resolver struct {
	// MarginRatio expands each chair box per axis. Negative values are treated as zero.
	MarginRatio float64
	// FrameWidth and FrameHeight normalize seat coordinates.
	FrameWidth  int
	FrameHeight int
}

// NewResolver returns a Resolver for frames of the given size.
func NewResolver(marginRatio float64, frameWidth, frameHeight int) *Resolver {
	return &Resolver{MarginRatio: marginRatio, FrameWidth: frameWidth, FrameHeight: frameHeight}
}

// Resolve returns one seat per chair, in chair order. A chair is occupied when the center of any
// person lies inside its expanded box, boundaries included. A person may occupy several chairs.
// No chairs yields an empty, non-nil list.
func (r *Resolver) Resolve(chairs, persons []objectdetection.Detection) []Seat {
	centers := make([]image.Point, 0, len(persons))
	for _, p := range persons {
		centers = append(centers, Center(*p.BoundingBox()))
	}

	seats := make([]Seat, 0, len(chairs))
	for i, c := range chairs {
		box := *c.BoundingBox()
		expanded := r.Expand(box)
		status := StatusAvailable
		for _, pt := range centers {
			if containsInclusive(expanded, pt) {
				status = StatusOccupied
				break
			}
		}
		seats = append(seats, Seat{
			ID:     i + 1,
			Row:    r.normalize(float64(box.Min.Y+box.Max.Y)/2, r.FrameHeight),
			Col:    r.normalize(float64(box.Min.X+box.Max.X)/2, r.FrameWidth),
			Status: status,
		})
	}
	return seats
}

// Margin returns the per-axis expansion for a chair box, truncated to whole pixels.
func (r *Resolver) Margin(box image.Rectangle) image.Point {
	ratio := math.Max(r.MarginRatio, 0)
	return image.Pt(int(ratio*float64(box.Dx())), int(ratio*float64(box.Dy())))
}

// Expand grows box by its margin on all four sides.
func (r *Resolver) Expand(box image.Rectangle) image.Rectangle {
	m := r.Margin(box)
	return image.Rectangle{Min: box.Min.Sub(m), Max: box.Max.Add(m)}
}

// Center returns the floored integer center of a box.
func Center(box image.Rectangle) image.Point {
	return image.Pt(floorDiv2(box.Min.X+box.Max.X), floorDiv2(box.Min.Y+box.Max.Y))
}

func (r *Resolver) normalize(v float64, dim int) float64 {
	if dim <= 0 {
		return 0
	}
	return roundTo3(v / float64(dim))
}

// image.Rectangle.In is half-open; seats count the far edges too.
func containsInclusive(r image.Rectangle, p image.Point) bool {
	return r.Min.X <= p.X && p.X <= r.Max.X && r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

func floorDiv2(v int) int {
	if v < 0 && v%2 != 0 {
		return v/2 - 1
	}
	return v / 2
}

// roundTo3 rounds the exact binary value of v to three decimals; 0.0125 is stored just above
// the tie and rounds up.
func roundTo3(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return v
	}
	return r
}
