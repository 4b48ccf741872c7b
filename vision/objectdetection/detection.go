// Package objectdetection defines the detection type produced by detectors and the functional
// pipeline (preprocess, detect, postprocess) used to build them.
package objectdetection

import (
	"fmt"
	"image"
)

// Detection is a labeled, scored bounding box in the pixel space of the image it was found in.
type Detection interface {
	BoundingBox() *image.Rectangle
	Score() float64
	Label() string
}

// NewDetection creates a simple 2D detection.
func NewDetection(boundingBox image.Rectangle, score float64, label string) Detection {
	return &detection2D{boundingBox, score, label}
}

// detection2D is a bounding box, a score and a label.
type detection2D struct {
	boundingBox image.Rectangle
	score       float64
	label       string
}

// BoundingBox returns a copy of the detection's bounding box.
func (d *detection2D) BoundingBox() *image.Rectangle {
	bb := d.boundingBox
	return &bb
}

// Score returns the confidence of the detection.
func (d *detection2D) Score() float64 {
	return d.score
}

// Label returns the class of the detection.
func (d *detection2D) Label() string {
	return d.label
}

func (d *detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: %v", d.label, d.score, d.boundingBox)
}
