package seating

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/ysay/zari-vision/rimage"
	"github.com/ysay/zari-vision/vision/objectdetection"
)

var (
	chairColor     = rimage.Blue
	personColor    = rimage.Green
	occupiedColor  = rimage.Red
	availableColor = color.NRGBA{G: 255, B: 255, A: 255}
)

// Annotate returns a copy of frame with chairs drawn in blue, persons in green and each chair's
// seat status written under it. When there are no chairs a notice is drawn instead. seats must
// be the result of resolving chairs, in the same order.
func Annotate(frame image.Image, chairs, persons []objectdetection.Detection, seats []Seat) image.Image {
	dc := gg.NewContextForImage(frame)
	for _, p := range persons {
		objectdetection.DrawDetection(dc, p, personColor, 12)
	}
	for i, c := range chairs {
		objectdetection.DrawDetection(dc, c, chairColor, 12)
		if i >= len(seats) {
			continue
		}
		statusColor := availableColor
		if seats[i].Occupied() {
			statusColor = occupiedColor
		}
		bb := c.BoundingBox()
		rimage.DrawString(dc, fmt.Sprintf("#%d %s", seats[i].ID, seats[i].Status), image.Pt(bb.Min.X, bb.Max.Y+4), statusColor, 16)
	}
	if len(chairs) == 0 {
		rimage.DrawString(dc, "No chair detected", image.Pt(20, 10), occupiedColor, 24)
	}
	return dc.Image()
}
