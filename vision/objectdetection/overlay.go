package objectdetection

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/ysay/zari-vision/rimage"
)

// DrawDetection draws the detection's box in c and labels it with its class and score.
func DrawDetection(dc *gg.Context, d Detection, c color.Color, fontSize float64) {
	bb := *d.BoundingBox()
	rimage.DrawRectangleEmpty(dc, bb, c, 2)
	rimage.DrawLabel(dc, fmt.Sprintf("%s %.2f", d.Label(), d.Score()), bb, rimage.White, c, fontSize)
}
