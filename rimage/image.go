// Package rimage holds the image helpers shared by the camera, detector and annotation code.
package rimage

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// DefaultJPEGQuality is used for frames sent to a detector and for annotated snapshots.
const DefaultJPEGQuality = 90

// Resize scales img to exactly width x height with bilinear interpolation. The image is returned
// unchanged when it already has that geometry.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// EncodeJPEG writes img to w as a JPEG.
func EncodeJPEG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(DefaultJPEGQuality)); err != nil {
		return errors.Wrap(err, "failed to encode jpeg")
	}
	return nil
}

// JPEGBytes encodes img as a JPEG and returns the bytes.
func JPEGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes any format registered with the image package, honoring EXIF orientation.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}

// ReadImageFromFile opens and decodes the image at path.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image from %q", path)
	}
	return img, nil
}

// CloneToNRGBA returns a copy of img that can be drawn on without touching the original.
func CloneToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
