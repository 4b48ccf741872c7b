package inject

import (
	"context"
	"image"

	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/vision/objectdetection"
)

// VisionService is an injected detector service.
type VisionService struct {
	vision.Service
	DetectionsFunc func(ctx context.Context, img image.Image, params vision.Params) ([]objectdetection.Detection, error)
	CloseFunc      func(ctx context.Context) error
}

// Detections calls the injected Detections or the real version.
func (vs *VisionService) Detections(
	ctx context.Context,
	img image.Image,
	params vision.Params,
) ([]objectdetection.Detection, error) {
	if vs.DetectionsFunc == nil {
		return vs.Service.Detections(ctx, img, params)
	}
	return vs.DetectionsFunc(ctx, img, params)
}

// Close calls the injected Close or the real version.
func (vs *VisionService) Close(ctx context.Context) error {
	if vs.CloseFunc == nil {
		if vs.Service == nil {
			return nil
		}
		return vs.Service.Close(ctx)
	}
	return vs.CloseFunc(ctx)
}
