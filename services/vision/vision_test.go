package vision_test

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/testutils/inject"
	"github.com/ysay/zari-vision/vision/objectdetection"
)

func rawCandidates() []objectdetection.Detection {
	return []objectdetection.Detection{
		objectdetection.NewDetection(image.Rect(0, 0, 100, 100), 0.6, "chair"),
		objectdetection.NewDetection(image.Rect(2, 2, 102, 102), 0.8, "chair"),
		objectdetection.NewDetection(image.Rect(300, 300, 340, 400), 0.1, "person"),
		objectdetection.NewDetection(image.Rect(200, 200, 260, 300), 0.5, "person"),
	}
}

func TestWithPostprocessing(t *testing.T) {
	var gotParams vision.Params
	raw := &inject.VisionService{
		DetectionsFunc: func(ctx context.Context, img image.Image, params vision.Params) ([]objectdetection.Detection, error) {
			gotParams = params
			return rawCandidates(), nil
		},
	}
	svc := vision.WithPostprocessing(raw)
	params := vision.Params{ConfidenceThreshold: 0.25, IoUThreshold: 0.45, MaxDetections: 10}
	dets, err := svc.Detections(context.Background(), image.NewGray(image.Rect(0, 0, 640, 640)), params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotParams, test.ShouldResemble, params)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.8)
	test.That(t, dets[1].Label(), test.ShouldEqual, "person")

	params.MaxDetections = 1
	dets, err = svc.Detections(context.Background(), image.NewGray(image.Rect(0, 0, 640, 640)), params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)

	raw.DetectionsFunc = func(ctx context.Context, img image.Image, params vision.Params) ([]objectdetection.Detection, error) {
		return nil, errors.New("inference failed")
	}
	_, err = svc.Detections(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)), params)
	test.That(t, err.Error(), test.ShouldEqual, "inference failed")
}

func TestFromConfig(t *testing.T) {
	const model = "test_raw"
	closed := false
	vision.RegisterModel(model, resource.Registration[vision.Service]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (vision.Service, error) {
			return &inject.VisionService{
				DetectionsFunc: func(ctx context.Context, img image.Image, params vision.Params) ([]objectdetection.Detection, error) {
					return rawCandidates(), nil
				},
				CloseFunc: func(ctx context.Context) error {
					closed = true
					return nil
				},
			}, nil
		},
	})
	defer vision.Registry.Deregister(model)

	cfg := config.Config{
		Camera:   config.ComponentConfig{Model: "fake"},
		Detector: config.DetectorConfig{ComponentConfig: config.ComponentConfig{Model: model}},
	}
	test.That(t, cfg.Ensure(), test.ShouldBeNil)
	streamParams, snapshotParams := vision.ParamsFromConfig(cfg.Detector)
	test.That(t, streamParams, test.ShouldResemble, vision.Params{ConfidenceThreshold: 0.25, IoUThreshold: 0.45, MaxDetections: 1000})
	test.That(t, snapshotParams.ConfidenceThreshold, test.ShouldEqual, 0.15)
	test.That(t, snapshotParams.IoUThreshold, test.ShouldEqual, 0.45)

	logger := logging.NewTestLogger(t)
	img := image.NewGray(image.Rect(0, 0, 640, 640))

	plain, err := vision.FromConfig(context.Background(), cfg.Detector, logger)
	test.That(t, err, test.ShouldBeNil)
	dets, err := plain.Detections(context.Background(), img, streamParams)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 4)

	cfg.Detector.Postprocess = true
	filtered, err := vision.FromConfig(context.Background(), cfg.Detector, logger)
	test.That(t, err, test.ShouldBeNil)
	dets, err = filtered.Detections(context.Background(), img, streamParams)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)

	// the 60x100 person box falls under the minimum area
	cfg.Detector.MinArea = 8000
	streamParams, snapshotParams = vision.ParamsFromConfig(cfg.Detector)
	test.That(t, streamParams.MinArea, test.ShouldEqual, 8000)
	test.That(t, snapshotParams.MinArea, test.ShouldEqual, 8000)
	dets, err = filtered.Detections(context.Background(), img, streamParams)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Label(), test.ShouldEqual, "chair")
	test.That(t, vision.Postprocessors(streamParams), test.ShouldHaveLength, 4)
	test.That(t, vision.Postprocessors(vision.Params{}), test.ShouldHaveLength, 3)

	test.That(t, filtered.Close(context.Background()), test.ShouldBeNil)
	test.That(t, closed, test.ShouldBeTrue)

	cfg.Detector.Model = "missing"
	_, err = vision.FromConfig(context.Background(), cfg.Detector, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
