// Package vision is the detector service: it runs an object detection backend on a frame and
// returns labeled, scored boxes in the frame's pixel space.
package vision

import (
	"context"
	"image"

	"go.opencensus.io/trace"

	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/vision/objectdetection"
)

// SubtypeName identifies the vision API in logs and errors.
const SubtypeName = "vision"

// Params are the per call detection settings.
type Params struct {
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxDetections       int
	// MinArea is the smallest box area kept, in square pixels. Zero keeps every box.
	MinArea int
}

// A Service finds objects in images. Implementations must be safe for concurrent use since
// every session calls the same service. Boxes are in the pixel space of the image passed in.
type Service interface {
	Detections(ctx context.Context, img image.Image, params Params) ([]objectdetection.Detection, error)
	Close(ctx context.Context) error
}

// Registry holds every registered detector model.
var Registry = resource.NewRegistry[Service](SubtypeName)

// RegisterModel registers a detector model. Models register themselves in init.
func RegisterModel(model string, reg resource.Registration[Service]) {
	Registry.Register(model, reg)
}

// FromConfig builds the configured detector, wrapped with local postprocessing when the config
// asks for it, and traced.
func FromConfig(ctx context.Context, cfg config.DetectorConfig, logger logging.Logger) (Service, error) {
	svc, err := Registry.New(ctx, cfg.ComponentConfig, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Postprocess {
		svc = WithPostprocessing(svc)
	}
	return &tracedService{Service: svc, model: cfg.Model}, nil
}

// ParamsFromConfig returns the streaming and snapshot detection settings.
func ParamsFromConfig(cfg config.DetectorConfig) (stream, snapshot Params) {
	stream = Params{
		ConfidenceThreshold: *cfg.ConfidenceThreshold,
		IoUThreshold:        *cfg.IoUThreshold,
		MaxDetections:       cfg.MaxDetections,
		MinArea:             cfg.MinArea,
	}
	snapshot = stream
	snapshot.ConfidenceThreshold = *cfg.SnapshotConfidenceThreshold
	return stream, snapshot
}

// Postprocessors returns the filters that apply params locally: minimum area when set, score
// threshold, per label non-max suppression and the detection cap, in that order.
func Postprocessors(params Params) []objectdetection.Postprocessor {
	var posts []objectdetection.Postprocessor
	if params.MinArea > 0 {
		posts = append(posts, objectdetection.NewAreaFilter(params.MinArea))
	}
	return append(posts,
		objectdetection.NewScoreFilter(params.ConfidenceThreshold),
		objectdetection.NewNMSFilter(params.IoUThreshold),
		objectdetection.NewMaxDetectionsFilter(params.MaxDetections),
	)
}

type postprocessingService struct {
	Service
}

// WithPostprocessing wraps svc so params are enforced on its output, for backends that return
// raw candidates.
func WithPostprocessing(svc Service) Service {
	return &postprocessingService{Service: svc}
}

func (ps *postprocessingService) Detections(
	ctx context.Context,
	img image.Image,
	params Params,
) ([]objectdetection.Detection, error) {
	det, err := objectdetection.Build(nil, func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		return ps.Service.Detections(ctx, img, params)
	}, Postprocessors(params)...)
	if err != nil {
		return nil, err
	}
	return det(ctx, img)
}

type tracedService struct {
	Service
	model string
}

func (ts *tracedService) Detections(
	ctx context.Context,
	img image.Image,
	params Params,
) ([]objectdetection.Detection, error) {
	ctx, span := trace.StartSpan(ctx, "service::vision::Detections")
	defer span.End()
	span.AddAttributes(
		trace.StringAttribute("model", ts.model),
		trace.Int64Attribute("width", int64(img.Bounds().Dx())),
		trace.Int64Attribute("height", int64(img.Bounds().Dy())),
	)
	dets, err := ts.Service.Detections(ctx, img, params)
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
		return nil, err
	}
	span.AddAttributes(trace.Int64Attribute("detections", int64(len(dets))))
	return dets, nil
}
