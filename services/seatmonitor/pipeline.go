package seatmonitor

import (
	"context"
	"image"

	"go.opencensus.io/trace"

	"github.com/ysay/zari-vision/rimage"
	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/vision/objectdetection"
	"github.com/ysay/zari-vision/vision/seating"
)

// Result is the outcome of one detection cycle. Frame is the resized frame the boxes refer to.
type Result struct {
	Frame      image.Image
	Detections []objectdetection.Detection
	Chairs     []objectdetection.Detection
	Persons    []objectdetection.Detection
	Seats      []seating.Seat
}

// SeatsFound reports whether at least one chair was detected.
func (r *Result) SeatsFound() bool {
	return len(r.Seats) > 0
}

// Pipeline turns a frame into seats: resize, detect, partition, resolve.
type Pipeline struct {
	detector vision.Service
	resolver *seating.Resolver
	width    int
	height   int
}

// NewPipeline returns a pipeline that resizes frames to width x height before detection.
func NewPipeline(detector vision.Service, resolver *seating.Resolver, width, height int) *Pipeline {
	return &Pipeline{detector: detector, resolver: resolver, width: width, height: height}
}

// Process runs one cycle on frame. Detector failures are reported as ErrDetector.
func (p *Pipeline) Process(ctx context.Context, frame image.Image, params vision.Params) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "seatmonitor::Pipeline::Process")
	defer span.End()

	resized := rimage.Resize(frame, p.width, p.height)
	dets, err := p.detector.Detections(ctx, resized, params)
	if err != nil {
		return nil, newKindError(ErrDetector, err)
	}
	chairs, persons := seating.Partition(dets)
	seats := p.resolver.Resolve(chairs, persons)
	span.AddAttributes(
		trace.Int64Attribute("chairs", int64(len(chairs))),
		trace.Int64Attribute("persons", int64(len(persons))),
	)
	return &Result{
		Frame:      resized,
		Detections: dets,
		Chairs:     chairs,
		Persons:    persons,
		Seats:      seats,
	}, nil
}
