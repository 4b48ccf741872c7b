// Package seatmonitor runs the seat occupancy pipeline against a camera, either once per
// request or continuously for a streaming session.
package seatmonitor

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/vision/seating"
)

// An Emitter delivers payloads to a session's client. Emit fails once the client is gone.
type Emitter interface {
	Emit(ctx context.Context, payload interface{}) error
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(ctx context.Context, payload interface{}) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, payload interface{}) error {
	return f(ctx, payload)
}

// Options configure a Monitor.
type Options struct {
	StreamParams   vision.Params
	SnapshotParams vision.Params
	FrameWidth     int
	FrameHeight    int
	MarginRatio    float64
	// Interval is the pause between the end of one cycle and the start of the next.
	Interval time.Duration
	Payload  string
}

// OptionsFromConfig derives monitor options from an ensured config.
func OptionsFromConfig(cfg *config.Config) Options {
	stream, snapshot := vision.ParamsFromConfig(cfg.Detector)
	return Options{
		StreamParams:   stream,
		SnapshotParams: snapshot,
		FrameWidth:     cfg.Frame.Width,
		FrameHeight:    cfg.Frame.Height,
		MarginRatio:    *cfg.Occupancy.MarginRatio,
		Interval:       time.Duration(cfg.Stream.Interval),
		Payload:        cfg.Stream.Payload,
	}
}

// A Monitor serves seat snapshots and streaming sessions from one camera and one detector.
type Monitor struct {
	source   camera.Source
	pipeline *Pipeline
	opts     Options
	clock    clock.Clock
	metrics  *Metrics
	logger   logging.Logger
}

// New returns a Monitor. A nil clk uses the wall clock and nil metrics are created unregistered.
func New(
	source camera.Source,
	detector vision.Service,
	opts Options,
	clk clock.Clock,
	metrics *Metrics,
	logger logging.Logger,
) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	resolver := seating.NewResolver(opts.MarginRatio, opts.FrameWidth, opts.FrameHeight)
	return &Monitor{
		source:   source,
		pipeline: NewPipeline(detector, resolver, opts.FrameWidth, opts.FrameHeight),
		opts:     opts,
		clock:    clk,
		metrics:  metrics,
		logger:   logger,
	}
}

// Metrics returns the monitor's collectors.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Snapshot acquires the camera, reads one frame, releases the camera and runs the pipeline on
// the frame with the snapshot params.
func (m *Monitor) Snapshot(ctx context.Context) (res *Result, err error) {
	ctx, span := trace.StartSpan(ctx, "seatmonitor::Monitor::Snapshot")
	defer span.End()
	defer func() {
		m.metrics.recordSnapshot(err)
	}()

	frame, err := m.capture(ctx)
	if err != nil {
		m.logger.Warnw("snapshot capture failed", "error", err)
		return nil, err
	}
	res, err = m.pipeline.Process(ctx, frame, m.opts.SnapshotParams)
	if err != nil {
		m.logger.Errorw("snapshot detection failed", "error", err)
		return nil, err
	}
	m.logger.Infow("snapshot",
		"seats_found", res.SeatsFound(),
		"seats", len(res.Seats),
		"occupied", seating.CountOccupied(res.Seats),
	)
	return res, nil
}

// AnnotatedSnapshot takes a snapshot and renders its boxes and seat statuses onto the frame.
func (m *Monitor) AnnotatedSnapshot(ctx context.Context) (image.Image, *Result, error) {
	res, err := m.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return seating.Annotate(res.Frame, res.Chairs, res.Persons, res.Seats), res, nil
}

func (m *Monitor) capture(ctx context.Context) (frame image.Image, err error) {
	stream, err := m.source.Open(ctx)
	if err != nil {
		return nil, newKindError(ErrSourceUnavailable, err)
	}
	defer func() {
		if closeErr := stream.Close(ctx); closeErr != nil {
			err = multierr.Combine(err, newKindError(ErrSourceRead, errors.Wrap(closeErr, "release camera")))
			frame = nil
		}
	}()
	frame, err = stream.Read(ctx)
	if err != nil {
		return nil, newKindError(ErrSourceRead, err)
	}
	return frame, nil
}

// Stream runs a session: it holds the camera for the session's lifetime and emits one payload
// per cycle until ctx is done, the client goes away, or a cycle fails. The camera is released
// exactly once on every path. A session that ends because ctx is done returns nil.
func (m *Monitor) Stream(ctx context.Context, out Emitter) (err error) {
	logger := m.logger.Sublogger("session").WithFields("session_id", uuid.NewString())

	stream, err := m.source.Open(ctx)
	if err != nil {
		m.metrics.sessionRejected()
		logger.Warnw("cannot acquire camera", "error", err)
		return newKindError(ErrSourceUnavailable, err)
	}
	m.metrics.sessionStarted()
	logger.Info("session started")
	defer func() {
		m.metrics.sessionEnded()
		if closeErr := stream.Close(context.Background()); closeErr != nil {
			err = multierr.Combine(err, errors.Wrap(closeErr, "release camera"))
		}
		if err != nil && !errors.Is(err, ErrClientGone) {
			logger.Errorw("session ended", "error", err)
		} else {
			logger.Infow("session ended", "error", err)
		}
	}()

	for cycle := 0; ; cycle++ {
		if ctx.Err() != nil {
			return nil
		}
		if cycleErr := m.cycle(ctx, stream, out, logger, cycle); cycleErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return cycleErr
		}
		if !m.wait(ctx) {
			return nil
		}
	}
}

func (m *Monitor) cycle(
	ctx context.Context,
	stream camera.Stream,
	out Emitter,
	logger logging.Logger,
	cycle int,
) (err error) {
	ctx, span := trace.StartSpan(ctx, "seatmonitor::Monitor::cycle")
	defer span.End()
	start := m.clock.Now()
	occupied := 0
	defer func() {
		m.metrics.recordCycle(err, m.clock.Since(start).Seconds(), occupied)
	}()

	frame, err := stream.Read(ctx)
	if err != nil {
		return newKindError(ErrSourceRead, err)
	}
	res, err := m.pipeline.Process(ctx, frame, m.opts.StreamParams)
	if err != nil {
		return err
	}
	occupied = seating.CountOccupied(res.Seats)
	if err := out.Emit(ctx, Payload(m.opts.Payload, res)); err != nil {
		return newKindError(ErrClientGone, err)
	}
	logger.Debugw("cycle",
		"cycle", cycle,
		"detections", len(res.Detections),
		"seats_found", res.SeatsFound(),
		"occupied", occupied,
	)
	return nil
}

// wait blocks for the pacing interval. It returns false when ctx is done first.
func (m *Monitor) wait(ctx context.Context) bool {
	if m.opts.Interval <= 0 {
		return ctx.Err() == nil
	}
	timer := m.clock.Timer(m.opts.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
