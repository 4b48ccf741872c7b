// Package ffmpeg provides a camera that reads any input ffmpeg understands: video files, RTSP
// and HTTP streams, or capture devices.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/rimage"
)

// Model is the name of the ffmpeg camera model.
const Model = "ffmpeg"

const defaultOpenTimeout = 10 * time.Second

func init() {
	camera.RegisterModel(Model, resource.Registration[camera.Source]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (camera.Source, error) {
			conf, err := resource.NativeConfig[Config](attrs)
			if err != nil {
				return nil, err
			}
			return NewFFmpegCamera(conf, logger)
		},
	})
}

// Config is the attribute struct for ffmpeg cameras.
type Config struct {
	Source       string                 `json:"source"`
	InputKWArgs  map[string]interface{} `json:"input_kw_args,omitempty"`
	OutputKWArgs map[string]interface{} `json:"output_kw_args,omitempty"`
	// OpenTimeout bounds how long Open waits for the first frame. Zero uses 10s.
	OpenTimeout time.Duration `json:"open_timeout,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.Source == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "source")
	}
	if c.OpenTimeout < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("open_timeout cannot be negative, got %s", c.OpenTimeout))
	}
	return nil
}

// Camera starts one ffmpeg process per opened stream.
type Camera struct {
	conf   Config
	logger logging.Logger
}

// NewFFmpegCamera returns a camera for the configured input. ffmpeg must be on the PATH.
func NewFFmpegCamera(conf *Config, logger logging.Logger) (*Camera, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}
	return &Camera{conf: *conf, logger: logger}, nil
}

// OutputArgs returns the ffmpeg output arguments: the configured ones plus an MJPEG pipe.
func (c *Camera) OutputArgs() ffmpeg.KwArgs {
	outArgs := make(ffmpeg.KwArgs, len(c.conf.OutputKWArgs)+2)
	for key, value := range c.conf.OutputKWArgs {
		outArgs[key] = value
	}
	outArgs["format"] = "image2pipe"
	outArgs["vcodec"] = "mjpeg"
	return outArgs
}

// Open launches ffmpeg and starts decoding its output in the background. It returns once the
// first frame is decoded; an input ffmpeg cannot open fails here rather than on Read.
func (c *Camera) Open(ctx context.Context) (camera.Stream, error) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	in, out := io.Pipe()
	s := &stream{cancel: cancel, updated: make(chan struct{}), logger: c.logger}

	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		st := ffmpeg.Input(c.conf.Source, ffmpeg.KwArgs(c.conf.InputKWArgs)).
			Output("pipe:", c.OutputArgs()).
			WithOutput(out)
		st.Context = cancelCtx
		err := st.Run()
		if err != nil && cancelCtx.Err() == nil {
			s.fail(errors.Wrap(err, "ffmpeg exited"))
		}
		utils.UncheckedError(out.CloseWithError(io.EOF))
	}, s.activeBackgroundWorkers.Done)

	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		s.decode(bufio.NewReader(in))
		utils.UncheckedError(in.Close())
	}, s.activeBackgroundWorkers.Done)

	timeout := c.conf.OpenTimeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	readyCtx, readyCancel := context.WithTimeout(ctx, timeout)
	defer readyCancel()
	if err := s.ready(readyCtx); err != nil {
		utils.UncheckedError(s.Close(ctx))
		return nil, errors.Wrapf(err, "could not open %q", c.conf.Source)
	}
	c.logger.Debugw("started ffmpeg", "source", c.conf.Source)
	return s, nil
}

// stream keeps the most recent decoded frame. Read waits for a frame newer than the last one it
// returned so a slow reader skips frames instead of lagging behind a live source.
type stream struct {
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
	logger                  logging.Logger

	mu      sync.Mutex
	latest  image.Image
	seq     uint64
	readSeq uint64
	err     error
	updated chan struct{}
	closed  bool
}

func (s *stream) decode(r *bufio.Reader) {
	for {
		data, err := nextJPEG(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				s.fail(camera.ErrEndOfStream)
			} else {
				s.fail(err)
			}
			return
		}
		img, err := rimage.DecodeImage(bytes.NewReader(data))
		if err != nil {
			s.logger.Debugw("skipping undecodable frame", "error", err)
			continue
		}
		s.publish(img)
	}
}

func (s *stream) publish(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = img
	s.seq++
	close(s.updated)
	s.updated = make(chan struct{})
}

// fail records the first terminal error.
func (s *stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = err
	close(s.updated)
	s.updated = make(chan struct{})
}

// ready waits until a frame has been decoded or the stream has failed.
func (s *stream) ready(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.seq > 0 {
			s.mu.Unlock()
			return nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return err
		}
		updated := s.updated
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updated:
		}
	}
}

func (s *stream) Read(ctx context.Context) (image.Image, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, camera.ErrClosed
		}
		if s.seq > s.readSeq {
			s.readSeq = s.seq
			img := s.latest
			s.mu.Unlock()
			return img, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		updated := s.updated
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-updated:
		}
	}
}

// Close stops ffmpeg and waits for the background workers.
func (s *stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.activeBackgroundWorkers.Wait()
	return nil
}

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// nextJPEG returns the bytes of the next JPEG image in r, from its SOI marker through its EOI
// marker. Marker segments are skipped by length and entropy coded data is scanned for the
// next marker, so bytes inside headers or scans are never mistaken for EOI.
func nextJPEG(r *bufio.Reader) ([]byte, error) {
	if err := seekSOI(r); err != nil {
		return nil, err
	}
	buf := []byte{0xFF, markerSOI}
	pending := -1
	for {
		marker := pending
		pending = -1
		if marker < 0 {
			m, err := readMarker(r)
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			marker = int(m)
		}
		buf = append(buf, 0xFF, byte(marker))
		switch {
		case marker == markerEOI:
			return buf, nil
		case marker == markerTEM, marker >= markerRST0 && marker <= markerRST7:
			continue
		}

		var length [2]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			return nil, unexpectedEOF(err)
		}
		segLen := int(length[0])<<8 | int(length[1])
		if segLen < 2 {
			return nil, errors.Errorf("invalid jpeg segment length %d", segLen)
		}
		segment := make([]byte, segLen-2)
		if _, err := io.ReadFull(r, segment); err != nil {
			return nil, unexpectedEOF(err)
		}
		buf = append(buf, length[:]...)
		buf = append(buf, segment...)
		if marker != markerSOS {
			continue
		}

		// entropy coded data runs until a marker that is not a stuffed byte or a restart
		for pending < 0 {
			b, err := r.ReadByte()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			if b != 0xFF {
				buf = append(buf, b)
				continue
			}
			next, err := r.ReadByte()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			switch {
			case next == 0x00, next >= markerRST0 && next <= markerRST7:
				buf = append(buf, b, next)
			case next == 0xFF:
				if err := r.UnreadByte(); err != nil {
					return nil, err
				}
			default:
				pending = int(next)
			}
		}
	}
}

// seekSOI discards bytes up to and including the next SOI marker.
func seekSOI(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		next, err := r.ReadByte()
		if err != nil {
			return err
		}
		if next == markerSOI {
			return nil
		}
		if err := r.UnreadByte(); err != nil {
			return err
		}
	}
}

// readMarker reads a marker, skipping fill bytes.
func readMarker(r *bufio.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, errors.Errorf("expected jpeg marker, got 0x%02x", b)
	}
	for {
		m, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if m != 0xFF {
			return m, nil
		}
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
