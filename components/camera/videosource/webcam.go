// Package videosource implements the webcam camera model on top of the pion/mediadevices drivers.
package videosource

import (
	"context"
	"image"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/rimage"
)

// ModelWebcam is the name of the webcam camera model.
const ModelWebcam = "webcam"

const (
	idealWidth  = 640
	idealHeight = 480
)

var initDrivers sync.Once

func init() {
	camera.RegisterModel(ModelWebcam, resource.Registration[camera.Source]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (camera.Source, error) {
			conf, err := resource.NativeConfig[WebcamConfig](attrs)
			if err != nil {
				return nil, err
			}
			return NewWebcam(conf, nil, logger), nil
		},
	})
}

// WebcamConfig is the native config attribute struct for webcams.
type WebcamConfig struct {
	Format    string  `json:"format,omitempty"`
	Path      string  `json:"video_path,omitempty"`
	Width     int     `json:"width_px,omitempty"`
	Height    int     `json:"height_px,omitempty"`
	FrameRate float32 `json:"frame_rate,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *WebcamConfig) Validate(path string) error {
	if c.Width < 0 || c.Height < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf(
			"got illegal negative dimensions for width_px and height_px (%d, %d) fields set for webcam camera",
			c.Width, c.Height))
	}
	if c.FrameRate < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf(
			"got illegal negative frame rate (%.2f) field set for webcam camera", c.FrameRate))
	}
	return nil
}

// Webcam opens a video capture device for every stream.
type Webcam struct {
	conf       WebcamConfig
	getDrivers func() []driverutils.Driver
	logger     logging.Logger
}

// NewWebcam returns a webcam. getDrivers lists the candidate devices and defaults to every video
// recorder known to mediadevices.
func NewWebcam(conf *WebcamConfig, getDrivers func() []driverutils.Driver, logger logging.Logger) *Webcam {
	if getDrivers == nil {
		getDrivers = func() []driverutils.Driver {
			initDrivers.Do(mediadevicescamera.Initialize)
			return driverutils.GetManager().Query(driverutils.FilterVideoRecorder())
		}
	}
	return &Webcam{conf: *conf, getDrivers: getDrivers, logger: logger}
}

// Open finds the configured device, opens its driver and starts recording.
func (w *Webcam) Open(ctx context.Context) (camera.Stream, error) {
	d, err := w.findDriver()
	if err != nil {
		return nil, err
	}
	recorder, ok := d.(driverutils.VideoRecorder)
	if !ok {
		return nil, errors.Errorf("driver %q cannot record video", d.Info().Label)
	}
	if err := d.Open(); err != nil {
		return nil, errors.Wrapf(err, "failed to open webcam %q", d.Info().Label)
	}
	media := SelectProperty(d.Properties(), w.conf)
	reader, err := recorder.VideoRecord(media)
	if err != nil {
		utils.UncheckedError(d.Close())
		return nil, errors.Wrapf(err, "failed to start recording from webcam %q", d.Info().Label)
	}
	w.logger.Debugw("opened webcam",
		"label", d.Info().Label,
		"width", media.Width,
		"height", media.Height,
		"format", media.FrameFormat,
	)
	return &webcamStream{driver: d, reader: reader}, nil
}

// findDriver returns the driver matching video_path, or the first idle driver when no path is
// configured.
func (w *Webcam) findDriver() (driverutils.Driver, error) {
	drivers := w.getDrivers()
	if len(drivers) == 0 {
		return nil, errors.New("found no webcams")
	}
	if w.conf.Path == "" {
		for _, d := range drivers {
			if d.Status() != driverutils.StateRunning {
				return d, nil
			}
		}
		return nil, camera.ErrSourceBusy
	}

	path := w.conf.Path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	base := filepath.Base(path)
	for _, d := range drivers {
		if !labelMatches(d.Info().Label, path, base) {
			continue
		}
		if d.Status() == driverutils.StateRunning {
			return nil, camera.ErrSourceBusy
		}
		return d, nil
	}
	return nil, errors.Errorf("found no webcam matching video_path %q", w.conf.Path)
}

func labelMatches(label, path, base string) bool {
	for _, part := range strings.Split(label, mediadevicescamera.LabelSeparator) {
		if part == path || part == base {
			return true
		}
	}
	return false
}

// SelectProperty picks the driver property closest to the configured resolution, restricted to
// the configured format when one is set. Width, height and frame rate from the config override
// the chosen property.
func SelectProperty(props []prop.Media, conf WebcamConfig) prop.Media {
	wantW, wantH := conf.Width, conf.Height
	if wantW == 0 {
		wantW = idealWidth
	}
	if wantH == 0 {
		wantH = idealHeight
	}

	best := prop.Media{}
	bestScore := math.MaxInt
	for _, p := range props {
		if conf.Format != "" && p.FrameFormat != frame.Format(conf.Format) {
			continue
		}
		score := abs(p.Width-wantW) + abs(p.Height-wantH)
		if score < bestScore {
			best, bestScore = p, score
		}
	}
	if conf.Width > 0 {
		best.Width = conf.Width
	}
	if conf.Height > 0 {
		best.Height = conf.Height
	}
	if conf.FrameRate > 0 {
		best.FrameRate = conf.FrameRate
	}
	if best.Width == 0 || best.Height == 0 {
		best.Width, best.Height = wantW, wantH
	}
	if best.FrameFormat == "" && conf.Format != "" {
		best.FrameFormat = frame.Format(conf.Format)
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type webcamStream struct {
	driver driverutils.Driver
	reader video.Reader

	mu     sync.Mutex
	closed bool
}

// Read returns a copy of the next frame. The driver's buffer is released before returning.
func (s *webcamStream) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, camera.ErrClosed
	}
	img, release, err := s.reader.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, camera.ErrEndOfStream
		}
		return nil, err
	}
	return rimage.CloneToNRGBA(img), nil
}

// Close closes the driver, which stops recording and frees the device.
func (s *webcamStream) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.driver.Close()
}
