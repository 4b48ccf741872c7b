package videosource

import (
	"context"
	"image"
	"io"
	"testing"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/logging"
)

type fakeDriver struct {
	label    string
	status   driverutils.State
	props    []prop.Media
	recorded prop.Media
	frames   int
	releases int
	closes   int
}

func (d *fakeDriver) Open() error {
	d.status = driverutils.StateOpened
	return nil
}

func (d *fakeDriver) Close() error {
	d.closes++
	d.status = driverutils.StateClosed
	return nil
}

func (d *fakeDriver) Properties() []prop.Media { return d.props }
func (d *fakeDriver) ID() string               { return d.label }
func (d *fakeDriver) Info() driverutils.Info   { return driverutils.Info{Label: d.label} }
func (d *fakeDriver) Status() driverutils.State {
	return d.status
}

func (d *fakeDriver) VideoRecord(p prop.Media) (video.Reader, error) {
	d.recorded = p
	d.status = driverutils.StateRunning
	served := 0
	return video.ReaderFunc(func() (image.Image, func(), error) {
		if served >= d.frames {
			return nil, func() {}, io.EOF
		}
		served++
		return image.NewRGBA(image.Rect(0, 0, p.Width, p.Height)), func() { d.releases++ }, nil
	}), nil
}

func TestWebcamOpenReadClose(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{
		label:  "video0;usb-cam",
		status: driverutils.StateClosed,
		props: []prop.Media{
			{Video: prop.Video{Width: 1920, Height: 1080, FrameFormat: frame.FormatMJPEG}},
			{Video: prop.Video{Width: 640, Height: 480, FrameFormat: frame.FormatYUY2}},
		},
		frames: 1,
	}
	cam := NewWebcam(&WebcamConfig{Path: "/dev/video0"}, func() []driverutils.Driver {
		return []driverutils.Driver{d}
	}, logging.NewTestLogger(t))

	stream, err := cam.Open(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.recorded.Width, test.ShouldEqual, 640)

	// a second session cannot take a running device
	_, err = cam.Open(ctx)
	test.That(t, errors.Is(err, camera.ErrSourceBusy), test.ShouldBeTrue)

	img, err := stream.Read(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 640, 480))
	test.That(t, d.releases, test.ShouldEqual, 1)

	_, err = stream.Read(ctx)
	test.That(t, errors.Is(err, camera.ErrEndOfStream), test.ShouldBeTrue)

	test.That(t, stream.Close(ctx), test.ShouldBeNil)
	test.That(t, stream.Close(ctx), test.ShouldBeNil)
	test.That(t, d.closes, test.ShouldEqual, 1)
	_, err = stream.Read(ctx)
	test.That(t, errors.Is(err, camera.ErrClosed), test.ShouldBeTrue)
}

func TestWebcamFindDriver(t *testing.T) {
	logger := logging.NewTestLogger(t)
	busy := &fakeDriver{label: "video0", status: driverutils.StateRunning}
	idle := &fakeDriver{label: "video1", status: driverutils.StateClosed}
	drivers := func() []driverutils.Driver { return []driverutils.Driver{busy, idle} }

	d, err := NewWebcam(&WebcamConfig{}, drivers, logger).findDriver()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Info().Label, test.ShouldEqual, "video1")

	_, err = NewWebcam(&WebcamConfig{Path: "video0"}, drivers, logger).findDriver()
	test.That(t, errors.Is(err, camera.ErrSourceBusy), test.ShouldBeTrue)

	_, err = NewWebcam(&WebcamConfig{Path: "video9"}, drivers, logger).findDriver()
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewWebcam(&WebcamConfig{}, func() []driverutils.Driver { return nil }, logger).findDriver()
	test.That(t, err.Error(), test.ShouldContainSubstring, "found no webcams")
}

func TestSelectProperty(t *testing.T) {
	props := []prop.Media{
		{Video: prop.Video{Width: 1280, Height: 720, FrameFormat: frame.FormatMJPEG}},
		{Video: prop.Video{Width: 640, Height: 480, FrameFormat: frame.FormatMJPEG}},
		{Video: prop.Video{Width: 640, Height: 480, FrameFormat: frame.FormatYUY2}},
	}
	p := SelectProperty(props, WebcamConfig{})
	test.That(t, p.Width, test.ShouldEqual, 640)

	p = SelectProperty(props, WebcamConfig{Width: 1280, Height: 720, FrameRate: 15})
	test.That(t, p.Height, test.ShouldEqual, 720)
	test.That(t, p.FrameRate, test.ShouldEqual, float32(15))

	p = SelectProperty(props, WebcamConfig{Format: string(frame.FormatYUY2)})
	test.That(t, p.FrameFormat, test.ShouldEqual, frame.FormatYUY2)

	p = SelectProperty(nil, WebcamConfig{Format: string(frame.FormatMJPEG)})
	test.That(t, p.Width, test.ShouldEqual, idealWidth)
	test.That(t, p.FrameFormat, test.ShouldEqual, frame.FormatMJPEG)
}

func TestWebcamConfigValidate(t *testing.T) {
	test.That(t, (&WebcamConfig{Width: -1}).Validate("attributes"), test.ShouldNotBeNil)
	test.That(t, (&WebcamConfig{FrameRate: -1}).Validate("attributes"), test.ShouldNotBeNil)
	test.That(t, (&WebcamConfig{Width: 640, Height: 480}).Validate("attributes"), test.ShouldBeNil)
}
