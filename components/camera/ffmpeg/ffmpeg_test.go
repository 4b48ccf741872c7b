package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/rimage"
)

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := rimage.JPEGBytes(image.NewRGBA(image.Rect(0, 0, w, h)))
	test.That(t, err, test.ShouldBeNil)
	return data
}

func TestNextJPEG(t *testing.T) {
	first := jpegFrame(t, 16, 16)
	second := jpegFrame(t, 32, 8)
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xFF, 0x01})
	buf.Write(first)
	buf.Write(second)
	buf.Write(second[:len(second)/2])

	r := bufio.NewReader(&buf)
	got, err := nextJPEG(r)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, first)

	got, err = nextJPEG(r)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, second)

	_, err = nextJPEG(r)
	test.That(t, errors.Is(err, io.ErrUnexpectedEOF), test.ShouldBeTrue)
}

func TestStreamDecode(t *testing.T) {
	logger := logging.NewTestLogger(t)
	var buf bytes.Buffer
	buf.Write(jpegFrame(t, 16, 16))
	buf.Write(jpegFrame(t, 32, 8))

	s := &stream{cancel: func() {}, updated: make(chan struct{}), logger: logger}
	s.decode(bufio.NewReader(&buf))

	ctx := context.Background()
	// only the newest frame is handed out
	img, err := s.Read(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 32, 8))

	_, err = s.Read(ctx)
	test.That(t, errors.Is(err, camera.ErrEndOfStream), test.ShouldBeTrue)

	test.That(t, s.Close(ctx), test.ShouldBeNil)
	_, err = s.Read(ctx)
	test.That(t, errors.Is(err, camera.ErrClosed), test.ShouldBeTrue)
}

func TestStreamReadWaits(t *testing.T) {
	s := &stream{cancel: func() {}, updated: make(chan struct{}), logger: logging.NewTestLogger(t)}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Read(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)

	go s.publish(image.NewGray(image.Rect(0, 0, 3, 3)))
	img, err := s.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 3)
}

func TestStreamReady(t *testing.T) {
	s := &stream{cancel: func() {}, updated: make(chan struct{}), logger: logging.NewTestLogger(t)}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	test.That(t, errors.Is(s.ready(ctx), context.DeadlineExceeded), test.ShouldBeTrue)

	go s.publish(image.NewGray(image.Rect(0, 0, 3, 3)))
	test.That(t, s.ready(context.Background()), test.ShouldBeNil)
	// the frame that made the stream ready is still handed to the first Read
	img, err := s.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 3)

	failed := &stream{cancel: func() {}, updated: make(chan struct{}), logger: logging.NewTestLogger(t)}
	go failed.fail(errors.New("ffmpeg exited: exit status 1"))
	err = failed.ready(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "exit status 1")
}

func newTestCamera(t *testing.T, conf *Config) *Camera {
	t.Helper()
	cam, err := NewFFmpegCamera(conf, logging.NewTestLogger(t))
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	return cam
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("missing input", func(t *testing.T) {
		cam := newTestCamera(t, &Config{Source: filepath.Join(t.TempDir(), "missing.mp4")})
		_, err := cam.Open(ctx)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "could not open")
	})

	t.Run("open timeout", func(t *testing.T) {
		cam := newTestCamera(t, &Config{
			Source:      "testsrc=size=64x48:rate=1",
			InputKWArgs: map[string]interface{}{"f": "lavfi"},
			OpenTimeout: time.Millisecond,
		})
		_, err := cam.Open(ctx)
		test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	})

	t.Run("test source", func(t *testing.T) {
		cam := newTestCamera(t, &Config{
			Source:      "testsrc=size=64x48:rate=5",
			InputKWArgs: map[string]interface{}{"f": "lavfi"},
		})
		stream, err := cam.Open(ctx)
		test.That(t, err, test.ShouldBeNil)
		img, err := stream.Read(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 64, 48))
		test.That(t, stream.Close(ctx), test.ShouldBeNil)
	})
}

func TestOutputArgs(t *testing.T) {
	c := &Camera{conf: Config{Source: "rtsp://cam", OutputKWArgs: map[string]interface{}{"r": 10, "format": "mp4"}}}
	args := c.OutputArgs()
	test.That(t, args["r"], test.ShouldEqual, 10)
	test.That(t, args["format"], test.ShouldEqual, "image2pipe")
	test.That(t, args["vcodec"], test.ShouldEqual, "mjpeg")

	test.That(t, (&Config{}).Validate("attributes"), test.ShouldNotBeNil)
	test.That(t, (&Config{Source: "x", OpenTimeout: -time.Second}).Validate("attributes"), test.ShouldNotBeNil)
	test.That(t, (&Config{Source: "x"}).Validate("attributes"), test.ShouldBeNil)
}
