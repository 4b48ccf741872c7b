// Package remote implements a detector that sends frames to an HTTP inference server, such as a
// YOLO model served next to the monitor.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/resource"
	"github.com/ysay/zari-vision/rimage"
	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/vision/objectdetection"
)

// Model is the name of the remote detector model.
const Model = "remote"

const (
	defaultPath      = "/detect"
	defaultFileField = "file"
	maxErrorBody     = 1 << 10
)

func init() {
	vision.RegisterModel(Model, resource.Registration[vision.Service]{
		Constructor: func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (vision.Service, error) {
			conf, err := resource.NativeConfig[Config](attrs)
			if err != nil {
				return nil, err
			}
			return NewClient(conf, nil, logger)
		},
	})
}

// Config is the attribute struct for the remote detector.
type Config struct {
	URL       string `json:"url"`
	Path      string `json:"path,omitempty"`
	FileField string `json:"file_field,omitempty"`
	// Timeout bounds a single inference request. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// ResponseWidth and ResponseHeight are the geometry the server reports boxes in when it does
	// not say so itself. Zero means boxes are in the geometry of the uploaded frame.
	ResponseWidth  int `json:"response_width,omitempty"`
	ResponseHeight int `json:"response_height,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.URL == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "url")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "invalid url"))
	}
	if c.Timeout < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("timeout cannot be negative, got %s", c.Timeout))
	}
	if c.ResponseWidth < 0 || c.ResponseHeight < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf(
			"got illegal negative dimensions for response_width and response_height (%d, %d)",
			c.ResponseWidth, c.ResponseHeight))
	}
	return nil
}

// Response is the body the inference server answers with. Width and Height, when set, are the
// geometry the boxes are expressed in.
type Response struct {
	Detections []objectdetection.DetectionJSON `json:"detections"`
	Width      int                             `json:"width,omitempty"`
	Height     int                             `json:"height,omitempty"`
}

// Client posts JPEG frames to the inference server. It is safe for concurrent use.
type Client struct {
	endpoint  string
	fileField string
	respSize  image.Point
	client    *http.Client
	logger    logging.Logger
}

// NewClient returns a client for the configured server. A nil httpClient uses one with the
// configured timeout.
func NewClient(conf *Config, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	u, err := url.Parse(conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}
	path := conf.Path
	if path == "" {
		path = defaultPath
	}
	field := conf.FileField
	if field == "" {
		field = defaultFileField
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: conf.Timeout}
	}
	return &Client{
		endpoint:  u.JoinPath(path).String(),
		fileField: field,
		respSize:  image.Pt(conf.ResponseWidth, conf.ResponseHeight),
		client:    httpClient,
		logger:    logger,
	}, nil
}

// Detections uploads img with the thresholds as form fields and returns the server's boxes in
// the pixel space of img.
func (c *Client) Detections(
	ctx context.Context,
	img image.Image,
	params vision.Params,
) ([]objectdetection.Detection, error) {
	body, contentType, err := c.encodeRequest(img, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Errorf("detector responded with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode response body")
	}

	dets := objectdetection.FromJSON(out.Detections)
	from := image.Pt(out.Width, out.Height)
	if from.X == 0 || from.Y == 0 {
		from = c.respSize
	}
	if from.X > 0 && from.Y > 0 {
		to := image.Pt(img.Bounds().Dx(), img.Bounds().Dy())
		if dets, err = objectdetection.ScaleDetections(dets, from, to); err != nil {
			return nil, err
		}
	}
	c.logger.Debugw("remote detections", "count", len(dets))
	return dets, nil
}

func (c *Client) encodeRequest(img image.Image, params vision.Params) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(c.fileField, "frame.jpg")
	if err != nil {
		return nil, "", errors.Wrap(err, "create form")
	}
	if err := rimage.EncodeJPEG(part, img); err != nil {
		return nil, "", err
	}
	fields := map[string]string{
		"conf":    strconv.FormatFloat(params.ConfidenceThreshold, 'f', -1, 64),
		"iou":     strconv.FormatFloat(params.IoUThreshold, 'f', -1, 64),
		"max_det": strconv.Itoa(params.MaxDetections),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", errors.Wrapf(err, "write form field %q", name)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}
	return body, writer.FormDataContentType(), nil
}

// Close releases idle connections.
func (c *Client) Close(ctx context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}
