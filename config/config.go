// Package config defines the structures to configure the seat monitor and its camera and detector.
package config

import (
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/logging"
)

// Defaults applied by Ensure when a field is left unset.
const (
	DefaultBindAddress         = "localhost:8000"
	DefaultConfidenceThreshold = 0.25
	DefaultSnapshotConfidence  = 0.15
	DefaultIoUThreshold        = 0.45
	DefaultMaxDetections       = 1000
	DefaultFrameWidth          = 640
	DefaultFrameHeight         = 640
	DefaultStreamInterval      = 100 * time.Millisecond
	DefaultMarginRatio         = 0.1
)

// Stream payload modes.
const (
	PayloadDetections = "detections"
	PayloadSeats      = "seats"
	PayloadBoth       = "both"
)

// A Config describes the configuration of the seat monitor.
type Config struct {
	Network   NetworkConfig   `json:"network"`
	Camera    ComponentConfig `json:"camera"`
	Detector  DetectorConfig  `json:"detector"`
	Frame     FrameConfig     `json:"frame"`
	Stream    StreamConfig    `json:"stream"`
	Occupancy OccupancyConfig `json:"occupancy"`
	Log       logging.Config  `json:"log"`

	// Debug enables the annotated snapshot endpoint.
	Debug bool `json:"debug,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Ensure fills in defaults and ensures all parts of the config are valid.
func (c *Config) Ensure() error {
	if err := c.Network.Validate("network"); err != nil {
		return err
	}
	if err := c.Camera.Validate("camera"); err != nil {
		return err
	}
	if err := c.Detector.Validate("detector"); err != nil {
		return err
	}
	if err := c.Frame.Validate("frame"); err != nil {
		return err
	}
	if err := c.Stream.Validate("stream"); err != nil {
		return err
	}
	return c.Occupancy.Validate("occupancy")
}

// NetworkConfig describes networking settings for the web server.
type NetworkConfig struct {
	BindAddress        string   `json:"bind_address"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (nc *NetworkConfig) Validate(path string) error {
	if nc.BindAddress == "" {
		nc.BindAddress = DefaultBindAddress
	}
	if _, _, err := net.SplitHostPort(nc.BindAddress); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating bind_address"))
	}
	return nil
}

// ComponentConfig selects a registered model and carries its model specific attributes.
type ComponentConfig struct {
	Model      string       `json:"model"`
	Attributes AttributeMap `json:"attributes,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cc *ComponentConfig) Validate(path string) error {
	if cc.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	}
	return nil
}

// DetectorConfig configures the detector and the thresholds passed to it on every call.
type DetectorConfig struct {
	ComponentConfig
	ConfidenceThreshold         *float64 `json:"confidence_threshold,omitempty"`
	SnapshotConfidenceThreshold *float64 `json:"snapshot_confidence_threshold,omitempty"`
	IoUThreshold                *float64 `json:"iou_threshold,omitempty"`
	MaxDetections               int      `json:"max_detections,omitempty"`
	// MinArea drops boxes smaller than this many square pixels of the detector frame.
	MinArea int `json:"min_area,omitempty"`
	// Postprocess applies score, NMS and max detection filtering locally for backends that
	// return raw candidates.
	Postprocess bool `json:"postprocess,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (dc *DetectorConfig) Validate(path string) error {
	if err := dc.ComponentConfig.Validate(path); err != nil {
		return err
	}
	if dc.ConfidenceThreshold == nil {
		dc.ConfidenceThreshold = floatPtr(DefaultConfidenceThreshold)
	}
	if dc.SnapshotConfidenceThreshold == nil {
		dc.SnapshotConfidenceThreshold = floatPtr(DefaultSnapshotConfidence)
	}
	if dc.IoUThreshold == nil {
		dc.IoUThreshold = floatPtr(DefaultIoUThreshold)
	}
	if dc.MaxDetections == 0 {
		dc.MaxDetections = DefaultMaxDetections
	}
	for name, val := range map[string]float64{
		"confidence_threshold":          *dc.ConfidenceThreshold,
		"snapshot_confidence_threshold": *dc.SnapshotConfidenceThreshold,
		"iou_threshold":                 *dc.IoUThreshold,
	} {
		if val < 0 || val > 1 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must be in [0, 1], got %v", name, val))
		}
	}
	if dc.MaxDetections < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_detections cannot be negative, got %d", dc.MaxDetections))
	}
	if dc.MinArea < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("min_area cannot be negative, got %d", dc.MinArea))
	}
	return nil
}

// FrameConfig is the geometry every frame is resized to before detection. Seat coordinates are
// normalized by these dimensions.
type FrameConfig struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (fc *FrameConfig) Validate(path string) error {
	if fc.Width == 0 {
		fc.Width = DefaultFrameWidth
	}
	if fc.Height == 0 {
		fc.Height = DefaultFrameHeight
	}
	if fc.Width < 0 || fc.Height < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("got illegal negative dimensions for width and height (%d, %d)", fc.Width, fc.Height))
	}
	return nil
}

// StreamConfig configures streaming sessions.
type StreamConfig struct {
	Interval Duration `json:"interval,omitempty"`
	Payload  string   `json:"payload,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (sc *StreamConfig) Validate(path string) error {
	if sc.Interval == 0 {
		sc.Interval = Duration(DefaultStreamInterval)
	}
	if sc.Interval < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("interval cannot be negative, got %s", time.Duration(sc.Interval)))
	}
	switch sc.Payload {
	case "":
		sc.Payload = PayloadDetections
	case PayloadDetections, PayloadSeats, PayloadBoth:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown payload %q", sc.Payload))
	}
	return nil
}

// OccupancyConfig tunes the seat resolver.
type OccupancyConfig struct {
	MarginRatio *float64 `json:"margin_ratio,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (oc *OccupancyConfig) Validate(path string) error {
	if oc.MarginRatio == nil {
		oc.MarginRatio = floatPtr(DefaultMarginRatio)
	}
	if *oc.MarginRatio < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("margin_ratio cannot be negative, got %v", *oc.MarginRatio))
	}
	return nil
}

// Duration is a time.Duration that reads and writes json as a string like "100ms".
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", value)
		}
		*d = Duration(parsed)
	default:
		return errors.Errorf("invalid duration %v", v)
	}
	return nil
}

func floatPtr(v float64) *float64 {
	return &v
}
