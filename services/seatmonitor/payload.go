package seatmonitor

import (
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/vision/objectdetection"
	"github.com/ysay/zari-vision/vision/seating"
)

// DetectionsMessage is the stream payload carrying the raw detections of one cycle.
type DetectionsMessage struct {
	Detections []objectdetection.DetectionJSON `json:"detections"`
}

// SeatsMessage carries the seats of one cycle. It is also the snapshot response body.
type SeatsMessage struct {
	Seats []seating.Seat `json:"seats"`
}

// CombinedMessage carries both the detections and the seats of one cycle.
type CombinedMessage struct {
	Detections []objectdetection.DetectionJSON `json:"detections"`
	Seats      []seating.Seat                  `json:"seats"`
}

// Payload returns the message to emit for res in the given payload mode. Unknown modes fall
// back to detections.
func Payload(mode string, res *Result) interface{} {
	switch mode {
	case config.PayloadSeats:
		return SeatsMessage{Seats: res.Seats}
	case config.PayloadBoth:
		return CombinedMessage{Detections: objectdetection.ToJSON(res.Detections), Seats: res.Seats}
	default:
		return DetectionsMessage{Detections: objectdetection.ToJSON(res.Detections)}
	}
}
