package seatmonitor

import (
	"github.com/pkg/errors"
)

// Failure kinds reported by sessions and snapshots. Match them with errors.Is.
var (
	// ErrSourceUnavailable means the camera could not be acquired.
	ErrSourceUnavailable = errors.New("camera unavailable")
	// ErrSourceRead means a frame could not be read from an acquired camera.
	ErrSourceRead = errors.New("failed to capture frame")
	// ErrDetector means the detector failed on a frame.
	ErrDetector = errors.New("detector failed")
	// ErrClientGone means a payload could not be delivered to the session's client.
	ErrClientGone = errors.New("client disconnected")
)

// kindError tags a cause with one of the failure kinds above. Both the kind and the cause are
// visible to errors.Is and errors.As.
type kindError struct {
	kind  error
	cause error
}

func newKindError(kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// Kind returns the failure kind of err, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrSourceUnavailable, ErrSourceRead, ErrDetector, ErrClientGone} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
