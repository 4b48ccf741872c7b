// Package seating turns chair and person detections into per-seat occupancy records.
package seating

// Status is the occupancy state of a seat.
type Status string

// Known seat statuses.
const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
)

// A Seat is one detected chair for a single detection cycle. ID is the 1-based position of the
// chair in detector order and is not stable across cycles. Row and Col are the chair center
// normalized by the frame height and width.
type Seat struct {
	ID     int     `json:"id"`
	Row    float64 `json:"row"`
	Col    float64 `json:"col"`
	Status Status  `json:"status"`
}

// Occupied reports whether someone is sitting in the seat.
func (s Seat) Occupied() bool {
	return s.Status == StatusOccupied
}

// CountOccupied returns how many of the seats are occupied.
func CountOccupied(seats []Seat) int {
	n := 0
	for _, s := range seats {
		if s.Occupied() {
			n++
		}
	}
	return n
}
