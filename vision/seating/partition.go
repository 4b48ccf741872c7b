package seating

import (
	"strings"

	"github.com/samber/lo"

	"github.com/ysay/zari-vision/vision/objectdetection"
)

// Labels the resolver cares about.
const (
	ChairLabel  = "chair"
	PersonLabel = "person"
)

// Partition splits detector output into chairs and persons, keeping detector order. Labels are
// matched case-insensitively and anything else is dropped. Both results are non-nil.
func Partition(dets []objectdetection.Detection) (chairs, persons []objectdetection.Detection) {
	chairs = lo.Filter(dets, func(d objectdetection.Detection, _ int) bool {
		return strings.EqualFold(d.Label(), ChairLabel)
	})
	persons = lo.Filter(dets, func(d objectdetection.Detection, _ int) bool {
		return strings.EqualFold(d.Label(), PersonLabel)
	})
	return chairs, persons
}
