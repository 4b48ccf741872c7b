package objectdetection

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestScoreAndAreaFilters(t *testing.T) {
	dets := []Detection{
		NewDetection(image.Rect(0, 0, 10, 10), 0.9, "chair"),
		NewDetection(image.Rect(0, 0, 2, 2), 0.95, "person"),
		NewDetection(image.Rect(0, 0, 30, 30), 0.1, "person"),
	}
	scored := NewScoreFilter(0.25)(dets)
	test.That(t, scored, test.ShouldHaveLength, 2)
	test.That(t, scored[0].Label(), test.ShouldEqual, "chair")

	big := NewAreaFilter(50)(dets)
	test.That(t, big, test.ShouldHaveLength, 2)
	test.That(t, big[1].Score(), test.ShouldEqual, 0.1)
}

func TestMaxDetectionsFilter(t *testing.T) {
	dets := []Detection{
		NewDetection(image.Rect(0, 0, 1, 1), 0.1, "a"),
		NewDetection(image.Rect(0, 0, 1, 1), 0.2, "b"),
		NewDetection(image.Rect(0, 0, 1, 1), 0.3, "c"),
	}
	test.That(t, NewMaxDetectionsFilter(2)(dets), test.ShouldHaveLength, 2)
	test.That(t, NewMaxDetectionsFilter(5)(dets), test.ShouldHaveLength, 3)
	test.That(t, NewMaxDetectionsFilter(0)(dets), test.ShouldHaveLength, 3)
}

func TestNMSFilter(t *testing.T) {
	dets := []Detection{
		NewDetection(image.Rect(0, 0, 100, 100), 0.6, "chair"),
		NewDetection(image.Rect(5, 5, 105, 105), 0.9, "chair"),
		NewDetection(image.Rect(5, 5, 105, 105), 0.7, "person"),
		NewDetection(image.Rect(300, 300, 400, 400), 0.5, "chair"),
	}
	out := NewNMSFilter(0.45)(dets)
	test.That(t, out, test.ShouldHaveLength, 3)
	test.That(t, out[0].Score(), test.ShouldEqual, 0.9)
	test.That(t, out[1].Label(), test.ShouldEqual, "person")
	test.That(t, out[2].Score(), test.ShouldEqual, 0.5)
	// input order is left alone
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.6)

	test.That(t, NewNMSFilter(0.45)(nil), test.ShouldBeEmpty)
}

func TestIoU(t *testing.T) {
	test.That(t, IoU(image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10)), test.ShouldEqual, 1.0)
	test.That(t, IoU(image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30)), test.ShouldEqual, 0.0)
	test.That(t, IoU(image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10)), test.ShouldAlmostEqual, 50.0/150.0)
	test.That(t, IoU(image.Rectangle{}, image.Rectangle{}), test.ShouldEqual, 0.0)
}
