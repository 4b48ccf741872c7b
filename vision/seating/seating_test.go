package seating

import (
	"encoding/json"
	"image"
	"testing"

	"go.viam.com/test"

	"github.com/ysay/zari-vision/vision/objectdetection"
)

func det(label string, x1, y1, x2, y2 int) objectdetection.Detection {
	return objectdetection.NewDetection(image.Rect(x1, y1, x2, y2), 0.9, label)
}

func TestPartition(t *testing.T) {
	dets := []objectdetection.Detection{
		det("Chair", 0, 0, 10, 10),
		det("person", 1, 1, 2, 2),
		det("dining table", 0, 0, 50, 50),
		det("CHAIR", 20, 20, 30, 30),
		det("chairs", 0, 0, 1, 1),
		det("PERSON", 3, 3, 4, 4),
	}
	chairs, persons := Partition(dets)
	test.That(t, chairs, test.ShouldHaveLength, 2)
	test.That(t, chairs[0].Label(), test.ShouldEqual, "Chair")
	test.That(t, chairs[1].Label(), test.ShouldEqual, "CHAIR")
	test.That(t, persons, test.ShouldHaveLength, 2)
	test.That(t, persons[1].Label(), test.ShouldEqual, "PERSON")

	chairs, persons = Partition(nil)
	test.That(t, chairs, test.ShouldNotBeNil)
	test.That(t, chairs, test.ShouldBeEmpty)
	test.That(t, persons, test.ShouldNotBeNil)
	test.That(t, persons, test.ShouldBeEmpty)
}

func TestResolveOccupied(t *testing.T) {
	r := NewResolver(DefaultMarginRatio, 640, 640)
	chair := det("chair", 100, 100, 200, 200)
	test.That(t, r.Margin(*chair.BoundingBox()), test.ShouldResemble, image.Pt(10, 10))
	test.That(t, r.Expand(*chair.BoundingBox()), test.ShouldResemble, image.Rect(90, 90, 210, 210))
	test.That(t, Center(image.Rect(120, 120, 140, 180)), test.ShouldResemble, image.Pt(130, 150))

	seats := r.Resolve([]objectdetection.Detection{chair}, []objectdetection.Detection{det("person", 120, 120, 140, 180)})
	test.That(t, seats, test.ShouldResemble, []Seat{{ID: 1, Row: 0.234, Col: 0.234, Status: StatusOccupied}})
}

func TestResolveAvailable(t *testing.T) {
	r := NewResolver(DefaultMarginRatio, 640, 640)
	seats := r.Resolve(
		[]objectdetection.Detection{det("chair", 100, 100, 200, 200)},
		[]objectdetection.Detection{det("person", 300, 300, 320, 320)},
	)
	test.That(t, seats, test.ShouldResemble, []Seat{{ID: 1, Row: 0.234, Col: 0.234, Status: StatusAvailable}})
}

func TestResolveBoundaries(t *testing.T) {
	r := NewResolver(DefaultMarginRatio, 640, 640)
	chairs := []objectdetection.Detection{det("chair", 100, 100, 200, 200)}

	// center (210, 210) sits exactly on the expanded corner
	seats := r.Resolve(chairs, []objectdetection.Detection{det("person", 200, 200, 220, 220)})
	test.That(t, seats[0].Status, test.ShouldEqual, StatusOccupied)

	// center (211, 150) is one pixel outside
	seats = r.Resolve(chairs, []objectdetection.Detection{det("person", 202, 140, 220, 160)})
	test.That(t, seats[0].Status, test.ShouldEqual, StatusAvailable)

	// margin truncates: 0.1 * 19 = 1.9 -> 1
	test.That(t, r.Margin(image.Rect(0, 0, 19, 39)), test.ShouldResemble, image.Pt(1, 3))

	// floor division of an odd sum
	test.That(t, Center(image.Rect(0, 0, 5, 7)), test.ShouldResemble, image.Pt(2, 3))
	test.That(t, Center(image.Rect(-5, -4, 0, 1)), test.ShouldResemble, image.Pt(-3, -2))
}

func TestResolveRounding(t *testing.T) {
	r := NewResolver(DefaultMarginRatio, 640, 640)
	for _, tc := range []struct {
		center int
		want   float64
	}{
		{8, 0.013},
		{24, 0.037},
		{152, 0.237},
		{150, 0.234},
		{320, 0.5},
		{640, 1},
	} {
		box := image.Rect(tc.center-4, tc.center-2, tc.center+4, tc.center+2)
		seats := r.Resolve([]objectdetection.Detection{det("chair", box.Min.X, box.Min.Y, box.Max.X, box.Max.Y)}, nil)
		test.That(t, seats, test.ShouldHaveLength, 1)
		test.That(t, seats[0].Col, test.ShouldEqual, tc.want)
		test.That(t, seats[0].Row, test.ShouldEqual, tc.want)
	}

	seats := r.Resolve([]objectdetection.Detection{det("chair", 0, 0, 16, 304)}, nil)
	test.That(t, seats[0].Col, test.ShouldEqual, 0.013)
	test.That(t, seats[0].Row, test.ShouldEqual, 0.237)
}

func TestResolveMarginSign(t *testing.T) {
	chairs := []objectdetection.Detection{det("chair", 100, 100, 200, 200)}
	persons := []objectdetection.Detection{det("person", 140, 140, 160, 160)}
	for _, ratio := range []float64{-0.5, 0, 0.1, 0.3} {
		seats := NewResolver(ratio, 640, 640).Resolve(chairs, persons)
		test.That(t, seats[0].Status, test.ShouldEqual, StatusOccupied)
	}
	test.That(t, NewResolver(-0.5, 640, 640).Expand(image.Rect(100, 100, 200, 200)), test.ShouldResemble, image.Rect(100, 100, 200, 200))

	// wider margin picks up a person the default misses
	far := []objectdetection.Detection{det("person", 215, 140, 225, 160)}
	test.That(t, NewResolver(0.1, 640, 640).Resolve(chairs, far)[0].Status, test.ShouldEqual, StatusAvailable)
	test.That(t, NewResolver(0.3, 640, 640).Resolve(chairs, far)[0].Status, test.ShouldEqual, StatusOccupied)
}

func TestResolveOrderingAndSharing(t *testing.T) {
	r := NewResolver(DefaultMarginRatio, 640, 480)
	chairs := []objectdetection.Detection{
		det("chair", 0, 0, 100, 100),
		det("chair", 90, 0, 190, 100),
		det("chair", 500, 400, 600, 480),
	}
	// one person centered in the overlap of the first two chairs
	persons := []objectdetection.Detection{det("person", 85, 40, 105, 60)}
	seats := r.Resolve(chairs, persons)
	test.That(t, seats, test.ShouldHaveLength, 3)
	for i, s := range seats {
		test.That(t, s.ID, test.ShouldEqual, i+1)
	}
	test.That(t, seats[0].Status, test.ShouldEqual, StatusOccupied)
	test.That(t, seats[1].Status, test.ShouldEqual, StatusOccupied)
	test.That(t, seats[2].Status, test.ShouldEqual, StatusAvailable)
	test.That(t, seats[2].Col, test.ShouldEqual, 0.859)
	test.That(t, seats[2].Row, test.ShouldEqual, 0.917)
	test.That(t, CountOccupied(seats), test.ShouldEqual, 2)

	again := r.Resolve(chairs, persons)
	test.That(t, again, test.ShouldResemble, seats)
}

func TestResolveEmpty(t *testing.T) {
	r := NewResolver(DefaultMarginRatio, 640, 640)
	seats := r.Resolve(nil, []objectdetection.Detection{det("person", 0, 0, 10, 10)})
	test.That(t, seats, test.ShouldNotBeNil)
	test.That(t, seats, test.ShouldBeEmpty)

	seats = r.Resolve([]objectdetection.Detection{det("chair", 0, 0, 10, 10), det("chair", 20, 20, 40, 40)}, nil)
	test.That(t, seats, test.ShouldHaveLength, 2)
	test.That(t, CountOccupied(seats), test.ShouldEqual, 0)
}

func TestSeatJSON(t *testing.T) {
	out, err := json.Marshal(Seat{ID: 2, Row: 0.5, Col: 0.25, Status: StatusOccupied})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `{"id":2,"row":0.5,"col":0.25,"status":"occupied"}`)
}

func TestAnnotate(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 320, 240))
	chairs := []objectdetection.Detection{det("chair", 40, 40, 120, 140)}
	persons := []objectdetection.Detection{det("person", 60, 20, 100, 160)}
	seats := NewResolver(DefaultMarginRatio, 320, 240).Resolve(chairs, persons)

	out := Annotate(frame, chairs, persons, seats)
	test.That(t, out.Bounds(), test.ShouldResemble, frame.Bounds())
	// chair outline on its left edge away from the person box
	_, _, b, _ := out.At(40, 100).RGBA()
	test.That(t, b>>8, test.ShouldBeGreaterThan, 200)
	// the input frame is not drawn on
	_, _, b, _ = frame.At(40, 100).RGBA()
	test.That(t, b, test.ShouldEqual, 0)

	empty := Annotate(frame, nil, nil, nil)
	test.That(t, empty.Bounds(), test.ShouldResemble, frame.Bounds())
}
