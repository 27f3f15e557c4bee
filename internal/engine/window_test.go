package engine

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/epicast/casecast/internal/models"
)

func TestBuildWindow(t *testing.T) {
	Convey("Given ten entries, a two day horizon and the anchor equal to the start", t, func() {
		w, err := BuildWindow(baseDay, 10, baseDay, 2)
		So(err, ShouldBeNil)

		Convey("The test range is the last two entries", func() {
			So(w.Test, ShouldResemble, models.Range{Start: 8, End: 10})
			So(w.Test.Len(), ShouldEqual, 2)
		})

		Convey("Training targets start two entries in and stop at the test range", func() {
			So(w.Train, ShouldResemble, models.Range{Start: 2, End: 8})
			So(w.Train.Overlaps(w.Test), ShouldBeFalse)
		})

		Convey("Features lag their targets by the horizon", func() {
			So(w.TrainFeatures(), ShouldResemble, models.Range{Start: 0, End: 6})
			So(w.TestFeatures(), ShouldResemble, models.Range{Start: 6, End: 8})
		})
	})

	Convey("Given a start date before the anchor", t, func() {
		anchor := baseDay.AddDate(0, 0, 30)
		w, err := BuildWindow(anchor, 40, baseDay, 3)
		So(err, ShouldBeNil)

		Convey("Training begins offset entries before the end of the series", func() {
			So(w.TrainFeatures().Start, ShouldEqual, 10)
			So(w.Train.Start, ShouldEqual, 13)
			So(w.Test, ShouldResemble, models.Range{Start: 37, End: 40})
		})

		Convey("The offset is symmetric in anchor and start", func() {
			swapped, err := BuildWindow(baseDay, 40, anchor, 3)
			So(err, ShouldBeNil)
			So(swapped, ShouldResemble, w)
		})
	})

	Convey("A non-positive horizon is rejected", t, func() {
		for _, days := range []int{0, -3} {
			_, err := BuildWindow(baseDay, 10, baseDay, days)
			So(errors.Is(err, ErrInvalidRequest), ShouldBeTrue)
		}
	})

	Convey("Horizons that leave no training targets fail", t, func() {
		_, err := BuildWindow(baseDay, 10, baseDay, 5)
		So(errors.Is(err, ErrInsufficientHistory), ShouldBeTrue)

		_, err = BuildWindow(baseDay.AddDate(0, 0, 6), 10, baseDay, 3)
		So(errors.Is(err, ErrInsufficientHistory), ShouldBeTrue)
	})

	Convey("An offset longer than the series fails", t, func() {
		_, err := BuildWindow(baseDay.AddDate(0, 0, 11), 10, baseDay, 1)
		var ihe *InsufficientHistoryError
		So(errors.As(err, &ihe), ShouldBeTrue)
		So(ihe.Offset, ShouldEqual, 11)
	})
}

func TestBuildWindowProperties(t *testing.T) {
	for length := 1; length <= 40; length++ {
		for offset := 0; offset <= length+1; offset++ {
			for days := 1; days <= length; days++ {
				w, err := BuildWindow(baseDay.AddDate(0, 0, offset), length, baseDay, days)
				if err != nil {
					if !errors.Is(err, ErrInsufficientHistory) {
						t.Fatalf("length=%d offset=%d days=%d: unexpected error %v", length, offset, days, err)
					}
					continue
				}
				if w.Test.Len() != days {
					t.Fatalf("length=%d offset=%d days=%d: test length %d", length, offset, days, w.Test.Len())
				}
				if w.Train.Len() == 0 || w.Train.Overlaps(w.Test) || w.Train.End > w.Test.Start {
					t.Fatalf("length=%d offset=%d days=%d: bad ranges %+v", length, offset, days, w)
				}
				if w.TrainFeatures().Start < 0 || w.TestFeatures().End > w.Test.Start {
					t.Fatalf("length=%d offset=%d days=%d: feature ranges out of bounds %+v", length, offset, days, w)
				}
			}
		}
	}
}
