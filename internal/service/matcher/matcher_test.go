package matcher

import (
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"sorter/internal/apperror"
	"sorter/internal/model"
)

func defaultMapping() map[string]int {
	return map[string]int{"A1": 1, "A2": 2, "A3": 3, "A4": 4, "A5": 5, "A6": 6}
}

func TestMatcher(t *testing.T) {
	Convey("Given a matcher with the default mapping", t, func() {
		m, err := New(defaultMapping(), 6)
		So(err, ShouldBeNil)

		Convey("A recognized token with whitespace and lower case matches after normalization", func() {
			id, ok := m.Match(model.NormalizeText("a1 "))
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, 1)
		})

		Convey("An unknown token does not match", func() {
			_, ok := m.Match("Z9")
			So(ok, ShouldBeFalse)
		})

		Convey("A partial update overrides and adds keys without touching the rest", func() {
			full, err := m.Update(map[string]int{"A1": 2, "b7": 3})

			So(err, ShouldBeNil)
			So(full["A1"], ShouldEqual, 2)
			So(full["B7"], ShouldEqual, 3)
			So(full["A2"], ShouldEqual, 2)
			So(len(full), ShouldEqual, 7)

			id, ok := m.Match("B7")
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, 3)
		})

		Convey("An update with an out-of-range id is rejected as a whole", func() {
			_, err := m.Update(map[string]int{"A1": 4, "C1": 7})

			So(errors.Is(err, apperror.ErrConfig), ShouldBeTrue)
			So(m.Mapping(), ShouldResemble, defaultMapping())
		})

		Convey("An update with an empty token is rejected", func() {
			_, err := m.Update(map[string]int{"  ": 1})
			So(errors.Is(err, apperror.ErrConfig), ShouldBeTrue)
		})

		Convey("Keys that normalize to one token with different ids are rejected every time", func() {
			for i := 0; i < 50; i++ {
				_, err := m.Update(map[string]int{"a1": 1, "A1": 2, "B7": 3})
				So(errors.Is(err, apperror.ErrConfig), ShouldBeTrue)
			}
			So(m.Mapping(), ShouldResemble, defaultMapping())
		})

		Convey("Keys that normalize to one token with the same id are accepted", func() {
			full, err := m.Update(map[string]int{"b7": 3, " B7": 3})
			So(err, ShouldBeNil)
			So(full["B7"], ShouldEqual, 3)
		})

		Convey("Mapping returns a copy", func() {
			snapshot := m.Mapping()
			snapshot["A1"] = 5

			id, _ := m.Match("A1")
			So(id, ShouldEqual, 1)
		})
	})

	Convey("Given a seed with an out-of-range id", t, func() {
		_, err := New(map[string]int{"A1": 0}, 6)

		Convey("Construction fails", func() {
			So(errors.Is(err, apperror.ErrConfig), ShouldBeTrue)
		})
	})
}

func TestMatcher_ConcurrentReadersSeeWholeUpdates(t *testing.T) {
	m, err := New(map[string]int{"X": 1, "Y": 1}, 6)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			id := i%6 + 1
			if _, err := m.Update(map[string]int{"X": id, "Y": id}); err != nil {
				t.Errorf("Update failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 500; i++ {
		snapshot := m.Mapping()
		if snapshot["X"] != snapshot["Y"] {
			t.Fatalf("observed a partial update: %v", snapshot)
		}
	}
	wg.Wait()
}
