package measure

import (
	"errors"
	"math"
	"testing"

	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/geometry"
)

func mustCalculator(t *testing.T, ppf float64) *Calculator {
	t.Helper()
	c, err := NewCalculator(ppf)
	if err != nil {
		t.Fatalf("NewCalculator(%v): %v", ppf, err)
	}
	return c
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNewCalculatorRejectsNonPositive(t *testing.T) {
	for _, ppf := range []float64{0, -1} {
		if _, err := NewCalculator(ppf); !errors.Is(err, common.ErrValidation) {
			t.Errorf("NewCalculator(%v) err = %v, want validation error", ppf, err)
		}
	}
}

func TestUnitConversions(t *testing.T) {
	c := mustCalculator(t, 10)

	if got := c.PixelsToFeet(100); !approx(got, 10) {
		t.Errorf("PixelsToFeet(100) = %v, want 10", got)
	}
	if got := c.FeetToPixels(10); !approx(got, 100) {
		t.Errorf("FeetToPixels(10) = %v, want 100", got)
	}
	if got := c.PixelsToSquareFeet(10000); !approx(got, 100) {
		t.Errorf("PixelsToSquareFeet(10000) = %v, want 100", got)
	}
	// Round trip.
	if got := c.PixelsToFeet(c.FeetToPixels(7.25)); !approx(got, 7.25) {
		t.Errorf("round trip = %v, want 7.25", got)
	}
}

func TestSquareFeetToCubicYards(t *testing.T) {
	// 100 SF at 4" deep: 100 * 4/12 / 27.
	if got := SquareFeetToCubicYards(100, 4); !approx(got, 1.2345679) {
		t.Errorf("SquareFeetToCubicYards(100, 4) = %v, want 1.2345679", got)
	}
	// 27 SF at 12" deep is exactly one cubic yard.
	if got := SquareFeetToCubicYards(27, 12); !approx(got, 1) {
		t.Errorf("SquareFeetToCubicYards(27, 12) = %v, want 1", got)
	}
}

func TestLine(t *testing.T) {
	c := mustCalculator(t, 10)

	got := c.Line(geometry.Point{X: 0, Y: 0}, geometry.Point{X: 30, Y: 40})
	if !approx(got.LengthPixels, 50) {
		t.Errorf("LengthPixels = %v, want 50", got.LengthPixels)
	}
	if !approx(got.LengthFeet, 5) {
		t.Errorf("LengthFeet = %v, want 5", got.LengthFeet)
	}
}

func TestPolyline(t *testing.T) {
	c := mustCalculator(t, 10)

	points := []geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50}}
	got, err := c.Polyline(points)
	if err != nil {
		t.Fatalf("Polyline: %v", err)
	}
	if !approx(got.LengthFeet, 15) {
		t.Errorf("LengthFeet = %v, want 15", got.LengthFeet)
	}
	if got.SegmentCount != 2 || len(got.Segments) != 2 {
		t.Errorf("SegmentCount = %d/%d, want 2", got.SegmentCount, len(got.Segments))
	}
	if !approx(got.Segments[0].LengthFeet, 10) || !approx(got.Segments[1].LengthFeet, 5) {
		t.Errorf("segment lengths = %v/%v, want 10/5", got.Segments[0].LengthFeet, got.Segments[1].LengthFeet)
	}

	if _, err := c.Polyline(points[:1]); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Polyline with one point err = %v, want validation error", err)
	}
}

func TestPolygon(t *testing.T) {
	c := mustCalculator(t, 10)

	square := []geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	got, err := c.Polygon(square, nil)
	if err != nil {
		t.Fatalf("Polygon: %v", err)
	}
	if !approx(got.AreaSquareFeet, 100) {
		t.Errorf("AreaSquareFeet = %v, want 100", got.AreaSquareFeet)
	}
	if !approx(got.PerimeterFeet, 40) {
		t.Errorf("PerimeterFeet = %v, want 40", got.PerimeterFeet)
	}
	if got.VolumeCubicYards != nil {
		t.Error("VolumeCubicYards set without a depth")
	}

	depth := 4.0
	got, err = c.Polygon(square, &depth)
	if err != nil {
		t.Fatalf("Polygon with depth: %v", err)
	}
	if got.VolumeCubicYards == nil || !approx(*got.VolumeCubicYards, 1.2345679) {
		t.Errorf("VolumeCubicYards = %v, want 1.2345679", got.VolumeCubicYards)
	}

	if _, err := c.Polygon(square[:2], nil); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Polygon with two points err = %v, want validation error", err)
	}
}

func TestRectangle(t *testing.T) {
	c := mustCalculator(t, 10)

	got, err := c.Rectangle(geometry.Rect{X: 0, Y: 0, Width: 100, Height: 50}, nil)
	if err != nil {
		t.Fatalf("Rectangle: %v", err)
	}
	if !approx(got.AreaSquareFeet, 50) {
		t.Errorf("AreaSquareFeet = %v, want 50", got.AreaSquareFeet)
	}
	if !approx(got.PerimeterFeet, 30) {
		t.Errorf("PerimeterFeet = %v, want 30", got.PerimeterFeet)
	}

	if _, err := c.Rectangle(geometry.Rect{Width: 0, Height: 50}, nil); !errors.Is(err, common.ErrValidation) {
		t.Errorf("zero-width rectangle err = %v, want validation error", err)
	}
}

func TestCircle(t *testing.T) {
	c := mustCalculator(t, 10)

	got, err := c.Circle(geometry.Point{X: 500, Y: 500}, 50, nil)
	if err != nil {
		t.Fatalf("Circle: %v", err)
	}
	if !approx(got.AreaSquareFeet, 25*math.Pi) {
		t.Errorf("AreaSquareFeet = %v, want %v", got.AreaSquareFeet, 25*math.Pi)
	}
	if !approx(got.CircumferenceFeet, 10*math.Pi) {
		t.Errorf("CircumferenceFeet = %v, want %v", got.CircumferenceFeet, 10*math.Pi)
	}
	if !approx(got.DiameterFeet, 10) {
		t.Errorf("DiameterFeet = %v, want 10", got.DiameterFeet)
	}

	if _, err := c.Circle(geometry.Point{}, 0, nil); !errors.Is(err, common.ErrValidation) {
		t.Errorf("zero-radius circle err = %v, want validation error", err)
	}
}

func TestCount(t *testing.T) {
	c := mustCalculator(t, 10)

	got := c.Count(geometry.Point{X: 42, Y: 7})
	if got.Quantity != 1 {
		t.Errorf("Quantity = %v, want 1", got.Quantity)
	}
	if got.Position.X != 42 || got.Position.Y != 7 {
		t.Errorf("Position = %+v, want {42 7}", got.Position)
	}
}
