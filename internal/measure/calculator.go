package measure

import (
	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/geometry"
)

// Calculator converts raw pixel geometry into real-world quantities using a
// fixed pixels-per-foot factor. All methods are pure.
type Calculator struct {
	pixelsPerFoot float64
}

// NewCalculator fails if pixelsPerFoot is not positive; a zero factor would
// silently corrupt every downstream quantity.
func NewCalculator(pixelsPerFoot float64) (*Calculator, error) {
	if pixelsPerFoot <= 0 {
		return nil, common.NewValidationErrorf("pixels per foot must be positive, got %v", pixelsPerFoot)
	}
	return &Calculator{pixelsPerFoot: pixelsPerFoot}, nil
}

func (c *Calculator) PixelsToFeet(px float64) float64 {
	return px / c.pixelsPerFoot
}

func (c *Calculator) FeetToPixels(ft float64) float64 {
	return ft * c.pixelsPerFoot
}

func (c *Calculator) PixelsToSquareFeet(pxArea float64) float64 {
	return pxArea / (c.pixelsPerFoot * c.pixelsPerFoot)
}

// SquareFeetToCubicYards converts a footprint area and a depth in inches to
// cubic yards: (sf * depth/12) / 27.
func SquareFeetToCubicYards(sf, depthInches float64) float64 {
	return sf * depthInches / 12 / 27
}

// Segment is one leg of a polyline with its converted length.
type Segment struct {
	Start      geometry.Point `json:"start"`
	End        geometry.Point `json:"end"`
	LengthFeet float64        `json:"length_feet"`
}

type LineResult struct {
	LengthPixels float64 `json:"length_pixels"`
	LengthFeet   float64 `json:"length_feet"`
}

type PolylineResult struct {
	LengthFeet   float64   `json:"length_feet"`
	Segments     []Segment `json:"segments"`
	SegmentCount int       `json:"segment_count"`
}

type PolygonResult struct {
	AreaSquareFeet   float64  `json:"area_square_feet"`
	PerimeterFeet    float64  `json:"perimeter_feet"`
	VolumeCubicYards *float64 `json:"volume_cubic_yards,omitempty"`
}

type RectangleResult struct {
	AreaSquareFeet   float64  `json:"area_square_feet"`
	PerimeterFeet    float64  `json:"perimeter_feet"`
	VolumeCubicYards *float64 `json:"volume_cubic_yards,omitempty"`
}

type CircleResult struct {
	AreaSquareFeet    float64  `json:"area_square_feet"`
	CircumferenceFeet float64  `json:"circumference_feet"`
	DiameterFeet      float64  `json:"diameter_feet"`
	VolumeCubicYards  *float64 `json:"volume_cubic_yards,omitempty"`
}

// CountResult is a count marker. Count geometry carries no length or area
// semantics; the quantity is always 1.
type CountResult struct {
	Quantity float64        `json:"quantity"`
	Position geometry.Point `json:"position"`
}

func (c *Calculator) Line(start, end geometry.Point) *LineResult {
	px := geometry.Distance(start, end)
	return &LineResult{
		LengthPixels: px,
		LengthFeet:   c.PixelsToFeet(px),
	}
}

func (c *Calculator) Polyline(points []geometry.Point) (*PolylineResult, error) {
	if len(points) < 2 {
		return nil, common.NewValidationErrorf("polyline requires at least 2 points, got %d", len(points))
	}
	result := &PolylineResult{SegmentCount: len(points) - 1}
	for i := 1; i < len(points); i++ {
		feet := c.PixelsToFeet(geometry.Distance(points[i-1], points[i]))
		result.Segments = append(result.Segments, Segment{
			Start:      points[i-1],
			End:        points[i],
			LengthFeet: feet,
		})
		result.LengthFeet += feet
	}
	return result, nil
}

// Polygon measures the implicitly closed ring: the last point connects back
// to the first even when not duplicated in the input.
func (c *Calculator) Polygon(points []geometry.Point, depthInches *float64) (*PolygonResult, error) {
	if len(points) < 3 {
		return nil, common.NewValidationErrorf("polygon requires at least 3 points, got %d", len(points))
	}
	result := &PolygonResult{
		AreaSquareFeet: c.PixelsToSquareFeet(geometry.PolygonArea(points)),
		PerimeterFeet:  c.PixelsToFeet(geometry.PolygonPerimeter(points)),
	}
	if depthInches != nil {
		v := SquareFeetToCubicYards(result.AreaSquareFeet, *depthInches)
		result.VolumeCubicYards = &v
	}
	return result, nil
}

func (c *Calculator) Rectangle(r geometry.Rect, depthInches *float64) (*RectangleResult, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, common.NewValidationError("rectangle width and height must be positive")
	}
	result := &RectangleResult{
		AreaSquareFeet: c.PixelsToSquareFeet(geometry.RectangleArea(r.Width, r.Height)),
		PerimeterFeet:  c.PixelsToFeet(geometry.RectanglePerimeter(r.Width, r.Height)),
	}
	if depthInches != nil {
		v := SquareFeetToCubicYards(result.AreaSquareFeet, *depthInches)
		result.VolumeCubicYards = &v
	}
	return result, nil
}

func (c *Calculator) Circle(center geometry.Point, radius float64, depthInches *float64) (*CircleResult, error) {
	if radius <= 0 {
		return nil, common.NewValidationError("circle radius must be positive")
	}
	result := &CircleResult{
		AreaSquareFeet:    c.PixelsToSquareFeet(geometry.CircleArea(radius)),
		CircumferenceFeet: c.PixelsToFeet(geometry.CircleCircumference(radius)),
		DiameterFeet:      c.PixelsToFeet(2 * radius),
	}
	if depthInches != nil {
		v := SquareFeetToCubicYards(result.AreaSquareFeet, *depthInches)
		result.VolumeCubicYards = &v
	}
	return result, nil
}

func (c *Calculator) Count(p geometry.Point) *CountResult {
	return &CountResult{Quantity: 1, Position: p}
}
