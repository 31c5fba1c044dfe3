package geometry

import "math"

// Point represents a 2D pixel-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PathLength returns the summed length of consecutive segments. When closed
// is true the last point connects back to the first.
func PathLength(points []Point, closed bool) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	if closed {
		total += Distance(points[len(points)-1], points[0])
	}
	return total
}

// PolygonArea returns the area enclosed by the points using the shoelace
// formula. The ring is implicitly closed; the last point connects to the
// first even when not duplicated in the input.
func PolygonArea(points []Point) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter returns the perimeter of the implicitly closed ring.
func PolygonPerimeter(points []Point) float64 {
	return PathLength(points, true)
}

// RectangleArea returns w*h.
func RectangleArea(w, h float64) float64 {
	return w * h
}

// RectanglePerimeter returns 2*(w+h).
func RectanglePerimeter(w, h float64) float64 {
	return 2 * (w + h)
}

// CircleArea returns pi*r^2.
func CircleArea(r float64) float64 {
	return math.Pi * r * r
}

// CircleCircumference returns 2*pi*r.
func CircleCircumference(r float64) float64 {
	return 2 * math.Pi * r
}
