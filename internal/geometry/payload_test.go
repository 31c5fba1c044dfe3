package geometry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
)

func TestDecodeValid(t *testing.T) {
	tests := []struct {
		name         string
		geometryType constants.GeometryType
		raw          string
		want         *Shape
	}{
		{
			name:         "line",
			geometryType: constants.GeometryLine,
			raw:          `{"start": {"x": 0, "y": 0}, "end": {"x": 100, "y": 50}}`,
			want: &Shape{
				Type: constants.GeometryLine,
				Line: &Line{Start: Point{0, 0}, End: Point{100, 50}},
			},
		},
		{
			name:         "polyline",
			geometryType: constants.GeometryPolyline,
			raw:          `{"points": [{"x": 0, "y": 0}, {"x": 10, "y": 0}, {"x": 10, "y": 10}]}`,
			want: &Shape{
				Type: constants.GeometryPolyline,
				Path: &Path{Points: []Point{{0, 0}, {10, 0}, {10, 10}}},
			},
		},
		{
			name:         "polygon",
			geometryType: constants.GeometryPolygon,
			raw:          `{"points": [{"x": 0, "y": 0}, {"x": 10, "y": 0}, {"x": 5, "y": 10}]}`,
			want: &Shape{
				Type: constants.GeometryPolygon,
				Path: &Path{Points: []Point{{0, 0}, {10, 0}, {5, 10}}},
			},
		},
		{
			name:         "rectangle",
			geometryType: constants.GeometryRectangle,
			raw:          `{"x": 5, "y": 5, "width": 100, "height": 50}`,
			want: &Shape{
				Type: constants.GeometryRectangle,
				Rect: &Rect{X: 5, Y: 5, Width: 100, Height: 50},
			},
		},
		{
			name:         "circle",
			geometryType: constants.GeometryCircle,
			raw:          `{"center": {"x": 50, "y": 50}, "radius": 25}`,
			want: &Shape{
				Type:   constants.GeometryCircle,
				Circle: &Circle{Center: Point{50, 50}, Radius: 25},
			},
		},
		{
			name:         "point",
			geometryType: constants.GeometryPoint,
			raw:          `{"x": 42, "y": 7}`,
			want: &Shape{
				Type:  constants.GeometryPoint,
				Point: &Point{42, 7},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.geometryType, json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name         string
		geometryType constants.GeometryType
		raw          string
	}{
		{"unknown type", constants.GeometryType("triangle"), `{}`},
		{"empty payload", constants.GeometryLine, ``},
		{"not json", constants.GeometryLine, `not json`},
		{"line missing end", constants.GeometryLine, `{"start": {"x": 0, "y": 0}}`},
		{"line point missing y", constants.GeometryLine, `{"start": {"x": 0}, "end": {"x": 1, "y": 1}}`},
		{"polyline one point", constants.GeometryPolyline, `{"points": [{"x": 0, "y": 0}]}`},
		{"polygon two points", constants.GeometryPolygon, `{"points": [{"x": 0, "y": 0}, {"x": 1, "y": 1}]}`},
		{"rectangle zero width", constants.GeometryRectangle, `{"x": 0, "y": 0, "width": 0, "height": 10}`},
		{"rectangle negative height", constants.GeometryRectangle, `{"x": 0, "y": 0, "width": 10, "height": -1}`},
		{"circle zero radius", constants.GeometryCircle, `{"center": {"x": 0, "y": 0}, "radius": 0}`},
		{"circle string radius", constants.GeometryCircle, `{"center": {"x": 0, "y": 0}, "radius": "big"}`},
		{"point missing x", constants.GeometryPoint, `{"y": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.geometryType, json.RawMessage(tt.raw))
			if err == nil {
				t.Fatal("Decode succeeded, want validation error")
			}
			if !errors.Is(err, common.ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := Encode(Line{Start: Point{1, 2}, End: Point{3, 4}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	shape, err := Decode(constants.GeometryLine, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := &Line{Start: Point{1, 2}, End: Point{3, 4}}
	if diff := cmp.Diff(want, shape.Line); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
