package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
)

// Line is the payload for geometry type "line".
type Line struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Path is the payload for geometry types "polyline" and "polygon".
type Path struct {
	Points []Point `json:"points"`
}

// Rect is the payload for geometry type "rectangle". Coordinates and sizes
// are pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Circle is the payload for geometry type "circle".
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// Shape is the decoded, validated form of a measurement's geometry_data.
// Exactly one payload field is set, selected by Type.
type Shape struct {
	Type   constants.GeometryType
	Line   *Line
	Path   *Path
	Rect   *Rect
	Circle *Circle
	Point  *Point
}

const pointDef = `{
	"type": "object",
	"properties": {"x": {"type": "number"}, "y": {"type": "number"}},
	"required": ["x", "y"]
}`

var (
	lineSchema = jsonschema.MustCompileString("line.json", `{
		"type": "object",
		"$defs": {"point": `+pointDef+`},
		"properties": {"start": {"$ref": "#/$defs/point"}, "end": {"$ref": "#/$defs/point"}},
		"required": ["start", "end"]
	}`)
	polylineSchema = jsonschema.MustCompileString("polyline.json", `{
		"type": "object",
		"$defs": {"point": `+pointDef+`},
		"properties": {"points": {"type": "array", "items": {"$ref": "#/$defs/point"}, "minItems": 2}},
		"required": ["points"]
	}`)
	polygonSchema = jsonschema.MustCompileString("polygon.json", `{
		"type": "object",
		"$defs": {"point": `+pointDef+`},
		"properties": {"points": {"type": "array", "items": {"$ref": "#/$defs/point"}, "minItems": 3}},
		"required": ["points"]
	}`)
	rectangleSchema = jsonschema.MustCompileString("rectangle.json", `{
		"type": "object",
		"properties": {
			"x": {"type": "number"},
			"y": {"type": "number"},
			"width": {"type": "number", "exclusiveMinimum": 0},
			"height": {"type": "number", "exclusiveMinimum": 0}
		},
		"required": ["x", "y", "width", "height"]
	}`)
	circleSchema = jsonschema.MustCompileString("circle.json", `{
		"type": "object",
		"$defs": {"point": `+pointDef+`},
		"properties": {"center": {"$ref": "#/$defs/point"}, "radius": {"type": "number", "exclusiveMinimum": 0}},
		"required": ["center", "radius"]
	}`)
	pointSchema = jsonschema.MustCompileString("point.json", pointDef)
)

var schemaByType = map[constants.GeometryType]*jsonschema.Schema{
	constants.GeometryLine:      lineSchema,
	constants.GeometryPolyline:  polylineSchema,
	constants.GeometryPolygon:   polygonSchema,
	constants.GeometryRectangle: rectangleSchema,
	constants.GeometryCircle:    circleSchema,
	constants.GeometryPoint:     pointSchema,
}

// Decode validates raw geometry_data against the schema for the given type
// and unmarshals it into a Shape. Validation failures wrap
// common.ErrValidation.
func Decode(geometryType constants.GeometryType, raw json.RawMessage) (*Shape, error) {
	schema, ok := schemaByType[geometryType]
	if !ok {
		return nil, common.NewValidationErrorf("unsupported geometry type %q", geometryType)
	}
	if len(raw) == 0 {
		return nil, common.NewValidationError("geometry_data is required")
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, common.NewValidationErrorf("geometry_data is not valid JSON: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, common.NewValidationErrorf("geometry_data does not match %s payload: %v", geometryType, err)
	}

	shape := &Shape{Type: geometryType}
	var err error
	switch geometryType {
	case constants.GeometryLine:
		shape.Line = &Line{}
		err = json.Unmarshal(raw, shape.Line)
	case constants.GeometryPolyline, constants.GeometryPolygon:
		shape.Path = &Path{}
		err = json.Unmarshal(raw, shape.Path)
	case constants.GeometryRectangle:
		shape.Rect = &Rect{}
		err = json.Unmarshal(raw, shape.Rect)
	case constants.GeometryCircle:
		shape.Circle = &Circle{}
		err = json.Unmarshal(raw, shape.Circle)
	case constants.GeometryPoint:
		shape.Point = &Point{}
		err = json.Unmarshal(raw, shape.Point)
	}
	if err != nil {
		return nil, common.NewValidationErrorf("decode %s payload: %v", geometryType, err)
	}
	return shape, nil
}

// Encode marshals a payload struct back to geometry_data JSON.
func Encode(payload any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode geometry payload: %w", err)
	}
	return b, nil
}
