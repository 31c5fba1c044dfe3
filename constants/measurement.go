package constants

import "strings"

// MeasurementType is the canonical takeoff quantity kind for a condition.
type MeasurementType string

// Stable values (store these exact strings in DB).
const (
	MeasurementLinear MeasurementType = "linear"
	MeasurementArea   MeasurementType = "area"
	MeasurementVolume MeasurementType = "volume"
	MeasurementCount  MeasurementType = "count"
)

var allMeasurementTypes = []MeasurementType{
	MeasurementLinear,
	MeasurementArea,
	MeasurementVolume,
	MeasurementCount,
}

// unitByType is the fixed unit map for stored measurement quantities.
var unitByType = map[MeasurementType]string{
	MeasurementLinear: "LF",
	MeasurementArea:   "SF",
	MeasurementVolume: "CY",
	MeasurementCount:  "EA",
}

// UnitFor returns the stored unit string for a measurement type.
func UnitFor(t MeasurementType) string {
	if u, ok := unitByType[t]; ok {
		return u
	}
	return ""
}

// ParseMeasurementType canonicalizes free-form input to a MeasurementType.
func ParseMeasurementType(input string) (MeasurementType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, t := range allMeasurementTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return "", false
}

// GeometryType identifies the pixel-space shape stored on a measurement.
type GeometryType string

const (
	GeometryLine      GeometryType = "line"
	GeometryPolyline  GeometryType = "polyline"
	GeometryPolygon   GeometryType = "polygon"
	GeometryRectangle GeometryType = "rectangle"
	GeometryCircle    GeometryType = "circle"
	GeometryPoint     GeometryType = "point"
)

var allGeometryTypes = []GeometryType{
	GeometryLine,
	GeometryPolyline,
	GeometryPolygon,
	GeometryRectangle,
	GeometryCircle,
	GeometryPoint,
}

// ValidGeometryType reports whether t is one of the six supported shapes.
func ValidGeometryType(t GeometryType) bool {
	for _, g := range allGeometryTypes {
		if t == g {
			return true
		}
	}
	return false
}

// GeometryTypeStrings returns the supported geometry types as strings.
func GeometryTypeStrings() []string {
	result := make([]string, len(allGeometryTypes))
	for i, g := range allGeometryTypes {
		result[i] = string(g)
	}
	return result
}
