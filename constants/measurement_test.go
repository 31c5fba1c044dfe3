package constants

import "testing"

func TestUnitFor(t *testing.T) {
	tests := []struct {
		mt   MeasurementType
		want string
	}{
		{MeasurementLinear, "LF"},
		{MeasurementArea, "SF"},
		{MeasurementVolume, "CY"},
		{MeasurementCount, "EA"},
		{MeasurementType("bogus"), ""},
	}
	for _, tt := range tests {
		if got := UnitFor(tt.mt); got != tt.want {
			t.Errorf("UnitFor(%s) = %q, want %q", tt.mt, got, tt.want)
		}
	}
}

func TestParseMeasurementType(t *testing.T) {
	tests := []struct {
		input string
		want  MeasurementType
		ok    bool
	}{
		{"linear", MeasurementLinear, true},
		{"AREA", MeasurementArea, true},
		{" volume ", MeasurementVolume, true},
		{"Count", MeasurementCount, true},
		{"perimeter", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMeasurementType(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMeasurementType(%q) = %s/%v, want %s/%v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidGeometryType(t *testing.T) {
	for _, g := range []GeometryType{GeometryLine, GeometryPolyline, GeometryPolygon, GeometryRectangle, GeometryCircle, GeometryPoint} {
		if !ValidGeometryType(g) {
			t.Errorf("ValidGeometryType(%s) = false", g)
		}
	}
	if ValidGeometryType("triangle") {
		t.Error(`ValidGeometryType("triangle") = true`)
	}
	if got := len(GeometryTypeStrings()); got != 6 {
		t.Errorf("GeometryTypeStrings() has %d entries, want 6", got)
	}
}
