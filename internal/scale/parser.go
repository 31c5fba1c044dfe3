package scale

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/estimatorhq/takeoff-engine/constants"
)

// ParsedScale is the structured form of a scale notation found on a drawing.
// A ScaleRatio of 0 is the "not to scale" sentinel and is never usable for
// conversion.
type ParsedScale struct {
	OriginalText string                    `json:"original_text"`
	ScaleRatio   float64                   `json:"scale_ratio"`
	DrawingUnit  string                    `json:"drawing_unit"`
	RealUnit     string                    `json:"real_unit"`
	IsMetric     bool                      `json:"is_metric"`
	Confidence   float64                   `json:"confidence"`
	Source       constants.DetectionMethod `json:"source,omitempty"`
}

// PixelsPerFoot derives the calibration factor for a page rendered at the
// given DPI. Returns false for the not-to-scale sentinel.
func (p ParsedScale) PixelsPerFoot(dpi float64) (float64, bool) {
	if p.ScaleRatio <= 0 || dpi <= 0 {
		return 0, false
	}
	return dpi / p.ScaleRatio, true
}

// parseConfidence is the confidence for any direct pattern match. Callers
// searching unconstrained text apply their own penalty on top.
const parseConfidence = 0.9

// The nine standard architectural scales, keyed by the inch fraction on the
// left side of the notation.
var architecturalRatios = map[string]float64{
	"3":    4,
	"1":    12,
	"3/4":  16,
	"1/2":  24,
	"3/8":  32,
	"1/4":  48,
	"3/16": 64,
	"1/8":  96,
	"1/16": 192,
}

var (
	// e.g. 1/4" = 1'-0", 3" = 1'-0", 1/8"=1'
	architecturalRe = regexp.MustCompile(`(\d+)(?:\s*/\s*(\d+))?\s*["”]\s*=\s*1\s*['’](?:\s*-?\s*0\s*["”])?`)
	// e.g. 1" = 50'
	engineeringRe = regexp.MustCompile(`1\s*["”]\s*=\s*(\d+(?:\.\d+)?)\s*['’]`)
	// e.g. 1:100
	ratioRe = regexp.MustCompile(`\b1\s*:\s*(\d+(?:\.\d+)?)\b`)
	// e.g. NOT TO SCALE, N.T.S.
	notToScaleRe = regexp.MustCompile(`(?i)\bNOT\s+TO\s+SCALE\b|\bN\.?\s*T\.?\s*S\b\.?`)
)

// Parse matches text against the known scale notation families, first match
// wins. Returns nil when no pattern matches.
func Parse(text string) *ParsedScale {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if m := architecturalRe.FindStringSubmatch(trimmed); m != nil {
		num, _ := strconv.ParseFloat(m[1], 64)
		den := 1.0
		key := m[1]
		if m[2] != "" {
			den, _ = strconv.ParseFloat(m[2], 64)
			key = m[1] + "/" + m[2]
		}
		if den == 0 || num == 0 {
			return nil
		}
		ratio, ok := architecturalRatios[key]
		if !ok {
			// Unlisted fractions still resolve: n/d inches per foot.
			ratio = 12 / (num / den)
		}
		return &ParsedScale{
			OriginalText: trimmed,
			ScaleRatio:   ratio,
			DrawingUnit:  constants.UnitInch,
			RealUnit:     constants.UnitFoot,
			Confidence:   parseConfidence,
		}
	}

	if m := engineeringRe.FindStringSubmatch(trimmed); m != nil {
		feet, _ := strconv.ParseFloat(m[1], 64)
		if feet == 0 {
			return nil
		}
		return &ParsedScale{
			OriginalText: trimmed,
			ScaleRatio:   12 * feet,
			DrawingUnit:  constants.UnitInch,
			RealUnit:     constants.UnitFoot,
			Confidence:   parseConfidence,
		}
	}

	if m := ratioRe.FindStringSubmatch(trimmed); m != nil {
		ratio, _ := strconv.ParseFloat(m[1], 64)
		if ratio == 0 {
			return nil
		}
		return &ParsedScale{
			OriginalText: trimmed,
			ScaleRatio:   ratio,
			DrawingUnit:  constants.UnitUnit,
			RealUnit:     constants.UnitUnit,
			IsMetric:     true,
			Confidence:   parseConfidence,
		}
	}

	if notToScaleRe.MatchString(trimmed) {
		// Valid parse, unusable for conversion; callers treat ratio 0 as
		// needing manual calibration.
		return &ParsedScale{
			OriginalText: trimmed,
			ScaleRatio:   0,
			DrawingUnit:  constants.UnitUnit,
			RealUnit:     constants.UnitUnit,
			Confidence:   parseConfidence,
		}
	}

	return nil
}
