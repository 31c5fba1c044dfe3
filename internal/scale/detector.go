package scale

import (
	"image"
	"log/slog"
	"regexp"
	"strings"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
)

// DetectionResult is the full outcome of scale detection for one page. It is
// persisted verbatim as the page's calibration audit blob.
type DetectionResult struct {
	ParsedScales     []ParsedScale `json:"parsed_scales"`
	ScaleBars        []Bar         `json:"scale_bars"`
	BestScale        *ParsedScale  `json:"best_scale"`
	NeedsCalibration bool          `json:"needs_calibration"`
}

// Calibration is the result of manual calibration from an operator-drawn
// reference line. EstimatedRatio is a diagnostic back-calculation at the
// assumed render DPI and is never used for further conversions.
type Calibration struct {
	PixelsPerFoot  float64                   `json:"pixels_per_foot"`
	EstimatedRatio float64                   `json:"estimated_ratio"`
	Method         constants.DetectionMethod `json:"method"`
	Confidence     float64                   `json:"confidence"`
}

// Detector runs the detection strategies (title-block candidates, full-page
// text search, graphical bars) and ranks candidates by confidence.
type Detector struct {
	cfg    common.DetectionConfig
	bars   *BarDetector
	logger *slog.Logger
}

func NewDetector(cfg common.DetectionConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, bars: NewBarDetector(cfg, logger), logger: logger}
}

// Fallback patterns for scanning unconstrained OCR text. Looser than the
// parser's own patterns on purpose; anything they catch still has to survive
// Parse.
var fullTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SCALE[:\s]+([^\r\n]{1,60})`),
	regexp.MustCompile(`\d+\s*/\s*\d+\s*["”]\s*=\s*[^,;\r\n]{1,20}`),
	regexp.MustCompile(`1\s*["”]\s*=\s*\d+(?:\.\d+)?\s*['’]`),
}

// Detect parses pre-identified title-block candidates, falls back to a
// full-page text scan with a confidence penalty, and appends raw bar
// candidates for operator review. img and ocrText may each be empty.
func (d *Detector) Detect(img image.Image, ocrText string, scaleTexts []string) *DetectionResult {
	result := &DetectionResult{}

	seen := make(map[string]bool)
	for _, text := range scaleTexts {
		parsed := Parse(text)
		if parsed == nil || seen[parsed.OriginalText] {
			continue
		}
		seen[parsed.OriginalText] = true
		parsed.Source = constants.MethodOCRPattern
		result.ParsedScales = append(result.ParsedScales, *parsed)
	}

	if ocrText != "" {
		for _, candidate := range d.scanFullText(ocrText) {
			parsed := Parse(candidate)
			if parsed == nil || seen[parsed.OriginalText] {
				continue
			}
			seen[parsed.OriginalText] = true
			parsed.Source = constants.MethodTextSearch
			// Unconstrained search is noisier than a title-block hit.
			parsed.Confidence *= d.cfg.TextSearchPenalty
			result.ParsedScales = append(result.ParsedScales, *parsed)
		}
	}

	if img != nil {
		result.ScaleBars = d.bars.Detect(img)
	}

	for i := range result.ParsedScales {
		p := &result.ParsedScales[i]
		if p.ScaleRatio <= 0 {
			continue
		}
		if result.BestScale == nil || p.Confidence > result.BestScale.Confidence {
			best := *p
			result.BestScale = &best
		}
	}
	result.NeedsCalibration = result.BestScale == nil

	d.logger.Info("scale detection complete",
		"parsed", len(result.ParsedScales),
		"bars", len(result.ScaleBars),
		"needs_calibration", result.NeedsCalibration)
	return result
}

// scanFullText returns candidate substrings that look like scale notations.
func (d *Detector) scanFullText(ocrText string) []string {
	var candidates []string
	for i, re := range fullTextPatterns {
		for _, m := range re.FindAllStringSubmatch(ocrText, -1) {
			text := m[0]
			if i == 0 && len(m) > 1 {
				// The SCALE: label pattern captures what follows the label.
				text = m[1]
			}
			text = strings.TrimSpace(text)
			if text != "" {
				candidates = append(candidates, text)
			}
		}
	}
	return candidates
}

// AutoApply reports whether a detected scale is confident enough to be set on
// the page without operator review.
func (d *Detector) AutoApply(p *ParsedScale) bool {
	return p != nil && p.ScaleRatio > 0 && p.Confidence >= d.cfg.AutoApplyThreshold
}

// CalibrateFromDistance computes pixels-per-foot from an operator-drawn
// reference line of known real-world length. Manual calibration is ground
// truth: the published scale of a drawing can differ from its plotted scale
// at render resolution.
func (d *Detector) CalibrateFromDistance(pixelDistance, realDistance float64, realUnit string) (*Calibration, error) {
	if pixelDistance <= 0 {
		return nil, common.NewValidationError("pixel distance must be positive")
	}
	if realDistance <= 0 {
		return nil, common.NewValidationError("real distance must be positive")
	}

	var realFeet float64
	switch strings.ToLower(strings.TrimSpace(realUnit)) {
	case "foot", "feet", "ft":
		realFeet = realDistance
	case "inch", "inches", "in":
		realFeet = realDistance / 12
	case "meter", "meters", "m":
		realFeet = realDistance * 3.28084
	default:
		return nil, common.NewValidationErrorf("unsupported unit %q", realUnit)
	}

	ppf := pixelDistance / realFeet
	return &Calibration{
		PixelsPerFoot:  ppf,
		EstimatedRatio: d.cfg.RenderDPI / ppf,
		Method:         constants.MethodManual,
		Confidence:     1.0,
	}, nil
}
