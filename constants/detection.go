package constants

// DetectionMethod records how a page's scale calibration was obtained.
type DetectionMethod string

// Stable values (store these exact strings in DB).
const (
	MethodOCRPattern   DetectionMethod = "ocr_pattern"        // parsed from a pre-identified title-block candidate
	MethodTextSearch   DetectionMethod = "text_search"        // parsed from an unconstrained full-page scan
	MethodGraphicalBar DetectionMethod = "graphical_bar"      // resolved from a detected scale bar
	MethodManual       DetectionMethod = "manual_calibration" // operator-drawn reference line, ground truth
)

// Drawing/real unit labels carried on parsed scale notations.
const (
	UnitInch = "inch"
	UnitFoot = "foot"
	UnitUnit = "unit"
)
