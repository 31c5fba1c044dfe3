package tasks

import (
	"context"
	"encoding/json"
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/entity"
	"github.com/estimatorhq/takeoff-engine/internal/repository"
	"github.com/estimatorhq/takeoff-engine/internal/scale"
)

// DetectionService runs scale detection for pages and applies the results.
// It is the side-effecting wrapper around the pure scale.Detector, suitable
// for dispatch from an external scheduler.
type DetectionService struct {
	detector *scale.Detector
	pages    repository.PageRepository
	cfg      common.DetectionConfig
	logger   *slog.Logger
}

func NewDetectionService(cfg common.DetectionConfig, pages repository.PageRepository, logger *slog.Logger) *DetectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectionService{
		detector: scale.NewDetector(cfg, logger),
		pages:    pages,
		cfg:      cfg,
		logger:   logger,
	}
}

// DetectPage runs detection over the page image and OCR text and persists the
// outcome. The best scale is applied automatically only when its confidence
// meets the auto-apply threshold; otherwise the page keeps its current
// calibration and only the audit blob and scale text are refreshed. A page
// calibrated manually is never auto-applied over, at any confidence.
func (s *DetectionService) DetectPage(ctx context.Context, pageID uuid.UUID, img image.Image, ocrText string, scaleTexts []string) (*scale.DetectionResult, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}

	result := s.detector.Detect(img, ocrText, scaleTexts)
	calData, err := json.Marshal(result)
	if err != nil {
		return nil, common.WrapError(err, "marshal detection result")
	}

	cal := entity.PageCalibration{
		ScaleText:       page.ScaleText,
		ScaleValue:      page.ScaleValue,
		ScaleUnit:       page.ScaleUnit,
		Calibrated:      page.ScaleCalibrated,
		CalibrationData: calData,
	}
	if page.ScaleDetectionMethod != nil {
		m := constants.DetectionMethod(*page.ScaleDetectionMethod)
		cal.Method = &m
	}

	manual := page.ScaleDetectionMethod != nil &&
		*page.ScaleDetectionMethod == string(constants.MethodManual)

	if best := result.BestScale; best != nil {
		text := best.OriginalText
		cal.ScaleText = &text
		switch {
		case manual:
			// Manual calibration is ground truth; detected text is advisory.
			s.logger.Info("scale detected but page is manually calibrated",
				"page_id", pageID,
				"scale_text", best.OriginalText,
				"confidence", best.Confidence)
		case s.detector.AutoApply(best):
			ppf, _ := best.PixelsPerFoot(s.cfg.RenderDPI)
			unit := best.RealUnit
			method := best.Source
			cal.ScaleValue = &ppf
			cal.ScaleUnit = &unit
			cal.Calibrated = true
			cal.Method = &method
			s.logger.Info("scale auto-applied",
				"page_id", pageID,
				"scale_text", best.OriginalText,
				"pixels_per_foot", ppf,
				"confidence", best.Confidence)
		default:
			s.logger.Info("scale detected below auto-apply threshold",
				"page_id", pageID,
				"scale_text", best.OriginalText,
				"confidence", best.Confidence)
		}
	} else {
		s.logger.Info("no usable scale detected", "page_id", pageID)
	}

	if err := s.pages.UpdateCalibration(ctx, pageID, cal); err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyManualCalibration calibrates a page from an operator-drawn reference
// line. Manual calibration is ground truth: it always applies, regardless of
// what detection previously found.
func (s *DetectionService) ApplyManualCalibration(ctx context.Context, pageID uuid.UUID, pixelDistance, realDistance float64, realUnit string) (*scale.Calibration, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}

	cal, err := s.detector.CalibrateFromDistance(pixelDistance, realDistance, realUnit)
	if err != nil {
		return nil, err
	}

	unit := constants.UnitFoot
	method := cal.Method
	update := entity.PageCalibration{
		ScaleText:       page.ScaleText,
		ScaleValue:      &cal.PixelsPerFoot,
		ScaleUnit:       &unit,
		Calibrated:      true,
		Method:          &method,
		CalibrationData: page.ScaleCalibrationData,
	}
	if err := s.pages.UpdateCalibration(ctx, pageID, update); err != nil {
		return nil, err
	}

	s.logger.Info("manual calibration applied",
		"page_id", pageID,
		"pixels_per_foot", cal.PixelsPerFoot,
		"estimated_ratio", cal.EstimatedRatio)
	return cal, nil
}
