package measure

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/entity"
	"github.com/estimatorhq/takeoff-engine/internal/geometry"
	"github.com/estimatorhq/takeoff-engine/internal/repository"
)

// Engine is the measurement CRUD orchestrator. It is stateless and
// reentrant; every mutation is one atomic store operation that also refreshes
// the owning condition's denormalized totals.
type Engine struct {
	pages        repository.PageRepository
	conditions   repository.ConditionRepository
	measurements repository.MeasurementRepository
	logger       *slog.Logger
}

func NewEngine(pages repository.PageRepository, conditions repository.ConditionRepository, measurements repository.MeasurementRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pages:        pages,
		conditions:   conditions,
		measurements: measurements,
		logger:       logger,
	}
}

// CreateRequest carries the inputs for a new measurement.
type CreateRequest struct {
	ConditionID   uuid.UUID
	PageID        uuid.UUID
	GeometryType  constants.GeometryType
	GeometryData  json.RawMessage
	IsAIGenerated bool
	AIConfidence  *float64
	Notes         *string
}

// UpdateRequest carries a measurement mutation. A nil GeometryData leaves the
// geometry (and quantity) untouched; a nil Notes leaves the notes untouched.
type UpdateRequest struct {
	GeometryData json.RawMessage
	Notes        *string
}

// Create validates the request, derives the quantity from the page's current
// calibration, and persists the measurement together with the condition
// aggregate refresh.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*entity.Measurement, error) {
	if !constants.ValidGeometryType(req.GeometryType) {
		return nil, common.NewValidationErrorf("unsupported geometry type %q", req.GeometryType)
	}

	condition, err := e.conditions.GetByID(ctx, req.ConditionID)
	if err != nil {
		return nil, err
	}
	page, err := e.pages.GetByID(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	if !page.Calibrated() {
		return nil, common.NewCalibrationError("page " + page.ID.String() + " has no scale calibration")
	}

	shape, err := geometry.Decode(req.GeometryType, req.GeometryData)
	if err != nil {
		return nil, err
	}
	quantity, err := e.quantityFor(condition, page, shape)
	if err != nil {
		return nil, err
	}

	m := &entity.Measurement{
		ID:            uuid.New(),
		ConditionID:   condition.ID,
		PageID:        page.ID,
		GeometryType:  req.GeometryType,
		GeometryData:  req.GeometryData,
		Quantity:      quantity,
		Unit:          constants.UnitFor(condition.MeasurementType),
		IsAIGenerated: req.IsAIGenerated,
		AIConfidence:  req.AIConfidence,
		Notes:         req.Notes,
	}
	if err := e.measurements.Insert(ctx, m); err != nil {
		return nil, err
	}

	e.logger.Info("measurement created",
		"measurement_id", m.ID,
		"condition_id", condition.ID,
		"page_id", page.ID,
		"geometry_type", m.GeometryType,
		"quantity", m.Quantity,
		"unit", m.Unit)
	return m, nil
}

// Update mutates geometry and/or notes. Geometry changes recalculate the
// quantity against the page's current calibration and mark the measurement
// modified. Condition aggregates are refreshed either way; the refresh is
// cheap and idempotent.
func (e *Engine) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*entity.Measurement, error) {
	m, err := e.measurements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.GeometryData != nil {
		condition, err := e.conditions.GetByID(ctx, m.ConditionID)
		if err != nil {
			return nil, err
		}
		page, err := e.pages.GetByID(ctx, m.PageID)
		if err != nil {
			return nil, err
		}
		if !page.Calibrated() {
			return nil, common.NewCalibrationError("page " + page.ID.String() + " has no scale calibration")
		}
		shape, err := geometry.Decode(m.GeometryType, req.GeometryData)
		if err != nil {
			return nil, err
		}
		quantity, err := e.quantityFor(condition, page, shape)
		if err != nil {
			return nil, err
		}
		m.GeometryData = req.GeometryData
		m.Quantity = quantity
		m.Unit = constants.UnitFor(condition.MeasurementType)
		m.IsModified = true
	}
	if req.Notes != nil {
		m.Notes = req.Notes
	}

	if err := e.measurements.Update(ctx, m); err != nil {
		return nil, err
	}
	e.logger.Info("measurement updated", "measurement_id", m.ID, "quantity", m.Quantity)
	return m, nil
}

// Delete removes the measurement and refreshes the condition aggregates.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	if err := e.measurements.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("measurement deleted", "measurement_id", id)
	return nil
}

// Recalculate re-derives the quantity from the stored geometry against the
// page's current scale value. This is the remediation path after a scale
// correction; it takes no new geometry input and is idempotent.
func (e *Engine) Recalculate(ctx context.Context, id uuid.UUID) (*entity.Measurement, error) {
	m, err := e.measurements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	condition, err := e.conditions.GetByID(ctx, m.ConditionID)
	if err != nil {
		return nil, err
	}
	page, err := e.pages.GetByID(ctx, m.PageID)
	if err != nil {
		return nil, err
	}
	if !page.Calibrated() {
		return nil, common.NewCalibrationError("page " + page.ID.String() + " lost its scale calibration")
	}

	shape, err := geometry.Decode(m.GeometryType, m.GeometryData)
	if err != nil {
		return nil, err
	}
	quantity, err := e.quantityFor(condition, page, shape)
	if err != nil {
		return nil, err
	}

	m.Quantity = quantity
	m.Unit = constants.UnitFor(condition.MeasurementType)
	if err := e.measurements.Update(ctx, m); err != nil {
		return nil, err
	}
	e.logger.Info("measurement recalculated", "measurement_id", m.ID, "quantity", m.Quantity)
	return m, nil
}

// quantityFor computes the stored quantity. The numeric field extracted is
// selected by the condition's measurement type, not by the geometry alone: a
// polygon under a linear condition stores its perimeter, not its area.
func (e *Engine) quantityFor(condition *entity.Condition, page *entity.Page, shape *geometry.Shape) (float64, error) {
	calc, err := NewCalculator(*page.ScaleValue)
	if err != nil {
		return 0, err
	}

	// Count conditions count markers: one per measurement, any shape.
	if condition.MeasurementType == constants.MeasurementCount {
		return 1, nil
	}
	if shape.Type == constants.GeometryPoint {
		return 0, common.NewValidationErrorf("point geometry requires a count condition, got %q", condition.MeasurementType)
	}

	// The condition may want a volume the geometry can only deliver with a
	// depth; without one we degrade to area.
	depth := condition.DepthInches

	switch condition.MeasurementType {
	case constants.MeasurementLinear:
		switch shape.Type {
		case constants.GeometryLine:
			return calc.Line(shape.Line.Start, shape.Line.End).LengthFeet, nil
		case constants.GeometryPolyline:
			res, err := calc.Polyline(shape.Path.Points)
			if err != nil {
				return 0, err
			}
			return res.LengthFeet, nil
		case constants.GeometryPolygon:
			res, err := calc.Polygon(shape.Path.Points, nil)
			if err != nil {
				return 0, err
			}
			return res.PerimeterFeet, nil
		case constants.GeometryRectangle:
			res, err := calc.Rectangle(*shape.Rect, nil)
			if err != nil {
				return 0, err
			}
			return res.PerimeterFeet, nil
		case constants.GeometryCircle:
			res, err := calc.Circle(shape.Circle.Center, shape.Circle.Radius, nil)
			if err != nil {
				return 0, err
			}
			return res.CircumferenceFeet, nil
		}

	case constants.MeasurementArea, constants.MeasurementVolume:
		wantVolume := condition.MeasurementType == constants.MeasurementVolume && depth != nil
		var area float64
		switch shape.Type {
		case constants.GeometryPolygon:
			res, err := calc.Polygon(shape.Path.Points, depth)
			if err != nil {
				return 0, err
			}
			if wantVolume {
				return *res.VolumeCubicYards, nil
			}
			area = res.AreaSquareFeet
		case constants.GeometryRectangle:
			res, err := calc.Rectangle(*shape.Rect, depth)
			if err != nil {
				return 0, err
			}
			if wantVolume {
				return *res.VolumeCubicYards, nil
			}
			area = res.AreaSquareFeet
		case constants.GeometryCircle:
			res, err := calc.Circle(shape.Circle.Center, shape.Circle.Radius, depth)
			if err != nil {
				return 0, err
			}
			if wantVolume {
				return *res.VolumeCubicYards, nil
			}
			area = res.AreaSquareFeet
		default:
			return 0, common.NewValidationErrorf("%s geometry has no area for %q condition", shape.Type, condition.MeasurementType)
		}
		if condition.MeasurementType == constants.MeasurementVolume && depth == nil {
			e.logger.Warn("volume condition has no depth, storing area",
				"condition_id", condition.ID)
		}
		return area, nil
	}

	return 0, common.NewValidationErrorf("cannot measure %s geometry for %q condition", shape.Type, condition.MeasurementType)
}
