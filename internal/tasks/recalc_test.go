package tasks

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/entity"
	"github.com/estimatorhq/takeoff-engine/internal/measure"
	"github.com/estimatorhq/takeoff-engine/internal/repository"
)

type recalcFixture struct {
	svc          *RecalcService
	pages        repository.PageRepository
	conditions   repository.ConditionRepository
	measurements repository.MeasurementRepository
	pageID       uuid.UUID
	conditionID  uuid.UUID
}

func newRecalcFixture(t *testing.T) *recalcFixture {
	t.Helper()
	logger := testLogger()
	ctx := context.Background()

	db, err := repository.OpenSQLite(":memory:", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := repository.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	pages := repository.NewSQLitePageRepository(db, logger)
	conditions := repository.NewSQLiteConditionRepository(db, logger)
	measurements := repository.NewSQLiteMeasurementRepository(db, logger)
	engine := measure.NewEngine(pages, conditions, measurements, logger)

	projectID := uuid.New()
	ppf := 10.0
	unit := constants.UnitFoot
	page := &entity.Page{
		ID:              uuid.New(),
		ProjectID:       projectID,
		PageNumber:      1,
		ScaleValue:      &ppf,
		ScaleUnit:       &unit,
		ScaleCalibrated: true,
	}
	if err := pages.Create(ctx, page); err != nil {
		t.Fatalf("create page: %v", err)
	}
	condition := &entity.Condition{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Name:            "water line",
		MeasurementType: constants.MeasurementLinear,
		Unit:            "LF",
	}
	if err := conditions.Create(ctx, condition); err != nil {
		t.Fatalf("create condition: %v", err)
	}

	return &recalcFixture{
		svc:          NewRecalcService(engine, measurements, 4, logger),
		pages:        pages,
		conditions:   conditions,
		measurements: measurements,
		pageID:       page.ID,
		conditionID:  condition.ID,
	}
}

func (f *recalcFixture) addLine(t *testing.T, lengthPx float64) uuid.UUID {
	t.Helper()
	raw, _ := json.Marshal(map[string]any{
		"start": map[string]float64{"x": 0, "y": 0},
		"end":   map[string]float64{"x": lengthPx, "y": 0},
	})
	m := &entity.Measurement{
		ID:           uuid.New(),
		ConditionID:  f.conditionID,
		PageID:       f.pageID,
		GeometryType: constants.GeometryLine,
		GeometryData: raw,
		Quantity:     lengthPx / 10,
		Unit:         "LF",
	}
	if err := f.measurements.Insert(context.Background(), m); err != nil {
		t.Fatalf("insert measurement: %v", err)
	}
	return m.ID
}

func (f *recalcFixture) setScale(t *testing.T, ppf float64) {
	t.Helper()
	unit := constants.UnitFoot
	method := constants.MethodManual
	err := f.pages.UpdateCalibration(context.Background(), f.pageID, entity.PageCalibration{
		ScaleValue: &ppf,
		ScaleUnit:  &unit,
		Calibrated: true,
		Method:     &method,
	})
	if err != nil {
		t.Fatalf("update calibration: %v", err)
	}
}

func TestRecalculatePageAfterScaleChange(t *testing.T) {
	f := newRecalcFixture(t)
	ctx := context.Background()

	ids := []uuid.UUID{f.addLine(t, 100), f.addLine(t, 200)}

	// Halve the scale, quantities double.
	f.setScale(t, 5)

	summary, err := f.svc.RecalculatePage(ctx, f.pageID)
	if err != nil {
		t.Fatalf("RecalculatePage: %v", err)
	}
	if summary.Total != 2 || summary.Succeeded != 2 || len(summary.Failures) != 0 {
		t.Fatalf("summary = %+v, want 2/2/0", summary)
	}

	for i, want := range []float64{20, 40} {
		m, err := f.measurements.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if math.Abs(m.Quantity-want) > 1e-9 {
			t.Errorf("measurement %d quantity = %v, want %v", i, m.Quantity, want)
		}
	}

	c, err := f.conditions.GetByID(ctx, f.conditionID)
	if err != nil {
		t.Fatalf("get condition: %v", err)
	}
	if math.Abs(c.TotalQuantity-60) > 1e-9 || c.MeasurementCount != 2 {
		t.Errorf("aggregates = %v/%d, want 60/2", c.TotalQuantity, c.MeasurementCount)
	}
}

func TestRecalculateCondition(t *testing.T) {
	f := newRecalcFixture(t)
	ctx := context.Background()

	f.addLine(t, 100)
	f.setScale(t, 20)

	summary, err := f.svc.RecalculateCondition(ctx, f.conditionID)
	if err != nil {
		t.Fatalf("RecalculateCondition: %v", err)
	}
	if summary.Total != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, want 1/1", summary)
	}

	c, _ := f.conditions.GetByID(ctx, f.conditionID)
	if math.Abs(c.TotalQuantity-5) > 1e-9 {
		t.Errorf("total = %v, want 5", c.TotalQuantity)
	}
}

func TestRecalculateReportsPerMeasurementFailures(t *testing.T) {
	f := newRecalcFixture(t)
	ctx := context.Background()

	f.addLine(t, 100)

	// Losing the calibration fails every recalculation without erroring the
	// batch itself.
	if err := f.pages.UpdateCalibration(ctx, f.pageID, entity.PageCalibration{Calibrated: false}); err != nil {
		t.Fatalf("update calibration: %v", err)
	}

	summary, err := f.svc.RecalculatePage(ctx, f.pageID)
	if err != nil {
		t.Fatalf("RecalculatePage: %v", err)
	}
	if summary.Total != 1 || summary.Succeeded != 0 || len(summary.Failures) != 1 {
		t.Errorf("summary = %+v, want 1/0/1", summary)
	}
}

func TestRecalculateEmptyPage(t *testing.T) {
	f := newRecalcFixture(t)

	summary, err := f.svc.RecalculatePage(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("RecalculatePage: %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("summary = %+v, want empty", summary)
	}
}
