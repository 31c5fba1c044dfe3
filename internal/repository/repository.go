package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/internal/entity"
)

// PageRepository reads and writes drawing pages and their calibration state.
type PageRepository interface {
	Create(ctx context.Context, p *entity.Page) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Page, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Page, error)
	// UpdateCalibration replaces the page's calibration fields. Existing
	// measurements are not touched; recalculation is an explicit caller
	// action.
	UpdateCalibration(ctx context.Context, id uuid.UUID, cal entity.PageCalibration) error
}

// ConditionRepository reads and writes takeoff conditions.
type ConditionRepository interface {
	Create(ctx context.Context, c *entity.Condition) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Condition, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Condition, error)
}

// MeasurementRepository reads and writes measurements. Insert, Update and
// Delete each run in a single transaction that also refreshes the owning
// condition's denormalized totals with an aggregate query, so observers
// never see a measurement without a matching aggregate update and concurrent
// writers against one condition cannot lose updates.
type MeasurementRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Measurement, error)
	ListByCondition(ctx context.Context, conditionID uuid.UUID) ([]*entity.Measurement, error)
	ListIDsByPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error)
	Insert(ctx context.Context, m *entity.Measurement) error
	Update(ctx context.Context, m *entity.Measurement) error
	Delete(ctx context.Context, id uuid.UUID) error
}
