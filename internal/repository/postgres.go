package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/entity"
)

type pgPageRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPageRepository(pool *pgxpool.Pool, logger *slog.Logger) PageRepository {
	return &pgPageRepository{pool: pool, logger: logger}
}

const pgPageColumns = `id, project_id, page_number, scale_text, scale_value, scale_unit,
	scale_calibrated, scale_detection_method, scale_calibration_data, created_at, updated_at`

func (r *pgPageRepository) Create(ctx context.Context, p *entity.Page) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pages (id, project_id, page_number, scale_text, scale_value, scale_unit,
			scale_calibrated, scale_detection_method, scale_calibration_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID.String(), p.ProjectID.String(), p.PageNumber, p.ScaleText, p.ScaleValue, p.ScaleUnit,
		p.ScaleCalibrated, p.ScaleDetectionMethod, []byte(p.ScaleCalibrationData), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create page", "page_id", p.ID, "error", err)
		return common.WrapError(err, "create page")
	}
	return nil
}

func (r *pgPageRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Page, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgPageColumns+` FROM pages WHERE id = $1`, id.String())
	p, err := scanPGPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("page " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to get page", "page_id", id, "error", err)
		return nil, common.WrapError(err, "get page")
	}
	return p, nil
}

func (r *pgPageRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pgPageColumns+` FROM pages WHERE project_id = $1 ORDER BY page_number`, projectID.String())
	if err != nil {
		r.logger.Error("failed to list pages", "project_id", projectID, "error", err)
		return nil, common.WrapError(err, "list pages")
	}
	defer rows.Close()

	var pages []*entity.Page
	for rows.Next() {
		p, err := scanPGPage(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan page")
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *pgPageRepository) UpdateCalibration(ctx context.Context, id uuid.UUID, cal entity.PageCalibration) error {
	var method *string
	if cal.Method != nil {
		s := string(*cal.Method)
		method = &s
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE pages
		SET scale_text = $2, scale_value = $3, scale_unit = $4, scale_calibrated = $5,
			scale_detection_method = $6, scale_calibration_data = $7, updated_at = $8
		WHERE id = $1`,
		id.String(), cal.ScaleText, cal.ScaleValue, cal.ScaleUnit, cal.Calibrated,
		method, []byte(cal.CalibrationData), time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to update page calibration", "page_id", id, "error", err)
		return common.WrapError(err, "update page calibration")
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("page " + id.String())
	}
	return nil
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanPGPage(row pgRow) (*entity.Page, error) {
	var (
		p          entity.Page
		idStr      string
		projectStr string
		method     *string
		calData    []byte
	)
	err := row.Scan(&idStr, &projectStr, &p.PageNumber, &p.ScaleText, &p.ScaleValue, &p.ScaleUnit,
		&p.ScaleCalibrated, &method, &calData, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if p.ProjectID, err = uuid.Parse(projectStr); err != nil {
		return nil, err
	}
	p.ScaleDetectionMethod = method
	p.ScaleCalibrationData = calData
	return &p, nil
}

type pgConditionRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewConditionRepository(pool *pgxpool.Pool, logger *slog.Logger) ConditionRepository {
	return &pgConditionRepository{pool: pool, logger: logger}
}

const pgConditionColumns = `id, project_id, name, measurement_type, unit, depth_inches,
	total_quantity, measurement_count, created_at, updated_at`

func (r *pgConditionRepository) Create(ctx context.Context, c *entity.Condition) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conditions (id, project_id, name, measurement_type, unit, depth_inches,
			total_quantity, measurement_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID.String(), c.ProjectID.String(), c.Name, string(c.MeasurementType), c.Unit, c.DepthInches,
		c.TotalQuantity, c.MeasurementCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create condition", "condition_id", c.ID, "error", err)
		return common.WrapError(err, "create condition")
	}
	return nil
}

func (r *pgConditionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Condition, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgConditionColumns+` FROM conditions WHERE id = $1`, id.String())
	c, err := scanPGCondition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("condition " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to get condition", "condition_id", id, "error", err)
		return nil, common.WrapError(err, "get condition")
	}
	return c, nil
}

func (r *pgConditionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Condition, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pgConditionColumns+` FROM conditions WHERE project_id = $1 ORDER BY name`, projectID.String())
	if err != nil {
		r.logger.Error("failed to list conditions", "project_id", projectID, "error", err)
		return nil, common.WrapError(err, "list conditions")
	}
	defer rows.Close()

	var conditions []*entity.Condition
	for rows.Next() {
		c, err := scanPGCondition(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan condition")
		}
		conditions = append(conditions, c)
	}
	return conditions, rows.Err()
}

func scanPGCondition(row pgRow) (*entity.Condition, error) {
	var (
		c          entity.Condition
		idStr      string
		projectStr string
		mType      string
	)
	err := row.Scan(&idStr, &projectStr, &c.Name, &mType, &c.Unit, &c.DepthInches,
		&c.TotalQuantity, &c.MeasurementCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if c.ProjectID, err = uuid.Parse(projectStr); err != nil {
		return nil, err
	}
	c.MeasurementType = constants.MeasurementType(mType)
	return &c, nil
}

type pgMeasurementRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMeasurementRepository(pool *pgxpool.Pool, logger *slog.Logger) MeasurementRepository {
	return &pgMeasurementRepository{pool: pool, logger: logger}
}

const pgMeasurementColumns = `id, condition_id, page_id, geometry_type, geometry_data, quantity,
	unit, is_ai_generated, ai_confidence, is_modified, notes, created_at, updated_at`

func (r *pgMeasurementRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Measurement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgMeasurementColumns+` FROM measurements WHERE id = $1`, id.String())
	m, err := scanPGMeasurement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("measurement " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to get measurement", "measurement_id", id, "error", err)
		return nil, common.WrapError(err, "get measurement")
	}
	return m, nil
}

func (r *pgMeasurementRepository) ListByCondition(ctx context.Context, conditionID uuid.UUID) ([]*entity.Measurement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pgMeasurementColumns+` FROM measurements WHERE condition_id = $1 ORDER BY created_at`, conditionID.String())
	if err != nil {
		r.logger.Error("failed to list measurements", "condition_id", conditionID, "error", err)
		return nil, common.WrapError(err, "list measurements")
	}
	defer rows.Close()

	var measurements []*entity.Measurement
	for rows.Next() {
		m, err := scanPGMeasurement(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan measurement")
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

func (r *pgMeasurementRepository) ListIDsByPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM measurements WHERE page_id = $1 ORDER BY created_at`, pageID.String())
	if err != nil {
		r.logger.Error("failed to list measurement ids", "page_id", pageID, "error", err)
		return nil, common.WrapError(err, "list measurement ids")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, common.WrapError(err, "scan measurement id")
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, common.WrapError(err, "parse measurement id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgMeasurementRepository) Insert(ctx context.Context, m *entity.Measurement) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	return r.inTx(ctx, m.ConditionID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO measurements (id, condition_id, page_id, geometry_type, geometry_data, quantity,
				unit, is_ai_generated, ai_confidence, is_modified, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			m.ID.String(), m.ConditionID.String(), m.PageID.String(), string(m.GeometryType),
			[]byte(m.GeometryData), m.Quantity, m.Unit, m.IsAIGenerated, m.AIConfidence,
			m.IsModified, m.Notes, m.CreatedAt, m.UpdatedAt)
		return err
	})
}

func (r *pgMeasurementRepository) Update(ctx context.Context, m *entity.Measurement) error {
	m.UpdatedAt = time.Now().UTC()
	return r.inTx(ctx, m.ConditionID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE measurements
			SET geometry_data = $2, quantity = $3, unit = $4, is_modified = $5, notes = $6, updated_at = $7
			WHERE id = $1`,
			m.ID.String(), []byte(m.GeometryData), m.Quantity, m.Unit, m.IsModified, m.Notes, m.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return common.NewNotFoundError("measurement " + m.ID.String())
		}
		return nil
	})
}

func (r *pgMeasurementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return common.WrapError(err, "begin delete measurement")
	}
	defer tx.Rollback(ctx)

	var conditionStr string
	err = tx.QueryRow(ctx, `DELETE FROM measurements WHERE id = $1 RETURNING condition_id`, id.String()).Scan(&conditionStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewNotFoundError("measurement " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to delete measurement", "measurement_id", id, "error", err)
		return common.WrapError(err, "delete measurement")
	}
	conditionID, err := uuid.Parse(conditionStr)
	if err != nil {
		return common.WrapError(err, "parse condition id")
	}
	if err := refreshPGAggregates(ctx, tx, conditionID); err != nil {
		return err
	}
	return common.WrapError(tx.Commit(ctx), "commit delete measurement")
}

// inTx runs fn and the condition aggregate refresh in one transaction so the
// measurement write and the condition totals commit together or not at all.
func (r *pgMeasurementRepository) inTx(ctx context.Context, conditionID uuid.UUID, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return common.WrapError(err, "begin measurement tx")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		r.logger.Error("measurement write failed", "condition_id", conditionID, "error", err)
		return common.WrapError(err, "measurement write")
	}
	if err := refreshPGAggregates(ctx, tx, conditionID); err != nil {
		return err
	}
	return common.WrapError(tx.Commit(ctx), "commit measurement tx")
}

// refreshPGAggregates recomputes the condition totals from a full aggregate
// query rather than incremental arithmetic, so concurrent writers cannot
// drift the denormalized fields.
func refreshPGAggregates(ctx context.Context, tx pgx.Tx, conditionID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE conditions
		SET total_quantity = agg.total, measurement_count = agg.n, updated_at = $2
		FROM (
			SELECT COALESCE(SUM(quantity), 0) AS total, COUNT(*) AS n
			FROM measurements WHERE condition_id = $1
		) agg
		WHERE conditions.id = $1`,
		conditionID.String(), time.Now().UTC())
	return common.WrapError(err, "refresh condition aggregates")
}

func scanPGMeasurement(row pgRow) (*entity.Measurement, error) {
	var (
		m            entity.Measurement
		idStr        string
		conditionStr string
		pageStr      string
		gType        string
		gData        []byte
	)
	err := row.Scan(&idStr, &conditionStr, &pageStr, &gType, &gData, &m.Quantity,
		&m.Unit, &m.IsAIGenerated, &m.AIConfidence, &m.IsModified, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if m.ConditionID, err = uuid.Parse(conditionStr); err != nil {
		return nil, err
	}
	if m.PageID, err = uuid.Parse(pageStr); err != nil {
		return nil, err
	}
	m.GeometryType = constants.GeometryType(gType)
	m.GeometryData = gData
	return &m, nil
}
