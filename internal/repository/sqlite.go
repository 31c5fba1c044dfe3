package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/estimatorhq/takeoff-engine/constants"
	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/entity"
)

// sqliteSchema mirrors db/schema.sql for the embedded store used by the
// local batch mode and the tests.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	scale_text TEXT,
	scale_value REAL,
	scale_unit TEXT,
	scale_calibrated INTEGER NOT NULL DEFAULT 0,
	scale_detection_method TEXT,
	scale_calibration_data TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conditions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	measurement_type TEXT NOT NULL,
	unit TEXT NOT NULL,
	depth_inches REAL,
	total_quantity REAL NOT NULL DEFAULT 0,
	measurement_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS measurements (
	id TEXT PRIMARY KEY,
	condition_id TEXT NOT NULL REFERENCES conditions(id),
	page_id TEXT NOT NULL REFERENCES pages(id),
	geometry_type TEXT NOT NULL,
	geometry_data TEXT NOT NULL,
	quantity REAL NOT NULL,
	unit TEXT NOT NULL,
	is_ai_generated INTEGER NOT NULL DEFAULT 0,
	ai_confidence REAL,
	is_modified INTEGER NOT NULL DEFAULT 0,
	notes TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_measurements_condition ON measurements(condition_id);
CREATE INDEX IF NOT EXISTS idx_measurements_page ON measurements(page_id);
`

// OpenSQLite opens an embedded SQLite database. Pass ":memory:" for an
// in-memory store. The connection pool is capped at one connection; SQLite
// serializes writers anyway and this keeps in-memory databases coherent.
func OpenSQLite(path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to open sqlite database", "path", path, "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, sqliteSchema)
	return common.WrapError(err, "ensure sqlite schema")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type sqlitePageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLitePageRepository(db *sql.DB, logger *slog.Logger) PageRepository {
	return &sqlitePageRepository{db: db, logger: logger}
}

const sqlitePageColumns = `id, project_id, page_number, scale_text, scale_value, scale_unit,
	scale_calibrated, scale_detection_method, scale_calibration_data, created_at, updated_at`

func (r *sqlitePageRepository) Create(ctx context.Context, p *entity.Page) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	var calData *string
	if len(p.ScaleCalibrationData) > 0 {
		s := string(p.ScaleCalibrationData)
		calData = &s
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pages (id, project_id, page_number, scale_text, scale_value, scale_unit,
			scale_calibrated, scale_detection_method, scale_calibration_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.ProjectID.String(), p.PageNumber, p.ScaleText, p.ScaleValue, p.ScaleUnit,
		p.ScaleCalibrated, p.ScaleDetectionMethod, calData, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		r.logger.Error("failed to create page", "page_id", p.ID, "error", err)
		return common.WrapError(err, "create page")
	}
	return nil
}

func (r *sqlitePageRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Page, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqlitePageColumns+` FROM pages WHERE id = ?`, id.String())
	p, err := scanSQLitePage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("page " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to get page", "page_id", id, "error", err)
		return nil, common.WrapError(err, "get page")
	}
	return p, nil
}

func (r *sqlitePageRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Page, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqlitePageColumns+` FROM pages WHERE project_id = ? ORDER BY page_number`, projectID.String())
	if err != nil {
		r.logger.Error("failed to list pages", "project_id", projectID, "error", err)
		return nil, common.WrapError(err, "list pages")
	}
	defer rows.Close()

	var pages []*entity.Page
	for rows.Next() {
		p, err := scanSQLitePage(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan page")
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *sqlitePageRepository) UpdateCalibration(ctx context.Context, id uuid.UUID, cal entity.PageCalibration) error {
	var method *string
	if cal.Method != nil {
		s := string(*cal.Method)
		method = &s
	}
	var calData *string
	if len(cal.CalibrationData) > 0 {
		s := string(cal.CalibrationData)
		calData = &s
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE pages
		SET scale_text = ?, scale_value = ?, scale_unit = ?, scale_calibrated = ?,
			scale_detection_method = ?, scale_calibration_data = ?, updated_at = ?
		WHERE id = ?`,
		cal.ScaleText, cal.ScaleValue, cal.ScaleUnit, cal.Calibrated,
		method, calData, formatTime(time.Now()), id.String())
	if err != nil {
		r.logger.Error("failed to update page calibration", "page_id", id, "error", err)
		return common.WrapError(err, "update page calibration")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewNotFoundError("page " + id.String())
	}
	return nil
}

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLitePage(row sqlRow) (*entity.Page, error) {
	var (
		p          entity.Page
		idStr      string
		projectStr string
		calData    *string
		created    string
		updated    string
	)
	err := row.Scan(&idStr, &projectStr, &p.PageNumber, &p.ScaleText, &p.ScaleValue, &p.ScaleUnit,
		&p.ScaleCalibrated, &p.ScaleDetectionMethod, &calData, &created, &updated)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if p.ProjectID, err = uuid.Parse(projectStr); err != nil {
		return nil, err
	}
	if calData != nil {
		p.ScaleCalibrationData = []byte(*calData)
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

type sqliteConditionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteConditionRepository(db *sql.DB, logger *slog.Logger) ConditionRepository {
	return &sqliteConditionRepository{db: db, logger: logger}
}

const sqliteConditionColumns = `id, project_id, name, measurement_type, unit, depth_inches,
	total_quantity, measurement_count, created_at, updated_at`

func (r *sqliteConditionRepository) Create(ctx context.Context, c *entity.Condition) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conditions (id, project_id, name, measurement_type, unit, depth_inches,
			total_quantity, measurement_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.ProjectID.String(), c.Name, string(c.MeasurementType), c.Unit, c.DepthInches,
		c.TotalQuantity, c.MeasurementCount, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		r.logger.Error("failed to create condition", "condition_id", c.ID, "error", err)
		return common.WrapError(err, "create condition")
	}
	return nil
}

func (r *sqliteConditionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Condition, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteConditionColumns+` FROM conditions WHERE id = ?`, id.String())
	c, err := scanSQLiteCondition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("condition " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to get condition", "condition_id", id, "error", err)
		return nil, common.WrapError(err, "get condition")
	}
	return c, nil
}

func (r *sqliteConditionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Condition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteConditionColumns+` FROM conditions WHERE project_id = ? ORDER BY name`, projectID.String())
	if err != nil {
		r.logger.Error("failed to list conditions", "project_id", projectID, "error", err)
		return nil, common.WrapError(err, "list conditions")
	}
	defer rows.Close()

	var conditions []*entity.Condition
	for rows.Next() {
		c, err := scanSQLiteCondition(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan condition")
		}
		conditions = append(conditions, c)
	}
	return conditions, rows.Err()
}

func scanSQLiteCondition(row sqlRow) (*entity.Condition, error) {
	var (
		c          entity.Condition
		idStr      string
		projectStr string
		mType      string
		created    string
		updated    string
	)
	err := row.Scan(&idStr, &projectStr, &c.Name, &mType, &c.Unit, &c.DepthInches,
		&c.TotalQuantity, &c.MeasurementCount, &created, &updated)
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
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

type sqliteMeasurementRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteMeasurementRepository(db *sql.DB, logger *slog.Logger) MeasurementRepository {
	return &sqliteMeasurementRepository{db: db, logger: logger}
}

const sqliteMeasurementColumns = `id, condition_id, page_id, geometry_type, geometry_data, quantity,
	unit, is_ai_generated, ai_confidence, is_modified, notes, created_at, updated_at`

func (r *sqliteMeasurementRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Measurement, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteMeasurementColumns+` FROM measurements WHERE id = ?`, id.String())
	m, err := scanSQLiteMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("measurement " + id.String())
	}
	if err != nil {
		r.logger.Error("failed to get measurement", "measurement_id", id, "error", err)
		return nil, common.WrapError(err, "get measurement")
	}
	return m, nil
}

func (r *sqliteMeasurementRepository) ListByCondition(ctx context.Context, conditionID uuid.UUID) ([]*entity.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteMeasurementColumns+` FROM measurements WHERE condition_id = ? ORDER BY created_at`, conditionID.String())
	if err != nil {
		r.logger.Error("failed to list measurements", "condition_id", conditionID, "error", err)
		return nil, common.WrapError(err, "list measurements")
	}
	defer rows.Close()

	var measurements []*entity.Measurement
	for rows.Next() {
		m, err := scanSQLiteMeasurement(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan measurement")
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

func (r *sqliteMeasurementRepository) ListIDsByPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM measurements WHERE page_id = ? ORDER BY created_at`, pageID.String())
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

func (r *sqliteMeasurementRepository) Insert(ctx context.Context, m *entity.Measurement) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	return r.inTx(ctx, m.ConditionID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO measurements (id, condition_id, page_id, geometry_type, geometry_data, quantity,
				unit, is_ai_generated, ai_confidence, is_modified, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID.String(), m.ConditionID.String(), m.PageID.String(), string(m.GeometryType),
			string(m.GeometryData), m.Quantity, m.Unit, m.IsAIGenerated, m.AIConfidence,
			m.IsModified, m.Notes, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
		return err
	})
}

func (r *sqliteMeasurementRepository) Update(ctx context.Context, m *entity.Measurement) error {
	m.UpdatedAt = time.Now().UTC()
	return r.inTx(ctx, m.ConditionID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE measurements
			SET geometry_data = ?, quantity = ?, unit = ?, is_modified = ?, notes = ?, updated_at = ?
			WHERE id = ?`,
			string(m.GeometryData), m.Quantity, m.Unit, m.IsModified, m.Notes, formatTime(m.UpdatedAt), m.ID.String())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.NewNotFoundError("measurement " + m.ID.String())
		}
		return nil
	})
}

func (r *sqliteMeasurementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin delete measurement")
	}
	defer tx.Rollback()

	var conditionStr string
	err = tx.QueryRowContext(ctx, `SELECT condition_id FROM measurements WHERE id = ?`, id.String()).Scan(&conditionStr)
	if errors.Is(err, sql.ErrNoRows) {
		return common.NewNotFoundError("measurement " + id.String())
	}
	if err != nil {
		return common.WrapError(err, "resolve measurement condition")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM measurements WHERE id = ?`, id.String()); err != nil {
		r.logger.Error("failed to delete measurement", "measurement_id", id, "error", err)
		return common.WrapError(err, "delete measurement")
	}
	conditionID, err := uuid.Parse(conditionStr)
	if err != nil {
		return common.WrapError(err, "parse condition id")
	}
	if err := refreshSQLiteAggregates(ctx, tx, conditionID); err != nil {
		return err
	}
	return common.WrapError(tx.Commit(), "commit delete measurement")
}

func (r *sqliteMeasurementRepository) inTx(ctx context.Context, conditionID uuid.UUID, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin measurement tx")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		r.logger.Error("measurement write failed", "condition_id", conditionID, "error", err)
		return common.WrapError(err, "measurement write")
	}
	if err := refreshSQLiteAggregates(ctx, tx, conditionID); err != nil {
		return err
	}
	return common.WrapError(tx.Commit(), "commit measurement tx")
}

func refreshSQLiteAggregates(ctx context.Context, tx *sql.Tx, conditionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE conditions
		SET total_quantity = (SELECT COALESCE(SUM(quantity), 0) FROM measurements WHERE condition_id = ?),
			measurement_count = (SELECT COUNT(*) FROM measurements WHERE condition_id = ?),
			updated_at = ?
		WHERE id = ?`,
		conditionID.String(), conditionID.String(), formatTime(time.Now()), conditionID.String())
	return common.WrapError(err, "refresh condition aggregates")
}

func scanSQLiteMeasurement(row sqlRow) (*entity.Measurement, error) {
	var (
		m            entity.Measurement
		idStr        string
		conditionStr string
		pageStr      string
		gType        string
		gData        string
		created      string
		updated      string
	)
	err := row.Scan(&idStr, &conditionStr, &pageStr, &gType, &gData, &m.Quantity,
		&m.Unit, &m.IsAIGenerated, &m.AIConfidence, &m.IsModified, &m.Notes, &created, &updated)
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
	m.GeometryData = []byte(gData)
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}
