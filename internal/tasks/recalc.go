package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/estimatorhq/takeoff-engine/internal/measure"
	"github.com/estimatorhq/takeoff-engine/internal/repository"
)

// RecalcService re-derives measurement quantities after a scale change.
// Recalculations run with bounded parallelism; each measurement remains an
// independent atomic operation, so one failure neither blocks nor corrupts
// the others.
type RecalcService struct {
	engine       *measure.Engine
	measurements repository.MeasurementRepository
	workers      int64
	logger       *slog.Logger
}

func NewRecalcService(engine *measure.Engine, measurements repository.MeasurementRepository, workers int64, logger *slog.Logger) *RecalcService {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalcService{
		engine:       engine,
		measurements: measurements,
		workers:      workers,
		logger:       logger,
	}
}

// Failure records one measurement whose recalculation failed.
type Failure struct {
	MeasurementID uuid.UUID `json:"measurement_id"`
	Error         string    `json:"error"`
}

// Summary reports the outcome of one batch recalculation.
type Summary struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failures  []Failure `json:"failures,omitempty"`
}

// RecalculatePage recalculates every measurement on a page. Intended to run
// after the page's scale is corrected.
func (s *RecalcService) RecalculatePage(ctx context.Context, pageID uuid.UUID) (*Summary, error) {
	ids, err := s.measurements.ListIDsByPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	summary := s.recalculate(ctx, ids)
	s.logger.Info("page recalculation complete",
		"page_id", pageID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failures))
	return summary, nil
}

// RecalculateCondition recalculates every measurement under a condition.
func (s *RecalcService) RecalculateCondition(ctx context.Context, conditionID uuid.UUID) (*Summary, error) {
	measurements, err := s.measurements.ListByCondition(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(measurements))
	for i, m := range measurements {
		ids[i] = m.ID
	}
	summary := s.recalculate(ctx, ids)
	s.logger.Info("condition recalculation complete",
		"condition_id", conditionID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failures))
	return summary, nil
}

func (s *RecalcService) recalculate(ctx context.Context, ids []uuid.UUID) *Summary {
	sem := semaphore.NewWeighted(s.workers)
	summary := &Summary{Total: len(ids)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			summary.Failures = append(summary.Failures, Failure{MeasurementID: id, Error: err.Error()})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer sem.Release(1)
			_, err := s.engine.Recalculate(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("recalculation failed", "measurement_id", id, "error", err)
				summary.Failures = append(summary.Failures, Failure{MeasurementID: id, Error: err.Error()})
				return
			}
			summary.Succeeded++
		}(id)
	}
	wg.Wait()
	return summary
}
