package tasks

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Job is one page scale-detection request. ImagePath may be empty when only
// text detection is wanted.
type Job struct {
	PageID      uuid.UUID
	ImagePath   string
	OCRText     string
	ScaleTexts  []string
	SubmittedAt time.Time
}

// DetectionQueue runs page scale detection on a bounded worker pool so an
// external scheduler can fire-and-forget detection requests.
type DetectionQueue struct {
	svc     *DetectionService
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*DetectionQueue)

func WithWorkers(n int) Option {
	return func(q *DetectionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *DetectionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *DetectionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewDetectionQueue(svc *DetectionService, logger *slog.Logger, opts ...Option) *DetectionQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &DetectionQueue{
		svc:     svc,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *DetectionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("detection worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.run(ctx, workerID, job)
					cancel()
				}

				q.logger.Info("detection worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *DetectionQueue) run(ctx context.Context, workerID int, job Job) {
	var img image.Image
	if job.ImagePath != "" {
		loaded, err := imaging.Open(job.ImagePath)
		if err != nil {
			// Text strategies still apply without the image.
			q.logger.Warn("failed to load page image",
				"worker_id", workerID, "page_id", job.PageID, "path", job.ImagePath, "error", err)
		} else {
			img = loaded
		}
	}

	result, err := q.svc.DetectPage(ctx, job.PageID, img, job.OCRText, job.ScaleTexts)
	if err != nil {
		q.logger.Error("detection failed", "worker_id", workerID, "page_id", job.PageID, "error", err)
		return
	}
	q.logger.Info("detection processed",
		"worker_id", workerID,
		"page_id", job.PageID,
		"needs_calibration", result.NeedsCalibration,
		"wait", time.Since(job.SubmittedAt))
}

// Enqueue submits a job. It never blocks: when the queue is full or shutting
// down the job is dropped and logged, since the scheduler will retry.
func (q *DetectionQueue) Enqueue(_ context.Context, job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "page_id", job.PageID)
		return
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("detection queue full, dropping job", "page_id", job.PageID)
	}
}

// Shutdown stops accepting jobs and waits for in-flight work, up to the
// context deadline.
func (q *DetectionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("shutdown timed out with jobs in flight")
	}
}
