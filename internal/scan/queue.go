package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Job is a unit of post-scan work (report archival, notifications) executed
// off the request path.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue serializes post-scan jobs through a single worker so slow archive
// uploads never delay the next scan's stream. Enqueue never blocks; when the
// buffer is full the job is dropped with an error.
type Queue struct {
	jobs     chan Job
	depth    atomic.Int64
	inFlight atomic.Int64
	logger   *slog.Logger
}

// NewQueue creates a Queue with the given buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 16
	}
	return &Queue{
		jobs:   make(chan Job, size),
		logger: logger.With(slog.String("component", "queue")),
	}
}

// Enqueue submits a job for background execution.
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		q.depth.Add(1)
		return nil
	default:
		return fmt.Errorf("queue: buffer full, dropping job %q", job.Name)
	}
}

// Stats returns the number of queued and executing jobs.
func (q *Queue) Stats() (depth, inFlight int) {
	return int(q.depth.Load()), int(q.inFlight.Load())
}

// Run executes jobs until ctx is cancelled. Job failures are logged, never
// fatal to the worker.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("job queue started", slog.Int("buffer", cap(q.jobs)))
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("job queue stopping")
			return ctx.Err()
		case job := <-q.jobs:
			q.depth.Add(-1)
			q.inFlight.Add(1)
			start := time.Now()
			if err := job.Run(ctx); err != nil {
				q.logger.Error("job failed",
					slog.String("job", job.Name),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("error", err.Error()),
				)
			} else {
				q.logger.Debug("job done",
					slog.String("job", job.Name),
					slog.Duration("elapsed", time.Since(start)),
				)
			}
			q.inFlight.Add(-1)
		}
	}
}
