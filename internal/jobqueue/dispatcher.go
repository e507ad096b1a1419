package jobqueue

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/pool"
)

// Dispatcher posts jobs returned by the cache to a bounded worker pool,
// standing in for "the job queue / thread pool that dispatches I/O jobs"
// (spec.md §1). The cache never calls storage inline (spec.md §5); it
// returns Jobs, and something like Dispatcher is what actually runs them.
type Dispatcher struct {
	pool   *pool.Pool
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher with at most maxWorkers jobs running
// concurrently at once.
func NewDispatcher(maxWorkers int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pool:   pool.New().WithMaxGoroutines(maxWorkers),
		logger: logger.With("component", "jobqueue"),
	}
}

// Post runs fn asynchronously and routes its result to job's completion
// callback. fn performs the actual storage I/O (out of scope for this
// package, per spec.md §1) and returns the number of bytes transferred.
func (d *Dispatcher) Post(ctx context.Context, job *Job, fn func(context.Context, *Job) (int, error)) {
	d.logger.DebugContext(ctx, "dispatching job", "job_id", job.ID, "action", job.Action.String(), "piece", job.Piece)
	d.pool.Go(func() {
		n, err := fn(ctx, job)
		if err != nil {
			d.logger.WarnContext(ctx, "job failed", "job_id", job.ID, "action", job.Action.String(), "err", err)
		}
		job.Complete(Result{BytesTransferred: n, Err: err})
	})
}

// Wait blocks until every posted job has completed.
func (d *Dispatcher) Wait() {
	d.pool.Wait()
}
