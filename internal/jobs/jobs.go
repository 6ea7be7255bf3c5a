// Package jobs evaluates expressions asynchronously on a bounded queue.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/results"
)

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("jobs: queue closed")
)

// Job is one expression awaiting evaluation.
type Job struct {
	ID         string
	Expression string
	Unit       calculator.Unit
}

// Queue is a bounded FIFO of jobs served by a fixed set of workers. Finished
// results go to a results.Store under the job ID.
type Queue struct {
	jobs    chan Job
	workers int
	store   results.Store
	evals   map[calculator.Unit]*calculator.Evaluator
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a queue holding at most capacity jobs.
func New(capacity, workers int, store results.Store) *Queue {
	if capacity <= 0 || workers <= 0 {
		panic("jobs: capacity and workers must be positive")
	}
	logger := slog.Default().With("component", "jobs")
	return &Queue{
		jobs:    make(chan Job, capacity),
		workers: workers,
		store:   store,
		evals: map[calculator.Unit]*calculator.Evaluator{
			calculator.Deg: calculator.New(calculator.WithUnit(calculator.Deg), calculator.WithLogger(logger)),
			calculator.Rad: calculator.New(calculator.WithUnit(calculator.Rad), calculator.WithLogger(logger)),
		},
		logger: logger,
	}
}

// Submit enqueues j without blocking. It returns the number of jobs waiting,
// including j.
func (q *Queue) Submit(j Job) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return 0, ErrClosed
	}
	select {
	case q.jobs <- j:
		return len(q.jobs), nil
	default:
		return 0, ErrQueueFull
	}
}

// Len returns the number of jobs waiting.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Cap returns the capacity of the queue.
func (q *Queue) Cap() int {
	return cap(q.jobs)
}

// Close stops accepting jobs. Workers finish the jobs already queued and then
// Run returns.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// Run serves jobs until the queue is closed and drained or ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error { return q.work(ctx) })
	}
	return g.Wait()
}

func (q *Queue) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j, ok := <-q.jobs:
			if !ok {
				return nil
			}
			q.process(ctx, j)
		}
	}
}

func (q *Queue) process(ctx context.Context, j Job) {
	ev := q.evals[j.Unit]
	if ev == nil {
		ev = q.evals[calculator.Deg]
	}
	start := time.Now()
	r := ev.Evaluate(j.ID, j.Expression)
	o := results.Outcome{Result: r, Finished: time.Now()}
	if err := q.store.Put(ctx, j.ID, o); err != nil {
		q.logger.Error("storing result failed", "id", j.ID, "error", err)
		return
	}
	q.logger.Debug("job finished", "id", j.ID, "ok", r.OK(), "elapsed", time.Since(start))
}
