// Package worker runs queued generation tasks and hands results to a sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Task abstracts what workers read off the queue.
type Task = model.Task

// Runner turns a task into a finished dialogue.
type Runner interface {
	Run(ctx context.Context, task Task) (model.FullDialogue, error)
}

// Sink persists finished dialogues and failures.
type Sink interface {
	Save(ctx context.Context, d model.FullDialogue) error
	SaveFailure(ctx context.Context, f model.Failure) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes tasks from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the task in flight.
	Shutdown(ctx context.Context) error
}

// Counts summarizes what a pool has processed.
type Counts struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	// Cancelled tasks were interrupted and left for a later run.
	Cancelled int64 `json:"cancelled"`
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	sink   Sink
	name   string

	completed *atomic.Int64
	failed    *atomic.Int64
	cancelled *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, runner Runner, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		runner:    runner,
		sink:      sink,
		name:      "worker",
		completed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		cancelled: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	metrics.AddWorkerActive(1)
	defer metrics.AddWorkerActive(-1)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.process(ctx, task)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs a single task. Failures never stop the worker.
func (w *InMemoryWorker) process(ctx context.Context, task Task) { //nolint:gocritic // hugeParam: Task is passed by value from the channel
	start := time.Now()
	dlg, err := w.run(ctx, task)
	if errors.Is(err, context.Canceled) {
		w.cancelled.Add(1)
		w.logger.Info(ctx, "task cancelled", logger.String("task_id", task.ID))
		return
	}
	if err != nil {
		w.fail(ctx, task, err)
		return
	}
	if err := w.sink.Save(ctx, dlg); err != nil {
		w.fail(ctx, task, fmt.Errorf("save: %w", err))
		return
	}

	w.completed.Add(1)
	metrics.RecordTaskCompleted(string(task.Kind))
	w.logger.Info(ctx, "task completed",
		logger.String("task_id", task.ID),
		logger.Int("turns", dlg.Record.Turns),
		logger.String("terminator", dlg.Record.Terminator),
		logger.Duration("elapsed", time.Since(start)),
	)
}

func (w *InMemoryWorker) run(ctx context.Context, task Task) (dlg model.FullDialogue, err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "task panicked",
				logger.String("task_id", task.ID),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.runner.Run(ctx, task)
}

func (w *InMemoryWorker) fail(ctx context.Context, task Task, err error) { //nolint:gocritic // hugeParam
	w.failed.Add(1)
	metrics.RecordTaskFailure()
	w.logger.Error(ctx, "task failed", logger.String("task_id", task.ID), logger.Error(err))

	if serr := w.sink.SaveFailure(ctx, model.Failure{ID: task.ID, Error: err.Error()}); serr != nil {
		w.logger.Error(ctx, "failed to record failure", logger.String("task_id", task.ID), logger.Error(serr))
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64

	wg     sync.WaitGroup
	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, queue Queue, runner Runner, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, runner, sink, wopts...)
		w.completed = &pool.completed
		w.failed = &pool.failed
		w.cancelled = &pool.cancelled
		pool.workers[i] = w
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info(ctx, "starting workers", logger.Int("count", len(p.workers)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned, which happens once the
// queue is closed and drained or the run context ends.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Counts returns completed, failed and cancelled totals.
func (p *Pool) Counts() Counts {
	return Counts{Completed: p.completed.Load(), Failed: p.failed.Load(), Cancelled: p.cancelled.Load()}
}

// Shutdown closes the queue and stops the workers after their current task.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
