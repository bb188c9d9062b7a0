package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/metrics"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultTaskTimeout = 15 * time.Second
)

// Task is a best-effort unit of work. Its error is logged, never returned to a caller.
type Task func(ctx context.Context) error

// Runner accepts best-effort tasks.
type Runner interface {
	Submit(ctx context.Context, name string, task Task) bool
}

// DispatcherParams configure the dispatcher.
type DispatcherParams struct {
	Logger      *logger.Logger
	Metrics     *metrics.TaskMetrics
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type job struct {
	ctx  context.Context
	name string
	task Task
}

// Dispatcher runs tasks on a bounded worker pool.
type Dispatcher struct {
	logg    *logger.Logger
	metrics *metrics.TaskMetrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewDispatcher builds a dispatcher and starts its workers.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := params.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	timeout := params.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}

	d := &Dispatcher{
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d, nil
}

// Submit enqueues task without blocking. The task runs on a context detached from
// ctx's cancellation that keeps its values (logger fields). It returns false when
// the task was dropped.
func (d *Dispatcher) Submit(ctx context.Context, name string, task Task) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	taskCtx := d.logg.WithField(context.WithoutCancel(ctx), "task", name)
	if d.closed {
		d.drop(taskCtx, name, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- job{ctx: taskCtx, name: name, task: task}:
		return true
	default:
		d.drop(taskCtx, name, "queue full")
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining background tasks: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, j.task)
	elapsed := time.Since(start)
	d.metrics.Observe(j.name, elapsed, err)

	if err != nil {
		d.logg.Error(d.logg.WithField(j.ctx, "duration_ms", elapsed.Milliseconds()), "background task failed", err)
	}
}

func (d *Dispatcher) drop(ctx context.Context, name, reason string) {
	d.metrics.IncDropped(name)
	d.logg.Warn(d.logg.WithField(ctx, "reason", reason), "background task dropped")
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// Inline runs tasks synchronously on the caller's goroutine, logging failures.
// Used by one-shot commands and tests.
type Inline struct {
	Logger *logger.Logger
}

func (i Inline) Submit(ctx context.Context, name string, task Task) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := safeRun(context.WithoutCancel(ctx), task); err != nil && i.Logger != nil {
		i.Logger.Error(i.Logger.WithField(ctx, "task", name), "background task failed", err)
	}
	return true
}
