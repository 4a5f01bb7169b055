// Package workerpool runs typed tasks on a fixed number of goroutines with a
// bounded queue, per-task retries and graceful shutdown.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the task queue has no room.
var ErrQueueFull = errors.New("task queue is full")

// ErrStopped is returned when submitting to a pool that is shutting down.
var ErrStopped = errors.New("pool is shutting down")

// Task is one queued unit of work. Context, when set, bounds every attempt.
type Task[T any] struct {
	ID      string
	Payload T
	Context context.Context
}

// Result is delivered on Results once per submitted task.
type Result[R any] struct {
	TaskID   string
	Value    R
	Err      error
	Attempts int
}

// WorkerFunc processes one attempt of a task.
type WorkerFunc[T, R any] func(ctx context.Context, task *Task[T]) (R, error)

// Config sizes the pool and its retry policy.
type Config struct {
	Workers int
	// QueueSize bounds both the task and the result channel
	QueueSize int
	// MaxRetries is the number of extra attempts after the first
	MaxRetries int
	// RetryDelay is the base delay between retries, multiplied by the attempt
	RetryDelay time.Duration
	// Retryable decides whether an error is worth another attempt; nil retries everything
	Retryable func(error) bool
	// GracefulShutdownTimeout bounds how long Stop waits for in-flight tasks
	GracefulShutdownTimeout time.Duration
}

// DefaultConfig returns defaults sized for CPU-bound evaluation
func DefaultConfig() Config {
	return Config{
		Workers:                 8,
		QueueSize:               1024,
		MaxRetries:              2,
		RetryDelay:              50 * time.Millisecond,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// Pool fans tasks out to workers and collects their results.
type Pool[T, R any] struct {
	config     Config
	workerFunc WorkerFunc[T, R]
	logger     *zap.Logger

	taskChan   chan *Task[T]
	resultChan chan Result[R]
	wg         sync.WaitGroup
	stopOnce   sync.Once

	// mu guards stopped; taskChan is only closed under the write lock
	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc

	// counters, read through Stats
	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	tasksRetried   int64
	activeWorkers  int64
	queueDepth     int64
}

// New validates cfg, filling zero values from DefaultConfig.
func New[T, R any](cfg Config, fn WorkerFunc[T, R], logger *zap.Logger) (*Pool[T, R], error) {
	if fn == nil {
		return nil, fmt.Errorf("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.GracefulShutdownTimeout <= 0 {
		cfg.GracefulShutdownTimeout = DefaultConfig().GracefulShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool[T, R]{
		config:     cfg,
		workerFunc: fn,
		logger:     logger,
		taskChan:   make(chan *Task[T], cfg.QueueSize),
		resultChan: make(chan Result[R], cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches the workers. Call it once.
func (p *Pool[T, R]) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize))
}

// Submit adds a task to the queue without blocking
func (p *Pool[T, R]) Submit(task *Task[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait adds a task, waiting for queue room until ctx is done
func (p *Pool[T, R]) SubmitWait(ctx context.Context, task *Task[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	}
}

// Results returns the result channel. It is closed by Stop.
func (p *Pool[T, R]) Results() <-chan Result[R] {
	return p.resultChan
}

// Stop closes the queue, waits for in-flight tasks and closes Results.
// Callers must keep draining Results until it is closed.
func (p *Pool[T, R]) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.logger.Info("stopping worker pool")

		p.mu.Lock()
		p.stopped = true
		close(p.taskChan)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("worker pool stopped gracefully")
		case <-time.After(p.config.GracefulShutdownTimeout):
			p.logger.Warn("worker pool shutdown timed out")
			p.cancel()
			<-done
			err = fmt.Errorf("worker pool shutdown timed out after %s", p.config.GracefulShutdownTimeout)
		}

		p.cancel()
		close(p.resultChan)
	})
	return err
}

func (p *Pool[T, R]) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", zap.Int("worker_id", id))
	atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	for task := range p.taskChan {
		atomic.AddInt64(&p.queueDepth, -1)
		result := p.processTask(id, task)
		select {
		case p.resultChan <- result:
		case <-p.ctx.Done():
			p.logger.Warn("pool cancelled, dropping result", zap.String("task_id", task.ID))
		}
	}

	p.logger.Debug("worker stopped", zap.Int("worker_id", id))
}

// processTask runs the attempts for one task and accounts for the outcome.
func (p *Pool[T, R]) processTask(workerID int, task *Task[T]) Result[R] {
	ctx := task.Context
	if ctx == nil {
		ctx = p.ctx
	}

	result := Result[R]{TaskID: task.ID}
retry:
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Err = err
			break retry
		}

		result.Attempts = attempt + 1
		result.Value, result.Err = p.workerFunc(ctx, task)
		if result.Err == nil || attempt == p.config.MaxRetries || !p.retryable(result.Err) {
			break retry
		}

		atomic.AddInt64(&p.tasksRetried, 1)
		p.logger.Debug("retrying task",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(result.Err))

		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			break retry
		case <-time.After(p.config.RetryDelay * time.Duration(attempt+1)):
		}
	}

	if result.Err == nil {
		atomic.AddInt64(&p.tasksCompleted, 1)
	} else {
		atomic.AddInt64(&p.tasksFailed, 1)
		p.logger.Debug("task failed",
			zap.String("task_id", task.ID),
			zap.Int("worker_id", workerID),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Err))
	}
	return result
}

func (p *Pool[T, R]) retryable(err error) bool {
	if p.config.Retryable == nil {
		return true
	}
	return p.config.Retryable(err)
}

// Stats is a point-in-time snapshot of the pool counters.
type Stats struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksRetried   int64
	ActiveWorkers  int64
	QueueDepth     int64
	QueueCapacity  int
	Workers        int
}

// Stats returns current pool statistics
func (p *Pool[T, R]) Stats() Stats {
	return Stats{
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		TasksRetried:   atomic.LoadInt64(&p.tasksRetried),
		ActiveWorkers:  atomic.LoadInt64(&p.activeWorkers),
		QueueDepth:     atomic.LoadInt64(&p.queueDepth),
		QueueCapacity:  p.config.QueueSize,
		Workers:        p.config.Workers,
	}
}

// IsHealthy reports whether the queue is below 90% of its capacity.
func (p *Pool[T, R]) IsHealthy() bool {
	stats := p.Stats()
	return float64(stats.QueueDepth)/float64(stats.QueueCapacity) < 0.9
}
