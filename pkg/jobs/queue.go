package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// Task is a unit of background work.
type Task struct {
	ID       string
	Kind     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task. A returned error schedules a retry.
type Handler func(context.Context, Task) error

// ExhaustedFunc is invoked once a task has failed MaxRetries+1 times.
type ExhaustedFunc func(Task, error)

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers     int
	BufferSize  int
	MaxRetries  int
	RetryDelay  time.Duration
	Logger      *zap.Logger
	OnExhausted ExhaustedFunc
}

// Queue is an in-memory task dispatcher backed by a fixed goroutine pool.
type Queue struct {
	name    string
	handler Handler

	workers     int
	maxRetries  int
	retryDelay  time.Duration
	logger      *zap.Logger
	onExhausted ExhaustedFunc

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue around handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:        name,
		handler:     handler,
		workers:     cfg.Workers,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		logger:      cfg.Logger.With(zap.String("queue", name)),
		onExhausted: cfg.OnExhausted,
		tasks:       make(chan Task, cfg.BufferSize),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels the workers and waits for them to exit. Buffered tasks are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.tasks)))
}

// Enqueue pushes a task, blocking while the buffer is full.
func (q *Queue) Enqueue(task Task) error {
	ctx, err := q.prepare(&task)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

// TryEnqueue pushes a task without blocking.
func (q *Queue) TryEnqueue(task Task) error {
	ctx, err := q.prepare(&task)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue) prepare(task *Task) (context.Context, error) {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil, fmt.Errorf("queue %s not started", q.name)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}
	return ctx, nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.run(task); err != nil {
				q.handleFailure(task, err)
			}
		}
	}
}

func (q *Queue) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return q.handler(q.ctx, task)
}

func (q *Queue) handleFailure(task Task, err error) {
	task.Attempt++
	if task.Attempt > q.maxRetries {
		q.logger.Error("task exceeded retries", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Error(err))
		if q.onExhausted != nil {
			q.onExhausted(task, err)
		}
		return
	}
	q.logger.Warn("task failed, retrying", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Int("attempt", task.Attempt), zap.Error(err))

	delay := q.retryDelay * time.Duration(task.Attempt)
	go func(t Task) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(t); err != nil {
				q.logger.Error("failed to requeue task", zap.String("task_id", t.ID), zap.Error(err))
			}
		}
	}(task)
}
