package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrNotStarted is returned when enqueuing before Start or after Stop.
var ErrNotStarted = errors.New("queue not running")

// Job represents a queued background task.
type Job struct {
	ID          string
	Type        string
	Payload     interface{}
	Attempt     int
	MaxAttempts int
	Enqueued    time.Time
}

// Handler processes a job. A non-nil error schedules a retry.
type Handler func(context.Context, Job) error

// ExhaustedHandler is called once a job has used all its attempts.
type ExhaustedHandler func(context.Context, Job, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
	OnExhausted ExhaustedHandler
	Logger      *zap.Logger
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Succeeded uint64 `json:"succeeded"`
	Retried   uint64 `json:"retried"`
	Exhausted uint64 `json:"exhausted"`
}

// Queue is an in-memory job dispatcher backed by goroutines.
type Queue struct {
	name        string
	handler     Handler
	onExhausted ExhaustedHandler

	workers     int
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	enqueued  atomic.Uint64
	succeeded atomic.Uint64
	retried   atomic.Uint64
	exhausted atomic.Uint64
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
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
		onExhausted: cfg.OnExhausted,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      cfg.Logger.With(zap.String("queue", name)),
		jobs:        make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
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

// Stop cancels workers and waits for them to exit.
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
	q.logger.Info("queue stopped")
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.maxAttempts
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		if job.Attempt == 0 {
			q.enqueued.Add(1)
		}
		return nil
	}
}

// Stats returns counters since start.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Succeeded: q.succeeded.Load(),
		Retried:   q.retried.Load(),
		Exhausted: q.exhausted.Load(),
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.succeeded.Add(1)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt >= job.MaxAttempts {
		q.exhausted.Add(1)
		q.logger.Error("job exhausted attempts", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempts", job.Attempt), zap.Error(err))
		if q.onExhausted != nil {
			q.onExhausted(q.ctx, job, err)
		}
		return
	}
	q.retried.Add(1)
	q.logger.Warn("job failed, retrying", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err))

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}
