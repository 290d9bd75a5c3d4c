// Package besteffort runs fire-and-forget side effects. Failures are logged
// and never reach the caller.
package besteffort

import (
	"context"
	"fmt"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
)

type Task func(ctx context.Context) error

// Runner accepts tasks whose outcome the caller does not wait for.
type Runner interface {
	Submit(name string, task Task)
}

type job struct {
	name string
	task Task
}

// Queue executes tasks in submission order on a single worker. When the
// buffer is full new tasks are dropped.
type Queue struct {
	logger hclog.Logger
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewQueue(logger hclog.Logger, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger: logger,
		jobs:   make(chan job, size),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *Queue) Submit(name string, task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Debug("queue closed, dropping task", "task", name)
		return
	}
	select {
	case q.jobs <- job{name: name, task: task}:
	default:
		q.logger.Warn("queue full, dropping task", "task", name)
	}
}

// Close stops accepting tasks and waits for the queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.done
	q.cancel()
}

func (q *Queue) loop() {
	defer close(q.done)
	for j := range q.jobs {
		run(q.ctx, q.logger, j)
	}
}

// Inline runs each task immediately on the calling goroutine.
type Inline struct {
	Logger hclog.Logger
}

func (r Inline) Submit(name string, task Task) {
	logger := r.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	run(context.Background(), logger, job{name: name, task: task})
}

func run(ctx context.Context, logger hclog.Logger, j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "task", j.name, "panic", fmt.Sprint(r))
		}
	}()
	if err := j.task(ctx); err != nil {
		logger.Warn("task failed", "task", j.name, "error", err)
	}
}
