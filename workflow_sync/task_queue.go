package workflow_sync

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrQueueStopped = errors.New("task queue stopped")

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// TaskQueue runs fire-and-forget calls one at a time on a background
// goroutine. Failures are logged, never returned to whoever enqueued them.
type TaskQueue struct {
	tasks chan task
	done  chan struct{}

	// closeMu is held for reading while sending so Stop cannot close tasks
	// under a blocked sender.
	closeMu sync.RWMutex
	stopped bool

	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

func NewTaskQueue(size int) *TaskQueue {
	idle := make(chan struct{})
	close(idle)
	q := &TaskQueue{
		tasks: make(chan task, size),
		idle:  idle,
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *TaskQueue) run() {
	defer close(q.done)
	for t := range q.tasks {
		if err := t.fn(context.Background()); err != nil {
			log.Warn().Err(err).Str("task", t.name).Msg("Background task failed")
		}
		q.finish()
	}
}

func (q *TaskQueue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// Enqueue blocks only while the buffer is full.
func (q *TaskQueue) Enqueue(name string, fn func(ctx context.Context) error) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.stopped {
		log.Warn().Str("task", name).Msg("Dropping background task, queue is stopped")
		return ErrQueueStopped
	}

	q.mu.Lock()
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()

	q.tasks <- task{name: name, fn: fn}
	return nil
}

// Drain waits until every task enqueued so far has finished.
func (q *TaskQueue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}

		q.mu.Lock()
		empty := q.pending == 0
		q.mu.Unlock()
		if empty {
			return nil
		}
	}
}

// Stop refuses new tasks, then waits for the queued ones to finish.
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.closeMu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.tasks)
	}
	q.closeMu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return nil
	}
}
