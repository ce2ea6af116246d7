package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"asrtt/internal/logging"
)

// Task is a unit of work executed on a worker's queue.
type Task func(ctx context.Context)

// serialQueue runs tasks one at a time in submission order. A drain
// goroutine exists only while tasks are pending.
type serialQueue struct {
	ctx    context.Context
	logger *slog.Logger

	mu      sync.Mutex
	pending []Task
	running bool
}

func newSerialQueue(ctx context.Context, logger *slog.Logger) *serialQueue {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &serialQueue{ctx: ctx, logger: logger}
}

// Enqueue appends task and starts draining if the queue was idle.
func (q *serialQueue) Enqueue(task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, task)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

// Barrier returns a channel closed after every task enqueued before it ran.
func (q *serialQueue) Barrier() <-chan struct{} {
	done := make(chan struct{})
	q.Enqueue(func(context.Context) { close(done) })
	return done
}

// Pending reports queued tasks, excluding the one currently running.
func (q *serialQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.run(task)
	}
}

func (q *serialQueue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logging.WithContext(q.ctx, q.logger), "queued task panicked", "task_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "the queue continues with the next task"),
			)
		}
	}()
	task(q.ctx)
}
