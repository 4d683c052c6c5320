// Package dispatch provides the interaction queue: callbacks posted from the
// processing goroutine run later, in order, on whichever goroutine drains
// the queue.
package dispatch

import (
	"context"
	"sync"

	"barcodecount/pkg/log"
)

// Queue is an unbounded FIFO of callbacks. It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Post enqueues fn. It never blocks and reports false once the queue is
// closed.
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	return true
}

// Len returns the number of queued callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs every queued callback, including those posted while draining,
// on the calling goroutine and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		batch := q.take()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			runTask(fn)
		}
		n += len(batch)
	}
}

// Run drains the queue until ctx is done or the queue is closed and empty.
func (q *Queue) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed && ctx.Err() == nil {
			q.cond.Wait()
		}
		batch := q.tasks
		q.tasks = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			runTask(fn)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if closed && len(batch) == 0 {
			return nil
		}
	}
}

// Close stops accepting callbacks. Already queued callbacks still run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *Queue) take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.tasks
	q.tasks = nil
	return batch
}

// runTask isolates the queue from a panicking callback.
func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Interaction callback panicked: %v", r)
		}
	}()
	fn()
}
