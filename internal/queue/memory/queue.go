// Package memory provides the in-process task queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/webharvest/webharvest/internal/scraper"
)

// ErrClosed is returned by Dequeue once the queue is closed and empty.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory task queue with context-aware operations and
// acknowledgement tracking. A task counts as outstanding from Enqueue until
// the consuming worker calls Ack; Drain blocks until no task is outstanding.
// Ordering as observed by concurrent consumers is not guaranteed.
type Queue struct {
	ch      chan scraper.Task
	pending sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity. Capacity <= 0
// yields a capacity of 1 so producers always make progress.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan scraper.Task, capacity),
	}
}

// Enqueue pushes a task into the queue, blocking while the queue is at
// capacity, or returns early if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task scraper.Task) error {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return ErrClosed
	}
	q.pending.Add(1)
	q.closeMu.Unlock()

	select {
	case <-ctx.Done():
		q.pending.Done()
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. The consumer
// must call Ack exactly once when it has finished processing the task,
// including all retries.
func (q *Queue) Dequeue(ctx context.Context) (scraper.Task, error) {
	select {
	case <-ctx.Done():
		return scraper.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return scraper.Task{}, ErrClosed
		}
		return task, nil
	}
}

// Ack marks one dequeued task as fully processed.
func (q *Queue) Ack() {
	q.pending.Done()
}

// Drain blocks until every enqueued task has been dequeued and acknowledged,
// or the context ends.
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain canceled: %w", ctx.Err())
	}
}

// Close closes the underlying channel so idle consumers stop. Tasks already
// queued remain consumable.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
