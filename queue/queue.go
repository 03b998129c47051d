// queue/queue.go
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

// ErrClosed is returned by Pop once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO with any number of producers and one consumer.
// Push never blocks and never drops; Pop blocks until an item arrives, the
// context ends, or the queue is closed and empty.
type Queue[T any] struct {
	mutex  sync.Mutex
	items  deque.Deque[T]
	closed bool
	notify chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Push appends v. It reports false if the queue is already closed.
func (q *Queue[T]) Push(v T) bool {
	q.mutex.Lock()
	if q.closed {
		q.mutex.Unlock()
		return false
	}
	q.items.PushBack(v)
	q.mutex.Unlock()
	q.wake()
	return true
}

// Pop removes the oldest item, waiting for one if necessary.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mutex.Lock()
		if q.items.Len() > 0 {
			v := q.items.PopFront()
			q.mutex.Unlock()
			return v, nil
		}
		closed := q.closed
		q.mutex.Unlock()

		var zero T
		if closed {
			return zero, ErrClosed
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop removes the oldest item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	var zero T
	if q.items.Len() == 0 {
		return zero, false
	}
	return q.items.PopFront(), true
}

func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.items.Len()
}

// Close stops further pushes. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mutex.Lock()
	q.closed = true
	q.mutex.Unlock()
	q.wake()
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
