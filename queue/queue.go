// Package queue provides the FIFO handoff between the goroutine accepting
// connections and the workers serving them.
package queue

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Enqueue once Close has been called.
	ErrClosed = errors.New("queue closed")
)

// Queue is a closeable FIFO. Each enqueued item is received by exactly one
// Dequeue call. The zero capacity means unbounded: Enqueue never blocks, and a
// sustained excess of producers over consumers grows memory without limit.
type Queue[T any] struct {
	capacity int

	mu       sync.Mutex
	nonEmpty *sync.Cond
	nonFull  *sync.Cond
	items    []T
	head     int
	closed   bool
}

// New returns an empty queue. A positive capacity bounds the number of
// pending items, making Enqueue block while the queue is full.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{capacity: capacity}
	q.nonEmpty = sync.NewCond(&q.mu)
	q.nonFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an item at the tail and wakes one waiting receiver.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && q.capacity > 0 && q.lenLocked() >= q.capacity {
		q.nonFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.nonEmpty.Signal()
	return nil
}

// Dequeue removes and returns the item at the head, blocking until there is
// one. Once the queue is closed, remaining items are still handed out; when
// none are left, Dequeue returns false (end of work) instead of blocking.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.lenLocked() == 0 {
		if q.closed {
			return item, false
		}
		q.nonEmpty.Wait()
	}
	item = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = zero
		}
		q.items = q.items[:n]
		q.head = 0
	}
	q.nonFull.Signal()
	return item, true
}

// Close marks the queue as closed and wakes every blocked caller. It is safe
// to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.nonEmpty.Broadcast()
	q.nonFull.Broadcast()
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}
