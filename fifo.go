// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import "sync"

// fifo is an unbounded multi-producer multi-consumer queue.
//
// Push never blocks. Pop blocks until an item is available or until the
// queue is closed and drained.
type fifo[T any] struct {
	cond   *sync.Cond
	closed bool
	items  []T
	mu     sync.Mutex
}

func newFIFO[T any]() *fifo[T] {
	q := &fifo[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item and returns false if the queue is closed.
func (q *fifo[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

// Pop removes the oldest item. The boolean is false once the queue is
// closed and empty.
func (q *fifo[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) <= 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) <= 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *fifo[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes and wakes up all the waiting consumers.
// Items already queued can still be popped.
func (q *fifo[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
