// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "cmp"

// PriorityQueue is a lock-free priority queue on a concurrent skiplist.
// The smallest element (per the ordering) is the head. Equal elements may
// coexist: the queue is a multiset, and ties drain in arbitrary order.
//
// Enqueue/Dequeue alias Insert/DeleteMin so the queue drops into code
// written against a FIFO shape.
type PriorityQueue[E any] struct {
	sl *skiplist[E, struct{}]
}

// NewPriorityQueue creates an empty priority queue ordered by cmp.Compare.
// maxLevel bounds the tower height; maxLevel <= 0 selects DefaultMaxLevel.
func NewPriorityQueue[E cmp.Ordered](maxLevel int) *PriorityQueue[E] {
	return NewPriorityQueueFunc[E](cmp.Compare[E], maxLevel)
}

// NewPriorityQueueFunc creates an empty priority queue ordered by compare.
func NewPriorityQueueFunc[E any](compare func(a, b E) int, maxLevel int) *PriorityQueue[E] {
	return &PriorityQueue[E]{sl: newSkiplist[E, struct{}](compare, maxLevel)}
}

// Insert adds an element to the queue.
func (q *PriorityQueue[E]) Insert(elem E) {
	q.sl.insert(elem, nil, false)
}

// Enqueue adds an element to the queue.
func (q *PriorityQueue[E]) Enqueue(elem E) {
	q.Insert(elem)
}

// DeleteMin removes and returns the smallest element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *PriorityQueue[E]) DeleteMin() (E, error) {
	rec := q.sl.mm.acquire()
	for {
		first := q.sl.first()
		if first == nil {
			q.sl.mm.release(rec)
			var zero E
			return zero, ErrWouldBlock
		}
		// Claim the head; losing the race means another consumer took
		// it, so look for the new head.
		if q.sl.removeNode(rec, first) {
			q.sl.mm.release(rec)
			return first.key, nil
		}
	}
}

// Dequeue removes and returns the smallest element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *PriorityQueue[E]) Dequeue() (E, error) {
	return q.DeleteMin()
}

// PeekMin returns the smallest element without removing it.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *PriorityQueue[E]) PeekMin() (E, error) {
	rec := q.sl.mm.acquire()
	first := q.sl.first()
	q.sl.mm.release(rec)
	if first == nil {
		var zero E
		return zero, ErrWouldBlock
	}
	return first.key, nil
}

// Empty reports whether the queue was observed empty.
func (q *PriorityQueue[E]) Empty() bool {
	return q.sl.empty()
}

// Size counts the elements by traversal. Not thread-safe: the count is
// approximate under concurrent mutation.
func (q *PriorityQueue[E]) Size() int {
	return q.sl.size()
}
