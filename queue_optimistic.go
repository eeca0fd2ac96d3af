// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"

	"code.hybscloud.com/spin"
)

// OptimisticQueue is an unbounded FIFO queue, after
//
//	Ladan-Mozes, Shavit, "An Optimistic Approach to Lock-Free FIFO
//	Queues", DISC 2004.
//
// Where [Queue] pays two CAS operations per enqueue (append plus tail
// swing), the optimistic queue appends with a single CAS on tail and builds
// the dequeue direction lazily: each node's next points backward toward the
// head, and the forward prev links are written optimistically after the
// fact. A dequeue that finds its prev link missing rebuilds the prefix by
// walking the always-consistent next chain (fixList).
//
// The head always carries a sentinel eventually: when the last data node is
// about to leave, a fresh dummy is appended so the queue never runs dry of
// nodes. Dummies are allocated per reinsertion, never shared, which keeps
// their link words single-writer.
type OptimisticQueue[T any] struct {
	head atomic.Pointer[optNode[T]]
	tail atomic.Pointer[optNode[T]]
	mm   *smr[optNode[T]]
}

type optNode[T any] struct {
	data T
	// next points toward the head side and is written only before the
	// node is published by the tail CAS.
	next *optNode[T]
	// prev points toward the tail side; enqueuers and fixList write it
	// concurrently.
	prev  atomic.Pointer[optNode[T]]
	dummy bool
}

// Hazard slot assignment for optimistic queue operations.
const (
	oSlotHead = 0
	oSlotPrev = 1
)

// NewOptimisticQueue creates an empty queue.
func NewOptimisticQueue[T any]() *OptimisticQueue[T] {
	q := &OptimisticQueue[T]{mm: newSMR[optNode[T]](2)}
	d := &optNode[T]{dummy: true}
	q.head.Store(d)
	q.tail.Store(d)
	return q
}

// Enqueue appends an element to the back of the queue.
func (q *OptimisticQueue[T]) Enqueue(elem T) {
	rec := q.mm.acquire()
	node := q.mm.alloc(rec)
	node.data = elem
	sw := spin.Wait{}
	for {
		t := q.tail.Load()
		q.mm.employ(rec, oSlotHead, t)
		if q.tail.Load() != t {
			continue
		}
		node.next = t
		if q.tail.CompareAndSwap(t, node) {
			// Optimistic forward link; fixList repairs it if this
			// store loses a race or never lands.
			t.prev.Store(node)
			break
		}
		sw.Once()
	}
	q.mm.retireSlot(rec, oSlotHead)
	q.mm.release(rec)
}

// Dequeue removes and returns the front element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *OptimisticQueue[T]) Dequeue() (T, error) {
	rec := q.mm.acquire()
	sw := spin.Wait{}
	for {
		hd := q.head.Load()
		q.mm.employ(rec, oSlotHead, hd)
		if q.head.Load() != hd {
			continue
		}
		tl := q.tail.Load()
		fstPrev := hd.prev.Load()
		q.mm.employ(rec, oSlotPrev, fstPrev)
		elem := hd.data
		if q.head.Load() != hd {
			continue
		}

		if !hd.dummy {
			if tl != hd {
				if fstPrev == nil {
					q.fixList(rec, tl, hd)
					continue
				}
			} else {
				// Last data node: append a sentinel behind it so
				// the head swing below has somewhere to go.
				d := q.mm.alloc(rec)
				d.dummy = true
				d.next = tl
				if q.tail.CompareAndSwap(tl, d) {
					hd.prev.Store(d)
				} else {
					q.mm.free(rec, d)
				}
				continue
			}
			if q.head.CompareAndSwap(hd, fstPrev) {
				q.mm.retireSlot(rec, oSlotHead)
				q.mm.retireSlot(rec, oSlotPrev)
				q.mm.retire(rec, hd)
				q.mm.release(rec)
				return elem, nil
			}
		} else {
			if tl == hd {
				q.mm.release(rec)
				var zero T
				return zero, ErrWouldBlock
			}
			if fstPrev == nil {
				q.fixList(rec, tl, hd)
				continue
			}
			// Skip and reclaim the sentinel.
			if q.head.CompareAndSwap(hd, fstPrev) {
				q.mm.retire(rec, hd)
			}
		}
		sw.Once()
	}
}

// PeekFront returns the front element without removing it.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *OptimisticQueue[T]) PeekFront() (T, error) {
	rec := q.mm.acquire()
	for {
		hd := q.head.Load()
		q.mm.employ(rec, oSlotHead, hd)
		if q.head.Load() != hd {
			continue
		}
		if !hd.dummy {
			elem := hd.data
			q.mm.retireSlot(rec, oSlotHead)
			q.mm.release(rec)
			return elem, nil
		}
		tl := q.tail.Load()
		if tl == hd {
			q.mm.release(rec)
			var zero T
			return zero, ErrWouldBlock
		}
		fstPrev := hd.prev.Load()
		if fstPrev == nil {
			q.fixList(rec, tl, hd)
			continue
		}
		if q.head.CompareAndSwap(hd, fstPrev) {
			q.mm.retire(rec, hd)
		}
	}
}

// Empty reports whether the queue was observed empty.
func (q *OptimisticQueue[T]) Empty() bool {
	rec := q.mm.acquire()
	for {
		hd := q.head.Load()
		q.mm.employ(rec, oSlotHead, hd)
		if q.head.Load() != hd {
			continue
		}
		empty := hd.dummy && hd == q.tail.Load()
		q.mm.release(rec)
		return empty
	}
}

// Size counts data nodes along the next chain from tail to head. Not
// thread-safe: the count is approximate under concurrent mutation.
func (q *OptimisticQueue[T]) Size() int {
	hd := q.head.Load()
	tl := q.tail.Load()
	n := 0
	for cur := tl; cur != nil; cur = cur.next {
		if !cur.dummy {
			n++
		}
		if cur == hd {
			break
		}
	}
	return n
}

// fixList rebuilds the prev links of the prefix [tl, hd) by walking the
// next chain, which is consistent by construction. While head still equals
// hd, no node on that chain can be retired, but each node is pinned before
// its prev store anyway so the write can never land in a recycled node.
func (q *OptimisticQueue[T]) fixList(rec *hprecord[optNode[T]], tl, hd *optNode[T]) {
	cur := tl
	for q.head.Load() == hd && cur != hd {
		next := cur.next
		q.mm.employ(rec, oSlotPrev, next)
		if q.head.Load() != hd {
			return
		}
		if next.prev.Load() != cur {
			next.prev.Store(cur)
		}
		cur = next
	}
}
