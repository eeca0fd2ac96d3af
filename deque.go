// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"

	"code.hybscloud.com/spin"
)

// Deque is an unbounded lock-free double-ended queue, after
//
//	Michael, "CAS-Based Lock-Free Algorithm for Shared Deques",
//	Euro-Par 2003.
//
// The shared state is a single anchor {left, right, status}. The algorithm
// calls for a double-wide CAS over the packed triple; packing pointers into
// integer words would hide them from the garbage collector, so the anchor
// is an immutable value behind one atomic pointer instead, and superseded
// anchor values are retired through their own hazard pointer engine and
// recycled. One CAS on the anchor pointer atomically replaces the whole
// triple, which preserves the algorithm unchanged.
//
// A push that succeeds leaves the anchor in RPUSH or LPUSH until the new
// end node's back-link is repaired; every push or pop that observes an
// unstable anchor helps stabilize it first. Peeks, Empty and Size read the
// anchor's end nodes without stabilizing. Empty and single-element deques
// are always stable.
type Deque[T any] struct {
	anchor   atomic.Pointer[dequeAnchor[T]]
	mm       *smr[dequeNode[T]]
	mmAnchor *smr[dequeAnchor[T]]
}

type dequeNode[T any] struct {
	data  T
	left  atomic.Pointer[dequeNode[T]]
	right atomic.Pointer[dequeNode[T]]
}

// dequeAnchor is immutable once installed; mutation replaces the value.
type dequeAnchor[T any] struct {
	left   *dequeNode[T]
	right  *dequeNode[T]
	status dequeStatus
}

type dequeStatus uint8

const (
	dequeStable dequeStatus = iota
	dequeRPush
	dequeLPush
)

// Hazard slot assignment for deque node protection.
const (
	dSlotLeft  = 0
	dSlotRight = 1
	dSlotPrev  = 2
)

// NewDeque creates an empty deque.
func NewDeque[T any]() *Deque[T] {
	d := &Deque[T]{
		mm:       newSMR[dequeNode[T]](3),
		mmAnchor: newSMR[dequeAnchor[T]](1),
	}
	d.anchor.Store(&dequeAnchor[T]{})
	return d
}

// snapshot returns the current anchor value, pinned in arec slot 0. The
// value is immutable, so one pointer validation covers all three fields.
func (d *Deque[T]) snapshot(arec *hprecord[dequeAnchor[T]]) *dequeAnchor[T] {
	for {
		a := d.anchor.Load()
		d.mmAnchor.employ(arec, 0, a)
		if d.anchor.Load() == a {
			return a
		}
	}
}

// swapAnchor installs {left, right, status} in place of old. On success the
// superseded value is retired and the installed value is returned pinned in
// arec slot 0 (so the caller may stabilize from it).
func (d *Deque[T]) swapAnchor(arec *hprecord[dequeAnchor[T]], old *dequeAnchor[T],
	left, right *dequeNode[T], status dequeStatus) (*dequeAnchor[T], bool) {
	na := d.mmAnchor.alloc(arec)
	na.left, na.right, na.status = left, right, status
	if !d.anchor.CompareAndSwap(old, na) {
		d.mmAnchor.free(arec, na)
		return nil, false
	}
	d.mmAnchor.employ(arec, 0, na)
	d.mmAnchor.retire(arec, old)
	return na, true
}

// PushRight appends an element at the right end.
func (d *Deque[T]) PushRight(elem T) {
	rec := d.mm.acquire()
	arec := d.mmAnchor.acquire()
	node := d.mm.alloc(rec)
	node.data = elem
	sw := spin.Wait{}
	for {
		a := d.snapshot(arec)
		switch {
		case a.right == nil:
			if _, ok := d.swapAnchor(arec, a, node, node, dequeStable); ok {
				d.mm.release(rec)
				d.mmAnchor.release(arec)
				return
			}
		case a.status == dequeStable:
			node.left.Store(a.right)
			if na, ok := d.swapAnchor(arec, a, a.left, node, dequeRPush); ok {
				d.stabilizeRight(rec, arec, na)
				d.mm.release(rec)
				d.mmAnchor.release(arec)
				return
			}
		default:
			d.stabilize(rec, arec, a)
		}
		sw.Once()
	}
}

// PushLeft prepends an element at the left end.
func (d *Deque[T]) PushLeft(elem T) {
	rec := d.mm.acquire()
	arec := d.mmAnchor.acquire()
	node := d.mm.alloc(rec)
	node.data = elem
	sw := spin.Wait{}
	for {
		a := d.snapshot(arec)
		switch {
		case a.left == nil:
			if _, ok := d.swapAnchor(arec, a, node, node, dequeStable); ok {
				d.mm.release(rec)
				d.mmAnchor.release(arec)
				return
			}
		case a.status == dequeStable:
			node.right.Store(a.left)
			if na, ok := d.swapAnchor(arec, a, node, a.right, dequeLPush); ok {
				d.stabilizeLeft(rec, arec, na)
				d.mm.release(rec)
				d.mmAnchor.release(arec)
				return
			}
		default:
			d.stabilize(rec, arec, a)
		}
		sw.Once()
	}
}

// PopRight removes and returns the rightmost element.
// Returns (zero-value, ErrWouldBlock) if the deque is empty.
func (d *Deque[T]) PopRight() (T, error) {
	rec := d.mm.acquire()
	arec := d.mmAnchor.acquire()
	var elem T
	sw := spin.Wait{}
	for {
		a := d.snapshot(arec)
		if a.right == nil {
			d.mm.release(rec)
			d.mmAnchor.release(arec)
			var zero T
			return zero, ErrWouldBlock
		}
		if a.left == a.right {
			right := a.right
			d.mm.employ(rec, dSlotRight, right)
			if d.anchor.Load() != a {
				continue
			}
			if _, ok := d.swapAnchor(arec, a, nil, nil, dequeStable); ok {
				elem = right.data
				d.mm.retire(rec, right)
				break
			}
		} else if a.status == dequeStable {
			right := a.right
			d.mm.employ(rec, dSlotLeft, a.left)
			d.mm.employ(rec, dSlotRight, right)
			if d.anchor.Load() != a {
				continue
			}
			prev := right.left.Load()
			d.mm.employ(rec, dSlotPrev, prev)
			if d.anchor.Load() != a {
				continue
			}
			if _, ok := d.swapAnchor(arec, a, a.left, prev, dequeStable); ok {
				elem = right.data
				d.mm.retire(rec, right)
				break
			}
		} else {
			d.stabilize(rec, arec, a)
		}
		sw.Once()
	}
	d.mm.release(rec)
	d.mmAnchor.release(arec)
	return elem, nil
}

// PopLeft removes and returns the leftmost element.
// Returns (zero-value, ErrWouldBlock) if the deque is empty.
func (d *Deque[T]) PopLeft() (T, error) {
	rec := d.mm.acquire()
	arec := d.mmAnchor.acquire()
	var elem T
	sw := spin.Wait{}
	for {
		a := d.snapshot(arec)
		if a.left == nil {
			d.mm.release(rec)
			d.mmAnchor.release(arec)
			var zero T
			return zero, ErrWouldBlock
		}
		if a.left == a.right {
			left := a.left
			d.mm.employ(rec, dSlotLeft, left)
			if d.anchor.Load() != a {
				continue
			}
			if _, ok := d.swapAnchor(arec, a, nil, nil, dequeStable); ok {
				elem = left.data
				d.mm.retire(rec, left)
				break
			}
		} else if a.status == dequeStable {
			left := a.left
			d.mm.employ(rec, dSlotLeft, left)
			d.mm.employ(rec, dSlotRight, a.right)
			if d.anchor.Load() != a {
				continue
			}
			prev := left.right.Load()
			d.mm.employ(rec, dSlotPrev, prev)
			if d.anchor.Load() != a {
				continue
			}
			if _, ok := d.swapAnchor(arec, a, prev, a.right, dequeStable); ok {
				elem = left.data
				d.mm.retire(rec, left)
				break
			}
		} else {
			d.stabilize(rec, arec, a)
		}
		sw.Once()
	}
	d.mm.release(rec)
	d.mmAnchor.release(arec)
	return elem, nil
}

// PeekRight returns the rightmost element without removing it.
// Returns (zero-value, ErrWouldBlock) if the deque is empty.
func (d *Deque[T]) PeekRight() (T, error) {
	rec := d.mm.acquire()
	arec := d.mmAnchor.acquire()
	for {
		a := d.snapshot(arec)
		if a.right == nil {
			d.mm.release(rec)
			d.mmAnchor.release(arec)
			var zero T
			return zero, ErrWouldBlock
		}
		d.mm.employ(rec, dSlotRight, a.right)
		if d.anchor.Load() != a {
			continue
		}
		elem := a.right.data
		d.mm.release(rec)
		d.mmAnchor.release(arec)
		return elem, nil
	}
}

// PeekLeft returns the leftmost element without removing it.
// Returns (zero-value, ErrWouldBlock) if the deque is empty.
func (d *Deque[T]) PeekLeft() (T, error) {
	rec := d.mm.acquire()
	arec := d.mmAnchor.acquire()
	for {
		a := d.snapshot(arec)
		if a.left == nil {
			d.mm.release(rec)
			d.mmAnchor.release(arec)
			var zero T
			return zero, ErrWouldBlock
		}
		d.mm.employ(rec, dSlotLeft, a.left)
		if d.anchor.Load() != a {
			continue
		}
		elem := a.left.data
		d.mm.release(rec)
		d.mmAnchor.release(arec)
		return elem, nil
	}
}

// Enqueue appends at the right end; with [Deque.Dequeue] the deque acts as
// a FIFO queue.
func (d *Deque[T]) Enqueue(elem T) {
	d.PushRight(elem)
}

// Dequeue removes from the left end.
// Returns (zero-value, ErrWouldBlock) if the deque is empty.
func (d *Deque[T]) Dequeue() (T, error) {
	return d.PopLeft()
}

// Empty reports whether the deque was observed empty.
func (d *Deque[T]) Empty() bool {
	arec := d.mmAnchor.acquire()
	a := d.snapshot(arec)
	empty := a.right == nil
	d.mmAnchor.release(arec)
	return empty
}

// Size counts the elements by left-to-right traversal. Not thread-safe:
// the count is approximate under concurrent mutation.
func (d *Deque[T]) Size() int {
	arec := d.mmAnchor.acquire()
	a := d.snapshot(arec)
	d.mmAnchor.release(arec)
	if a.left == nil {
		return 0
	}
	n := 1
	for cur := a.left; cur != a.right; cur = cur.right.Load() {
		n++
	}
	return n
}

// stabilize repairs the back-link a push left broken and returns the anchor
// to STABLE. Callers pass the unstable anchor value pinned in arec slot 0;
// if the anchor has moved on in the meantime, every path below returns
// without effect.
func (d *Deque[T]) stabilize(rec *hprecord[dequeNode[T]], arec *hprecord[dequeAnchor[T]], a *dequeAnchor[T]) {
	if a.status == dequeRPush {
		d.stabilizeRight(rec, arec, a)
	} else {
		d.stabilizeLeft(rec, arec, a)
	}
}

func (d *Deque[T]) stabilizeRight(rec *hprecord[dequeNode[T]], arec *hprecord[dequeAnchor[T]], a *dequeAnchor[T]) {
	al, ar := a.left, a.right
	d.mm.employ(rec, dSlotLeft, al)
	d.mm.employ(rec, dSlotRight, ar)
	if d.anchor.Load() != a {
		return
	}
	prev := ar.left.Load()
	d.mm.employ(rec, dSlotPrev, prev)
	if d.anchor.Load() != a {
		return
	}
	if prevnext := prev.right.Load(); prevnext != ar {
		if d.anchor.Load() != a {
			return
		}
		if !prev.right.CompareAndSwap(prevnext, ar) {
			return
		}
	}
	d.swapAnchor(arec, a, al, ar, dequeStable)
}

func (d *Deque[T]) stabilizeLeft(rec *hprecord[dequeNode[T]], arec *hprecord[dequeAnchor[T]], a *dequeAnchor[T]) {
	al, ar := a.left, a.right
	d.mm.employ(rec, dSlotLeft, al)
	d.mm.employ(rec, dSlotRight, ar)
	if d.anchor.Load() != a {
		return
	}
	prev := al.right.Load()
	d.mm.employ(rec, dSlotPrev, prev)
	if d.anchor.Load() != a {
		return
	}
	if prevnext := prev.left.Load(); prevnext != al {
		if d.anchor.Load() != a {
			return
		}
		if !prev.left.CompareAndSwap(prevnext, al) {
			return
		}
	}
	d.swapAnchor(arec, a, al, ar, dequeStable)
}
