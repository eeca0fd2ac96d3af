// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// tryTimes bounds the slots probed per elimination phase.
const tryTimes = 4

// EBStack is a Treiber stack with an elimination back-off array, after
//
//	Hendler, Shavit, Yerushalmi, "A Scalable Lock-free Stack Algorithm",
//	SPAA 2004.
//
// When the CAS on top fails under contention, a push posts its node into a
// collision array and a pop grabs it from there, so the colliding pair
// completes without ever touching top again. An eliminated pair linearizes
// as an immediate push-then-pop; all other orderings are identical to
// [TreiberStack].
//
// The array length is a throughput knob only. Elimination never blocks
// progress: a failed exchange window falls back to the main CAS loop.
type EBStack[T any] struct {
	top atomic.Pointer[stackNode[T]]
	mm  *smr[stackNode[T]]

	// collPush slots hold nil (empty), a posted push node, or removed.
	// collPop slots hold nil (empty), tombStone (a waiting pop), or a
	// node fed to that pop.
	collPush []atomic.Pointer[stackNode[T]]
	collPop  []atomic.Pointer[stackNode[T]]

	// tombStone and removed are sentinel addresses, never dereferenced.
	tombStone *stackNode[T]
	removed   *stackNode[T]

	// position round-robins the first probed slot.
	position atomix.Uint64
}

// NewEBStack creates an empty elimination stack. width is the collision
// array length; width <= 0 selects DefaultEliminationWidth.
func NewEBStack[T any](width int) *EBStack[T] {
	if width <= 0 {
		width = DefaultEliminationWidth
	}
	return &EBStack[T]{
		mm:        newSMR[stackNode[T]](1),
		collPush:  make([]atomic.Pointer[stackNode[T]], width),
		collPop:   make([]atomic.Pointer[stackNode[T]], width),
		tombStone: new(stackNode[T]),
		removed:   new(stackNode[T]),
	}
}

// Push adds an element on top of the stack.
func (s *EBStack[T]) Push(elem T) {
	rec := s.mm.acquire()
	node := s.mm.alloc(rec)
	node.data = elem
	for {
		oldTop := s.top.Load()
		node.next = oldTop
		if s.top.CompareAndSwap(oldTop, node) {
			break
		}
		if s.tryAdd(node) {
			break
		}
	}
	s.mm.release(rec)
}

// Pop removes and returns the topmost element.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
func (s *EBStack[T]) Pop() (T, error) {
	rec := s.mm.acquire()
	var oldTop *stackNode[T]
	for {
		oldTop = s.top.Load()
		if oldTop == nil {
			s.mm.release(rec)
			var zero T
			return zero, ErrWouldBlock
		}
		s.mm.employ(rec, 0, oldTop)
		if s.top.Load() != oldTop {
			continue
		}
		if s.top.CompareAndSwap(oldTop, oldTop.next) {
			break
		}
		if col := s.tryRemove(); col != nil {
			// The eliminated node came straight from a colliding
			// push: it was never published, so nobody else can
			// reference it and it is retired directly.
			s.mm.retireSlot(rec, 0)
			elem := col.data
			s.mm.retire(rec, col)
			s.mm.release(rec)
			return elem, nil
		}
	}
	s.mm.retireSlot(rec, 0)
	elem := oldTop.data
	s.mm.retire(rec, oldTop)
	s.mm.release(rec)
	return elem, nil
}

// PeekTop returns the topmost element without removing it.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
//
// An element parked in the collision array is mid-elimination and not yet
// observable; PeekTop reports the main stack only.
func (s *EBStack[T]) PeekTop() (T, error) {
	rec := s.mm.acquire()
	for {
		oldTop := s.top.Load()
		if oldTop == nil {
			s.mm.release(rec)
			var zero T
			return zero, ErrWouldBlock
		}
		s.mm.employ(rec, 0, oldTop)
		if s.top.Load() != oldTop {
			continue
		}
		elem := oldTop.data
		s.mm.retireSlot(rec, 0)
		s.mm.release(rec)
		return elem, nil
	}
}

// Empty reports whether the stack was observed empty.
func (s *EBStack[T]) Empty() bool {
	return s.top.Load() == nil
}

// Size counts the elements by traversal. Not thread-safe.
func (s *EBStack[T]) Size() int {
	n := 0
	for node := s.top.Load(); node != nil; node = node.next {
		n++
	}
	return n
}

// slot returns the i-th probe position starting from the round-robin base.
func (s *EBStack[T]) slot(base uint64, i int) int {
	return int((base + uint64(i)) % uint64(len(s.collPush)))
}

// tryAdd attempts to hand node to a colliding pop. It first feeds a waiting
// pop directly, then posts the node and waits one back-off window for a pop
// to take it. Reports whether the node was handed off.
func (s *EBStack[T]) tryAdd(node *stackNode[T]) bool {
	base := s.position.Add(1)

	// A pop waiting at a tombstone takes the node immediately.
	for i := 0; i < tryTimes; i++ {
		index := s.slot(base, i)
		popOp := s.collPop[index].Load()
		if popOp == s.tombStone {
			if s.collPop[index].CompareAndSwap(popOp, node) {
				return true
			}
		}
	}

	// Post the node and wait for a pop to collide with it.
	for i := 0; i < tryTimes; i++ {
		index := s.slot(base, i)
		if s.collPush[index].Load() != nil {
			continue
		}
		if !s.collPush[index].CompareAndSwap(nil, node) {
			continue
		}
		backoff := iox.Backoff{}
		backoff.Wait()
		for {
			pushOp := s.collPush[index].Load()
			if pushOp == node {
				if s.collPush[index].CompareAndSwap(node, nil) {
					return false // nobody came, withdraw
				}
				continue // a pop is taking it right now
			}
			// A pop replaced the node with removed; reset the
			// slot and report the hand-off.
			s.collPush[index].Store(nil)
			return true
		}
	}
	return false
}

// tryRemove attempts to take a node from a colliding push. It first grabs a
// posted push node, then parks a tombstone and waits one back-off window for
// a push to feed it. Returns the taken node, or nil if elimination failed.
func (s *EBStack[T]) tryRemove() *stackNode[T] {
	base := s.position.Add(1)

	// Grab a node a push already posted.
	for i := 0; i < tryTimes; i++ {
		index := s.slot(base, i)
		pushOp := s.collPush[index].Load()
		if pushOp != nil && pushOp != s.removed {
			if s.collPush[index].CompareAndSwap(pushOp, s.removed) {
				return pushOp
			}
		}
	}

	// Park a tombstone and wait for a push to feed it.
	for i := 0; i < tryTimes; i++ {
		index := s.slot(base, i)
		if s.collPop[index].Load() != nil {
			continue
		}
		if !s.collPop[index].CompareAndSwap(nil, s.tombStone) {
			continue
		}
		backoff := iox.Backoff{}
		backoff.Wait()
		for {
			popOp := s.collPop[index].Load()
			if popOp != s.tombStone {
				s.collPop[index].Store(nil)
				return popOp
			}
			if s.collPop[index].CompareAndSwap(s.tombStone, nil) {
				return nil // nobody came, withdraw
			}
		}
	}
	return nil
}
