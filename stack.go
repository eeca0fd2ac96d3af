// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"

	"code.hybscloud.com/spin"
)

// TreiberStack is an unbounded lock-free LIFO stack (Treiber, 1986).
//
// Push installs a freshly linked node with a single CAS on top. Pop
// hazard-protects the observed top, validates it, and CASes top to its
// successor. Popped nodes are retired through the stack's hazard pointer
// engine and recycled once no concurrent pop may still reference them.
//
// Memory: one node per element, reclaimed through per-record free lists.
type TreiberStack[T any] struct {
	top atomic.Pointer[stackNode[T]]
	mm  *smr[stackNode[T]]
}

type stackNode[T any] struct {
	data T
	// next is written only before the node is published and never after,
	// so it needs no atomic access: the CAS on top orders it.
	next *stackNode[T]
}

// NewTreiberStack creates an empty stack.
func NewTreiberStack[T any]() *TreiberStack[T] {
	return &TreiberStack[T]{mm: newSMR[stackNode[T]](1)}
}

// Push adds an element on top of the stack.
func (s *TreiberStack[T]) Push(elem T) {
	rec := s.mm.acquire()
	node := s.mm.alloc(rec)
	node.data = elem
	sw := spin.Wait{}
	for {
		oldTop := s.top.Load()
		node.next = oldTop
		if s.top.CompareAndSwap(oldTop, node) {
			break
		}
		sw.Once()
	}
	s.mm.release(rec)
}

// Pop removes and returns the topmost element.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
func (s *TreiberStack[T]) Pop() (T, error) {
	rec := s.mm.acquire()
	var oldTop *stackNode[T]
	sw := spin.Wait{}
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
		sw.Once()
	}
	s.mm.retireSlot(rec, 0)
	elem := oldTop.data
	s.mm.retire(rec, oldTop)
	s.mm.release(rec)
	return elem, nil
}

// PeekTop returns the topmost element without removing it.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
func (s *TreiberStack[T]) PeekTop() (T, error) {
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
func (s *TreiberStack[T]) Empty() bool {
	return s.top.Load() == nil
}

// Size counts the elements by traversal. Not thread-safe: concurrent pops
// may unlink the node under the cursor, so the count is approximate.
func (s *TreiberStack[T]) Size() int {
	n := 0
	for node := s.top.Load(); node != nil; node = node.next {
		n++
	}
	return n
}
