// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"
	"unsafe"
)

// markedPtr is a single atomic word holding a node address together with a
// logical-deletion mark in the lowest address bit.
//
// A marked word is the node address with bit 0 set. Node allocations are at
// least word aligned, so bit 0 is never set on an unmarked address. The
// marked word is an interior pointer into the node's allocation, which keeps
// the node visible to the garbage collector.
//
// Marking a node's next pointer logically deletes the node; a later traversal
// physically unlinks it. See list.go and skiplist.go for the unlink protocol.
type markedPtr[N any] struct {
	p unsafe.Pointer
}

// load returns the current node pointer and mark.
func (m *markedPtr[N]) load() (*N, bool) {
	return unpackMarked[N](atomic.LoadPointer(&m.p))
}

// store unconditionally replaces the word. Only valid before the node is
// shared or when the caller owns the containing node exclusively.
func (m *markedPtr[N]) store(n *N, mark bool) {
	atomic.StorePointer(&m.p, packMarked(n, mark))
}

// cas atomically replaces (oldN, oldMark) with (newN, newMark).
// The comparison covers both the address and the mark, so a concurrent
// logical deletion makes the swap fail.
func (m *markedPtr[N]) cas(oldN *N, oldMark bool, newN *N, newMark bool) bool {
	return atomic.CompareAndSwapPointer(&m.p, packMarked(oldN, oldMark), packMarked(newN, newMark))
}

func packMarked[N any](n *N, mark bool) unsafe.Pointer {
	if !mark {
		return unsafe.Pointer(n)
	}
	return unsafe.Pointer(uintptr(unsafe.Pointer(n)) | 1)
}

func unpackMarked[N any](p unsafe.Pointer) (*N, bool) {
	if uintptr(p)&1 == 0 {
		return (*N)(p), false
	}
	return (*N)(unsafe.Pointer(uintptr(p) &^ 1)), true
}
