// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

// Stack is the common interface of the unbounded LIFO containers.
//
// Both implementations are linearizable and lock-free:
//
//   - [TreiberStack]: the plain compare-and-swap stack
//   - [EBStack]: the same stack with an elimination back-off array that
//     pairs colliding pushes and pops off the main top pointer
//
// The elimination array is a throughput knob only; the two types are
// interchangeable for correctness.
//
// Example:
//
//	var s lfc.Stack[int] = lfc.NewEBStack[int](0)
//
//	s.Push(42)
//	v, err := s.Pop()
//	if lfc.IsWouldBlock(err) {
//	    // stack was empty
//	}
type Stack[T any] interface {
	// Push adds an element on top of the stack.
	Push(elem T)

	// Pop removes and returns the topmost element.
	// Returns (zero-value, ErrWouldBlock) if the stack is empty.
	Pop() (T, error)

	// PeekTop returns the topmost element without removing it.
	// Returns (zero-value, ErrWouldBlock) if the stack is empty.
	PeekTop() (T, error)

	// Empty reports whether the stack was empty at some point during the
	// call. The answer may be stale by the time it is returned.
	Empty() bool

	// Size counts the elements by traversal. It is inherently approximate
	// under concurrent mutation; use it for diagnostics only.
	Size() int
}

var (
	_ Stack[int] = (*TreiberStack[int])(nil)
	_ Stack[int] = (*EBStack[int])(nil)
)
