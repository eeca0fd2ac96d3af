// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "cmp"

// OrderedList is a lock-free sorted linked list with set semantics, after
//
//	M. M. Michael, "High Performance Dynamic Lock-Free Hash Tables and
//	List-Based Sets", SPAA 2002.
//
// Every link carries a logical-deletion mark in its low bit (see
// [markedPtr]). Remove first marks the victim's next pointer, then unlinks
// it; any traversal that encounters a marked node finishes the unlink on
// the remover's behalf before continuing. Insert into a marked predecessor
// fails the CAS and retries, so a node never becomes reachable through a
// deleted one.
//
// The traversal pins three hazard pointers (prev holder, current, next) and
// revalidates the source link after every advance; this is what makes node
// recycling safe.
//
// Duplicate keys are rejected: the list is the primitive beneath [Set].
type OrderedList[K any] struct {
	head    markedPtr[listNode[K]]
	compare func(K, K) int
	mm      *smr[listNode[K]]
}

type listNode[K any] struct {
	key  K
	next markedPtr[listNode[K]]
}

// Hazard slot assignment for list traversals.
const (
	lSlotNext = 0
	lSlotCur  = 1
	lSlotPrev = 2
)

// findState is the result of a traversal: prev is the link that held cur,
// cur is nil or the first candidate with key >= target, next is cur's
// successor snapshot.
type findState[K any] struct {
	prev  *markedPtr[listNode[K]]
	cur   *listNode[K]
	next  *listNode[K]
	found bool
}

// NewOrderedList creates an empty list ordered by cmp.Compare.
func NewOrderedList[K cmp.Ordered]() *OrderedList[K] {
	return NewOrderedListFunc[K](cmp.Compare[K])
}

// NewOrderedListFunc creates an empty list ordered by compare, which must
// return a negative number when a sorts before b, zero when a equals b, and
// a positive number when a sorts after b.
func NewOrderedListFunc[K any](compare func(a, b K) int) *OrderedList[K] {
	return &OrderedList[K]{compare: compare, mm: newSMR[listNode[K]](3)}
}

// Insert adds key to the list. Reports false when an equal key is already
// present; the list never holds duplicates.
func (l *OrderedList[K]) Insert(key K) bool {
	rec := l.mm.acquire()
	ok := l.insertFrom(rec, &l.head, key)
	l.retireWalk(rec)
	l.mm.release(rec)
	return ok
}

// Remove deletes key from the list. Reports false when no equal key was
// present.
func (l *OrderedList[K]) Remove(key K) bool {
	rec := l.mm.acquire()
	ok := l.removeFrom(rec, &l.head, key)
	l.retireWalk(rec)
	l.mm.release(rec)
	return ok
}

// Contains reports whether an equal key was present during the call.
func (l *OrderedList[K]) Contains(key K) bool {
	rec := l.mm.acquire()
	var st findState[K]
	found := l.find(rec, &l.head, key, &st)
	l.retireWalk(rec)
	l.mm.release(rec)
	return found
}

// Front returns the smallest key.
// Returns (zero-value, ErrWouldBlock) if the list is empty.
func (l *OrderedList[K]) Front() (K, error) {
	rec := l.mm.acquire()
	for {
		first, _ := l.head.load()
		if first == nil {
			l.mm.release(rec)
			var zero K
			return zero, ErrWouldBlock
		}
		l.mm.employ(rec, lSlotCur, first)
		if f, _ := l.head.load(); f != first {
			continue
		}
		next, marked := first.next.load()
		if marked {
			// The front node is logically deleted; finish the
			// unlink and look again.
			if l.head.cas(first, false, next, false) {
				l.mm.retire(rec, first)
			}
			continue
		}
		key := first.key
		l.mm.retireSlot(rec, lSlotCur)
		l.mm.release(rec)
		return key, nil
	}
}

// Empty reports whether the list was observed empty.
func (l *OrderedList[K]) Empty() bool {
	first, _ := l.head.load()
	return first == nil
}

// Size counts unmarked nodes by traversal. Not thread-safe: the count is
// approximate under concurrent mutation.
func (l *OrderedList[K]) Size() int {
	n := 0
	cur, _ := l.head.load()
	for cur != nil {
		next, marked := cur.next.load()
		if !marked {
			n++
		}
		cur = next
	}
	return n
}

// retireWalk clears the three traversal hazard slots.
func (l *OrderedList[K]) retireWalk(rec *hprecord[listNode[K]]) {
	l.mm.retireSlot(rec, lSlotNext)
	l.mm.retireSlot(rec, lSlotCur)
	l.mm.retireSlot(rec, lSlotPrev)
}

// insertFrom adds key into the sublist rooted at start.
func (l *OrderedList[K]) insertFrom(rec *hprecord[listNode[K]], start *markedPtr[listNode[K]], key K) bool {
	node := l.mm.alloc(rec)
	node.key = key
	var st findState[K]
	for {
		if l.find(rec, start, key, &st) {
			l.mm.free(rec, node)
			return false
		}
		node.next.store(st.cur, false)
		if st.prev.cas(st.cur, false, node, false) {
			return true
		}
	}
}

// insertReturnNode is insertFrom for callers that need the resident node:
// it returns the inserted node, or the already-present equal node. Used by
// Set to install bucket dummies exactly once.
func (l *OrderedList[K]) insertReturnNode(rec *hprecord[listNode[K]], start *markedPtr[listNode[K]], key K) *listNode[K] {
	node := l.mm.alloc(rec)
	node.key = key
	var st findState[K]
	for {
		if l.find(rec, start, key, &st) {
			l.mm.free(rec, node)
			return st.cur
		}
		node.next.store(st.cur, false)
		if st.prev.cas(st.cur, false, node, false) {
			return node
		}
	}
}

// removeFrom deletes key from the sublist rooted at start.
func (l *OrderedList[K]) removeFrom(rec *hprecord[listNode[K]], start *markedPtr[listNode[K]], key K) bool {
	var st findState[K]
	for {
		if !l.find(rec, start, key, &st) {
			return false
		}
		// Logical deletion: mark the victim's next pointer. Failure
		// means a concurrent insert or remove touched the victim.
		if !st.cur.next.cas(st.next, false, st.next, true) {
			continue
		}
		// Physical unlink. On failure another traversal already
		// unlinked the victim (and retired it); a fresh find keeps
		// the count of marked-but-linked nodes bounded.
		if st.prev.cas(st.cur, false, st.next, false) {
			l.mm.retire(rec, st.cur)
		} else {
			l.find(rec, start, key, &st)
		}
		return true
	}
}

// find locates the first node with key >= target inside the sublist rooted
// at start, unlinking every marked node it passes. On return the hazard
// slots still pin st.prev's holder, st.cur and st.next, so the caller may
// CAS on them; it must clear the slots when done.
func (l *OrderedList[K]) find(rec *hprecord[listNode[K]], start *markedPtr[listNode[K]], key K, st *findState[K]) bool {
retry:
	for {
		prev := start
		cur, _ := prev.load()
		l.mm.employ(rec, lSlotCur, cur)
		if c, m := prev.load(); c != cur || m {
			continue retry
		}
		for {
			if cur == nil {
				st.prev, st.cur, st.next, st.found = prev, nil, nil, false
				return false
			}
			next, cmark := cur.next.load()
			l.mm.employ(rec, lSlotNext, next)
			if n, m := cur.next.load(); n != next || m != cmark {
				continue retry
			}
			if c, m := prev.load(); c != cur || m {
				continue retry
			}
			if cmark {
				// cur is logically deleted: unlink it here, or
				// restart if somebody beat us to the link.
				if !prev.cas(cur, false, next, false) {
					continue retry
				}
				l.mm.retire(rec, cur)
			} else {
				c := l.compare(cur.key, key)
				if c >= 0 {
					st.prev, st.cur, st.next, st.found = prev, cur, next, c == 0
					return st.found
				}
				// Advance: cur becomes the prev holder and
				// keeps its protection in the prev slot.
				prev = &cur.next
				l.mm.employ(rec, lSlotPrev, cur)
			}
			cur = next
			l.mm.employ(rec, lSlotCur, next)
		}
	}
}
