// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
)

// skiplist is the lock-free skiplist shared by [Dictionary] and
// [PriorityQueue]. Every level's next pointer is a [markedPtr]: deletion
// marks the victim's links, then any traversal that passes a marked node
// unlinks it at the level it is walking, exactly as the ordered list does
// at its single level.
//
// The level-0 chain is the truth; upper levels are shortcuts. A node is
// retired when its level-0 unlink succeeds. At that point stale shortcuts
// may still reference it, and no cheap test can prove they are gone, so
// this engine runs with node reuse disabled: a retired node parks in the
// retired list until a scan clears it and then falls to the collector,
// which cannot free it while any shortcut or traversal still holds it.
// The other containers detect full unlinking exactly and therefore recycle.
type skiplist[K any, V any] struct {
	head     *skipNode[K, V]
	compare  func(K, K) int
	maxLevel int
	mm       *smr[skipNode[K, V]]

	// seed feeds the shared xorshift generator behind randomLevel. It
	// advances racily on purpose; level quality does not need more.
	seed atomix.Uint64
}

type skipNode[K any, V any] struct {
	key   K
	value atomic.Pointer[V]
	level int
	next  []markedPtr[skipNode[K, V]]
}

// newSkiplist creates an empty skiplist with towers up to maxLevel.
func newSkiplist[K any, V any](compare func(K, K) int, maxLevel int) *skiplist[K, V] {
	if maxLevel <= 0 {
		maxLevel = DefaultMaxLevel
	}
	s := &skiplist[K, V]{
		head:     &skipNode[K, V]{level: maxLevel, next: make([]markedPtr[skipNode[K, V]], maxLevel)},
		compare:  compare,
		maxLevel: maxLevel,
		mm:       newSMRNoReuse[skipNode[K, V]](3),
	}
	s.seed.StoreRelaxed(uint64(time.Now().UnixNano()) | 1)
	return s
}

// randomLevel draws a tower height in [1, maxLevel] with geometric decay.
func (s *skiplist[K, V]) randomLevel() int {
	x := s.seed.LoadRelaxed()
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.seed.StoreRelaxed(x)
	level := 1
	for x&1 == 1 && level < s.maxLevel {
		level++
		x >>= 1
	}
	return level
}

// find descends the towers collecting, per level, the last node with key
// below target (preds) and its successor (succs). Marked nodes encountered
// on the way are unlinked at that level; a level-0 unlink also retires the
// node. Returns the first level-0 node carrying an equal key, if any.
//
// The walk pins cur and next in hazard slots and revalidates after every
// load, the same discipline as the ordered list. The returned preds and
// succs are kept valid by the collector, see the type comment.
func (s *skiplist[K, V]) find(rec *hprecord[skipNode[K, V]], key K, preds, succs []*skipNode[K, V]) *skipNode[K, V] {
retry:
	for {
		pred := s.head
		for i := s.maxLevel - 1; i >= 0; i-- {
			cur, _ := pred.next[i].load()
			s.mm.employ(rec, lSlotCur, cur)
			if c, m := pred.next[i].load(); c != cur || m {
				continue retry
			}
			for cur != nil {
				next, cmark := cur.next[i].load()
				s.mm.employ(rec, lSlotNext, next)
				if n, m := cur.next[i].load(); n != next || m != cmark {
					continue retry
				}
				if c, m := pred.next[i].load(); c != cur || m {
					continue retry
				}
				if cmark {
					if !pred.next[i].cas(cur, false, next, false) {
						continue retry
					}
					if i == 0 {
						s.mm.retire(rec, cur)
					}
					cur = next
					s.mm.employ(rec, lSlotCur, cur)
					continue
				}
				if s.compare(cur.key, key) < 0 {
					pred = cur
					s.mm.employ(rec, lSlotPrev, cur)
					cur = next
					s.mm.employ(rec, lSlotCur, cur)
					continue
				}
				break
			}
			preds[i] = pred
			succs[i] = cur
		}
		if first := succs[0]; first != nil && s.compare(first.key, key) == 0 {
			return first
		}
		return nil
	}
}

// insert links a new node carrying key and value. When upsert is true and
// an equal live key exists, its value is replaced instead and insert
// reports false; duplicates link unconditionally when upsert is false.
func (s *skiplist[K, V]) insert(key K, value *V, upsert bool) bool {
	rec := s.mm.acquire()
	level := s.randomLevel()
	node := s.mm.alloc(rec)
	node.key = key
	node.level = level
	node.next = make([]markedPtr[skipNode[K, V]], level)
	node.value.Store(value)

	preds := make([]*skipNode[K, V], s.maxLevel)
	succs := make([]*skipNode[K, V], s.maxLevel)
	for {
		found := s.find(rec, key, preds, succs)
		if found != nil && upsert {
			if _, marked := found.next[0].load(); marked {
				continue // being deleted; reinsert fresh
			}
			old := found.value.Load()
			if found.value.CompareAndSwap(old, value) {
				s.mm.release(rec)
				return false
			}
			continue
		}
		node.next[0].store(succs[0], false)
		if preds[0].next[0].cas(succs[0], false, node, false) {
			break
		}
	}

	// Link the shortcut levels bottom-up. A concurrent deletion marks
	// level 0 first, so a marked level-0 link means the node is already
	// gone and the remaining shortcuts must not be created.
	for i := 1; i < level; i++ {
		for {
			if _, marked := node.next[0].load(); marked {
				s.mm.release(rec)
				return true
			}
			old, marked := node.next[i].load()
			if marked {
				s.mm.release(rec)
				return true
			}
			if !node.next[i].cas(old, false, succs[i], false) {
				continue
			}
			if preds[i].next[i].cas(succs[i], false, node, false) {
				break
			}
			s.find(rec, key, preds, succs)
		}
	}
	s.mm.release(rec)
	return true
}

// removeNode claims node for deletion: it marks level 0 (the decision
// point), then the shortcut levels, then physically unlinks through find.
// Reports false when another deletion claimed the node first.
func (s *skiplist[K, V]) removeNode(rec *hprecord[skipNode[K, V]], node *skipNode[K, V]) bool {
	for {
		next, marked := node.next[0].load()
		if marked {
			return false
		}
		if node.next[0].cas(next, false, next, true) {
			break
		}
	}
	for i := node.level - 1; i >= 1; i-- {
		for {
			next, marked := node.next[i].load()
			if marked {
				break
			}
			if node.next[i].cas(next, false, next, true) {
				break
			}
		}
	}
	preds := make([]*skipNode[K, V], s.maxLevel)
	succs := make([]*skipNode[K, V], s.maxLevel)
	s.find(rec, node.key, preds, succs)
	return true
}

// first returns the leftmost live node, or nil.
func (s *skiplist[K, V]) first() *skipNode[K, V] {
	cur, _ := s.head.next[0].load()
	for cur != nil {
		next, marked := cur.next[0].load()
		if !marked {
			return cur
		}
		cur = next
	}
	return nil
}

// empty reports whether no live node was observed.
func (s *skiplist[K, V]) empty() bool {
	return s.first() == nil
}

// size counts live nodes by level-0 traversal. Not thread-safe.
func (s *skiplist[K, V]) size() int {
	n := 0
	cur, _ := s.head.next[0].load()
	for cur != nil {
		next, marked := cur.next[0].load()
		if !marked {
			n++
		}
		cur = next
	}
	return n
}
