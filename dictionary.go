// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "cmp"

// Dictionary is a lock-free ordered key-value map on a concurrent
// skiplist. Insert upserts: an existing live key gets its value replaced
// atomically. Keys are unique and kept in key order; the type offers no
// iteration.
//
// Expected O(log n) search with the usual skiplist caveat that the bound
// is probabilistic.
type Dictionary[K any, V any] struct {
	sl *skiplist[K, V]
}

// NewDictionary creates an empty dictionary ordered by cmp.Compare.
// maxLevel bounds the tower height; maxLevel <= 0 selects DefaultMaxLevel.
func NewDictionary[K cmp.Ordered, V any](maxLevel int) *Dictionary[K, V] {
	return NewDictionaryFunc[K, V](cmp.Compare[K], maxLevel)
}

// NewDictionaryFunc creates an empty dictionary ordered by compare.
func NewDictionaryFunc[K any, V any](compare func(a, b K) int, maxLevel int) *Dictionary[K, V] {
	return &Dictionary[K, V]{sl: newSkiplist[K, V](compare, maxLevel)}
}

// Insert maps key to value. Reports true when the key was newly inserted,
// false when an existing mapping had its value replaced.
func (d *Dictionary[K, V]) Insert(key K, value V) bool {
	v := value
	return d.sl.insert(key, &v, true)
}

// Find returns the value mapped to key. The second result is false when
// the key was not present.
func (d *Dictionary[K, V]) Find(key K) (V, bool) {
	rec := d.sl.mm.acquire()
	preds := make([]*skipNode[K, V], d.sl.maxLevel)
	succs := make([]*skipNode[K, V], d.sl.maxLevel)
	node := d.sl.find(rec, key, preds, succs)
	if node == nil {
		d.sl.mm.release(rec)
		var zero V
		return zero, false
	}
	value := node.value.Load()
	_, marked := node.next[0].load()
	d.sl.mm.release(rec)
	if marked {
		var zero V
		return zero, false
	}
	return *value, true
}

// Remove deletes key and returns the value it mapped to. The second result
// is false when the key was not present.
func (d *Dictionary[K, V]) Remove(key K) (V, bool) {
	rec := d.sl.mm.acquire()
	preds := make([]*skipNode[K, V], d.sl.maxLevel)
	succs := make([]*skipNode[K, V], d.sl.maxLevel)
	node := d.sl.find(rec, key, preds, succs)
	if node == nil {
		d.sl.mm.release(rec)
		var zero V
		return zero, false
	}
	claimed := d.sl.removeNode(rec, node)
	if !claimed {
		d.sl.mm.release(rec)
		var zero V
		return zero, false
	}
	// The claim froze the node; its value no longer changes.
	value := node.value.Load()
	d.sl.mm.release(rec)
	return *value, true
}

// Empty reports whether the dictionary was observed empty.
func (d *Dictionary[K, V]) Empty() bool {
	return d.sl.empty()
}

// Size counts the mappings by traversal. Not thread-safe: the count is
// approximate under concurrent mutation.
func (d *Dictionary[K, V]) Size() int {
	return d.sl.size()
}
