// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"cmp"
	"hash/maphash"
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// Set is a lock-free hash set built as a split-ordered list, after
//
//	Shalev, Shavit, "Split-Ordered Lists: Lock-Free Extensible Hash
//	Tables", JACM 2006.
//
// All elements live in one [OrderedList] sorted by bit-reversed hash, so
// the list never needs rehashing. Buckets are dummy nodes spliced into the
// list; growing the table only doubles the bucket count and lazily inserts
// the new dummies, each found through its parent bucket. Regular keys have
// the reversed MSB set (odd split-order keys), dummies do not (even), so
// the two kinds never collide.
//
// Elements whose hashes collide share one split-order key and chain behind
// it; ordering inside a chain is arbitrary, equality is exact.
type Set[K comparable] struct {
	list *OrderedList[setKey[K]]

	// mainArray holds lazily allocated bucket segments.
	mainArray []atomic.Pointer[setSegment[K]]

	segmentSize int
	loadFactor  float64

	// buckets is the live bucket count; doubles under load, never
	// shrinks.
	buckets atomix.Int64

	count *Counter
	seed  maphash.Seed
}

// setTopLevel is the fixed length of the segment directory.
const setTopLevel = 512

type setSegment[K comparable] struct {
	buckets []atomic.Pointer[listNode[setKey[K]]]
}

// setKey orders the backing list: primary by split-order hash, inside a
// collision chain by exact element equality only.
type setKey[K comparable] struct {
	hash uint32
	elem K
}

func compareSetKeys[K comparable](a, b setKey[K]) int {
	if a.hash != b.hash {
		return cmp.Compare(a.hash, b.hash)
	}
	if a.elem == b.elem {
		return 0
	}
	// Same split-order key, different element: keep walking the chain.
	return -1
}

// NewSet creates a set with default tuning.
func NewSet[K comparable]() *Set[K] {
	return NewSetWith[K](SetOptions{})
}

// NewSetWith creates a set tuned by opts.
func NewSetWith[K comparable](opts SetOptions) *Set[K] {
	opts = opts.withDefaults()
	segmentSize := largestPow2(uint32(opts.ExpectedSize/setTopLevel)) << 1
	if segmentSize < MinSegmentSize {
		segmentSize = MinSegmentSize
	}
	s := &Set[K]{
		list:        NewOrderedListFunc[setKey[K]](compareSetKeys[K]),
		mainArray:   make([]atomic.Pointer[setSegment[K]], setTopLevel),
		segmentSize: int(segmentSize),
		loadFactor:  opts.LoadFactor,
		count:       NewCounter(0),
		seed:        maphash.MakeSeed(),
	}
	s.buckets.StoreRelaxed(2)

	// Bucket 0 heads the whole list; install its dummy eagerly.
	rec := s.list.mm.acquire()
	node := s.list.insertReturnNode(rec, &s.list.head, setKey[K]{hash: dummyKey(0)})
	s.list.retireWalk(rec)
	s.list.mm.release(rec)
	s.setBucket(0, node)
	return s
}

// Insert adds elem to the set. Reports false when elem was already present.
func (s *Set[K]) Insert(elem K) bool {
	h := s.hashOf(elem)
	bucket := h % uint32(s.buckets.Load())

	rec := s.list.mm.acquire()
	start := s.getBucket(bucket)
	if start == nil {
		start = s.initializeBucket(rec, bucket)
	}
	ok := s.list.insertFrom(rec, &start.next, setKey[K]{hash: regularKey(h), elem: elem})
	s.list.retireWalk(rec)
	s.list.mm.release(rec)
	if !ok {
		return false
	}

	s.count.Inc()
	oldBuckets := s.buckets.Load()
	if float64(s.count.Value())/float64(oldBuckets) > s.loadFactor &&
		oldBuckets < int64(setTopLevel*s.segmentSize) {
		s.buckets.CompareAndSwapAcqRel(oldBuckets, 2*oldBuckets)
	}
	return true
}

// Remove deletes elem from the set. Reports false when elem was not
// present.
func (s *Set[K]) Remove(elem K) bool {
	h := s.hashOf(elem)
	bucket := h % uint32(s.buckets.Load())

	rec := s.list.mm.acquire()
	start := s.getBucket(bucket)
	if start == nil {
		start = s.initializeBucket(rec, bucket)
	}
	ok := s.list.removeFrom(rec, &start.next, setKey[K]{hash: regularKey(h), elem: elem})
	s.list.retireWalk(rec)
	s.list.mm.release(rec)
	if !ok {
		return false
	}
	s.count.Dec()
	return true
}

// Contains reports whether elem was present during the call.
func (s *Set[K]) Contains(elem K) bool {
	h := s.hashOf(elem)
	bucket := h % uint32(s.buckets.Load())

	rec := s.list.mm.acquire()
	start := s.getBucket(bucket)
	if start == nil {
		start = s.initializeBucket(rec, bucket)
	}
	var st findState[setKey[K]]
	found := s.list.find(rec, &start.next, setKey[K]{hash: regularKey(h), elem: elem}, &st)
	s.list.retireWalk(rec)
	s.list.mm.release(rec)
	return found
}

// Empty reports whether the set was observed empty.
func (s *Set[K]) Empty() bool {
	return s.count.Value() == 0
}

// Size returns the approximate element count.
func (s *Set[K]) Size() int {
	return int(s.count.Value())
}

func (s *Set[K]) hashOf(elem K) uint32 {
	h := maphash.Comparable(s.seed, elem)
	return uint32(h ^ h>>32)
}

// getBucket returns bucket's dummy node, or nil while uninitialized.
func (s *Set[K]) getBucket(bucket uint32) *listNode[setKey[K]] {
	seg := s.mainArray[int(bucket)/s.segmentSize].Load()
	if seg == nil {
		return nil
	}
	return seg.buckets[int(bucket)%s.segmentSize].Load()
}

// setBucket records bucket's dummy node, allocating the segment on first
// touch. Racing writers insert the same dummy, so the first CAS wins and
// the rest are no-ops.
func (s *Set[K]) setBucket(bucket uint32, node *listNode[setKey[K]]) {
	i := int(bucket) / s.segmentSize
	seg := s.mainArray[i].Load()
	if seg == nil {
		fresh := &setSegment[K]{buckets: make([]atomic.Pointer[listNode[setKey[K]]], s.segmentSize)}
		if !s.mainArray[i].CompareAndSwap(nil, fresh) {
			seg = s.mainArray[i].Load()
		} else {
			seg = fresh
		}
	}
	seg.buckets[int(bucket)%s.segmentSize].CompareAndSwap(nil, node)
}

// initializeBucket splices bucket's dummy node into the list, recursively
// ensuring the parent bucket first. The dummy is inserted starting from the
// parent's dummy, so the walk only covers the parent's chain.
func (s *Set[K]) initializeBucket(rec *hprecord[listNode[setKey[K]]], bucket uint32) *listNode[setKey[K]] {
	var start *markedPtr[listNode[setKey[K]]]
	if bucket == 0 {
		start = &s.list.head
	} else {
		parent := bucket - largestPow2(bucket)
		parentNode := s.getBucket(parent)
		if parentNode == nil {
			parentNode = s.initializeBucket(rec, parent)
		}
		start = &parentNode.next
	}
	node := s.list.insertReturnNode(rec, start, setKey[K]{hash: dummyKey(bucket)})
	s.setBucket(bucket, node)
	return node
}

// largestPow2 returns the highest power of two not above n, or 0 for n==0.
func largestPow2(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return 1 << (bits.Len32(n) - 1)
}

// dummyKey is the split-order key of a bucket dummy: the bit-reversed
// bucket index, always even.
func dummyKey(bucket uint32) uint32 {
	return bits.Reverse32(bucket)
}

// regularKey is the split-order key of an element: the reversed hash with
// its MSB forced on, always odd.
func regularKey(hash uint32) uint32 {
	return bits.Reverse32(hash | 0x80000000)
}
