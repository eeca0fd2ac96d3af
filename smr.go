// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"slices"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Safe memory reclamation with hazard pointers, after
//
//	M. M. Michael, "Hazard Pointers: Safe Memory Reclamation for
//	Lock-Free Objects", IEEE TPDS, 2004.
//
// Every container owns one engine per node type. An operation claims a
// record, publishes the pointers it is about to dereference into the
// record's hazard slots, and releases the record when done. A node leaving
// the container is retired rather than dropped; once a scan proves that no
// hazard slot of any record references it, the node moves to the record's
// free list for reuse (or to the collector when the list is full).
//
// The collector already rules out use-after-free, so what the protocol buys
// in Go is ABA safety: a node is never recycled while another operation may
// still compare or dereference its old address.

const (
	// minRetired is the floor of the retirement threshold R.
	minRetired = 16

	// maxFreeNodes caps the per-record free list.
	maxFreeNodes = 32
)

// hprecord is one hazard pointer record. Records are published into an
// engine's global list once and never unlinked; the active flag arbitrates
// ownership. The retired and free lists are private to the current owner.
type hprecord[N any] struct {
	// hp holds the owner's hazard slots. Slots are written with
	// sequentially consistent stores so they are ordered before the
	// owner's subsequent validation loads (the store-load fence the
	// protocol depends on).
	hp []atomic.Pointer[N]

	// next links the global record list. Immutable after publish.
	next *hprecord[N]

	// active is 1 while some operation owns the record. Claimed by CAS,
	// released by a plain store.
	active atomix.Int32

	// retired holds nodes awaiting reclamation.
	retired []*N

	// free holds reclaimed nodes ready for reuse, capped at maxFreeNodes.
	free []*N
}

// smr is a hazard pointer engine for nodes of type N.
type smr[N any] struct {
	head  atomic.Pointer[hprecord[N]]
	count atomix.Int32

	// slots is the number of hazard pointers per record (K).
	slots int

	// reuse disables the free list when false: scanned-out nodes are
	// dropped to the collector instead of being recycled. The skiplist
	// containers run in this mode, see skiplist.go.
	reuse bool
}

func newSMR[N any](slots int) *smr[N] {
	return &smr[N]{slots: slots, reuse: true}
}

// newSMRNoReuse returns an engine whose scans never feed the free list.
func newSMRNoReuse[N any](slots int) *smr[N] {
	return &smr[N]{slots: slots}
}

// threshold returns R, the retired-list length that triggers a scan.
func (e *smr[N]) threshold() int {
	if r := 2 * int(e.count.LoadRelaxed()); r > minRetired {
		return r
	}
	return minRetired
}

// acquire claims a hazard pointer record for the calling goroutine. It first
// tries to reuse an inactive record from the global list; only when every
// record is owned does it allocate and publish a new one. The record stays
// valid until the matching release.
//
// Goroutines migrate between OS threads, so unlike the classic formulation
// the record is claimed per operation rather than cached per thread. The
// list length is bounded by the peak number of concurrent operations.
func (e *smr[N]) acquire() *hprecord[N] {
	for r := e.head.Load(); r != nil; r = r.next {
		if r.active.LoadRelaxed() != 0 {
			continue
		}
		if r.active.CompareAndSwapAcqRel(0, 1) {
			return r
		}
	}

	r := &hprecord[N]{hp: make([]atomic.Pointer[N], e.slots)}
	r.active.StoreRelaxed(1)
	for {
		head := e.head.Load()
		r.next = head
		if e.head.CompareAndSwap(head, r) {
			break
		}
	}
	e.count.AddAcqRel(1)
	return r
}

// release clears the record's hazard slots and returns it to the pool of
// claimable records. The retired and free lists stay with the record; the
// next owner continues them.
func (e *smr[N]) release(r *hprecord[N]) {
	for i := range r.hp {
		r.hp[i].Store(nil)
	}
	r.active.StoreRelease(0)
}

// employ publishes p in hazard slot i of r, ordered before any later load
// the owner performs. The caller must then re-read the shared source and
// retry if it no longer yields p; only after that validation is p safe to
// dereference.
func (e *smr[N]) employ(r *hprecord[N], i int, p *N) {
	r.hp[i].Store(p)
}

// retireSlot clears hazard slot i.
func (e *smr[N]) retireSlot(r *hprecord[N], i int) {
	r.hp[i].Store(nil)
}

// retirePtr clears every hazard slot of r currently holding p.
func (e *smr[N]) retirePtr(r *hprecord[N], p *N) {
	for i := range r.hp {
		if r.hp[i].Load() == p {
			r.hp[i].Store(nil)
		}
	}
}

// retire hands a node removed from the container to the engine. The node is
// reclaimed by a later scan once no hazard slot references it. When the
// retired list reaches R the engine scans immediately and then absorbs the
// leftovers of inactive records.
func (e *smr[N]) retire(r *hprecord[N], n *N) {
	r.retired = append(r.retired, n)
	if len(r.retired) >= e.threshold() {
		e.scan(r)
		e.helpScan(r)
	}
}

// alloc returns a node for reuse from the record's free list, or a fresh
// zeroed allocation when the list is empty.
func (e *smr[N]) alloc(r *hprecord[N]) *N {
	if n := len(r.free); n > 0 {
		p := r.free[n-1]
		r.free[n-1] = nil
		r.free = r.free[:n-1]
		var zero N
		*p = zero
		return p
	}
	return new(N)
}

// free puts a reclaimed node on the record's free list, or drops it to the
// collector when the list is full or reuse is disabled.
func (e *smr[N]) free(r *hprecord[N], n *N) {
	if e.reuse && len(r.free) < maxFreeNodes {
		r.free = append(r.free, n)
	}
}

// scan snapshots every non-empty hazard slot of every record, then walks the
// caller's retired list: nodes present in the snapshot stay retired, the
// rest are reclaimed. Addresses are compared as words; a retired node cannot
// be deallocated mid-scan because the retired list itself references it.
func (e *smr[N]) scan(r *hprecord[N]) {
	var plist []uintptr
	for rec := e.head.Load(); rec != nil; rec = rec.next {
		for i := range rec.hp {
			if p := rec.hp[i].Load(); p != nil {
				plist = append(plist, uintptr(unsafe.Pointer(p)))
			}
		}
	}
	slices.Sort(plist)

	kept := r.retired[:0]
	for _, n := range r.retired {
		if _, hazardous := slices.BinarySearch(plist, uintptr(unsafe.Pointer(n))); hazardous {
			kept = append(kept, n)
		} else {
			e.free(r, n)
		}
	}
	for i := len(kept); i < len(r.retired); i++ {
		r.retired[i] = nil
	}
	r.retired = kept
}

// helpScan absorbs the retired lists of inactive records into r so their
// nodes can be reclaimed even though the original owner is gone. Each
// candidate is locked by claiming its active flag, spliced, and unlocked.
func (e *smr[N]) helpScan(r *hprecord[N]) {
	for rec := e.head.Load(); rec != nil; rec = rec.next {
		if rec.active.LoadRelaxed() != 0 {
			continue
		}
		if !rec.active.CompareAndSwapAcqRel(0, 1) {
			continue
		}
		if len(rec.retired) > 0 {
			r.retired = append(r.retired, rec.retired...)
			clear(rec.retired)
			rec.retired = rec.retired[:0]
		}
		rec.active.StoreRelease(0)
	}
	if len(r.retired) >= e.threshold() {
		e.scan(r)
	}
}
