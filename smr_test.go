// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync"
	"testing"
)

type smrTestNode struct {
	v int
}

// =============================================================================
// Hazard Pointer Engine
// =============================================================================

// TestMarkedPtrRoundTrip tests pack/unpack of address and mark.
func TestMarkedPtrRoundTrip(t *testing.T) {
	var m markedPtr[smrTestNode]
	n := &smrTestNode{v: 1}

	if p, mk := m.load(); p != nil || mk {
		t.Fatalf("zero value: got %p,%v, want nil,false", p, mk)
	}

	m.store(n, false)
	if p, mk := m.load(); p != n || mk {
		t.Fatalf("store unmarked: got %p,%v", p, mk)
	}

	m.store(n, true)
	if p, mk := m.load(); p != n || !mk {
		t.Fatalf("store marked: got %p,%v", p, mk)
	}

	// nil with mark set is a valid word (marking a tail link).
	m.store(nil, true)
	if p, mk := m.load(); p != nil || !mk {
		t.Fatalf("marked nil: got %p,%v", p, mk)
	}
}

// TestMarkedPtrCAS tests that the comparison covers both address and mark.
func TestMarkedPtrCAS(t *testing.T) {
	var m markedPtr[smrTestNode]
	a, b := &smrTestNode{}, &smrTestNode{}
	m.store(a, false)

	if m.cas(a, true, b, false) {
		t.Fatal("cas matched despite wrong mark")
	}
	if m.cas(b, false, a, false) {
		t.Fatal("cas matched despite wrong address")
	}
	if !m.cas(a, false, a, true) {
		t.Fatal("mark cas failed")
	}
	if !m.cas(a, true, b, false) {
		t.Fatal("swing cas failed")
	}
	if p, mk := m.load(); p != b || mk {
		t.Fatalf("final: got %p,%v, want %p,false", p, mk, b)
	}
}

// TestSMRScanKeepsHazardousNode tests the core protection property: a node
// held in any hazard slot survives every scan, everything else is
// reclaimed.
func TestSMRScanKeepsHazardousNode(t *testing.T) {
	e := newSMR[smrTestNode](1)

	holder := e.acquire()
	victim := &smrTestNode{v: 42}
	e.employ(holder, 0, victim)

	worker := e.acquire()
	e.retire(worker, victim)
	for i := 0; i < minRetired; i++ {
		e.retire(worker, &smrTestNode{v: i})
	}

	// The threshold fired at least once by now; every unprotected node of
	// the scanned prefix is gone while the victim survived.
	survived := false
	for _, n := range worker.retired {
		if n == victim {
			survived = true
		}
	}
	if !survived {
		t.Fatal("hazardous node was reclaimed")
	}
	if len(worker.retired) >= minRetired {
		t.Fatalf("retired list not scanned: %d nodes", len(worker.retired))
	}
	if len(worker.free) == 0 {
		t.Fatal("free list empty: unprotected nodes were not reclaimed")
	}

	// Dropping the hazard lets the next scan take the victim.
	e.retireSlot(holder, 0)
	for i := 0; i < minRetired; i++ {
		e.retire(worker, &smrTestNode{v: i})
	}
	for _, n := range worker.retired {
		if n == victim {
			t.Fatal("victim still retired after hazard cleared")
		}
	}

	e.release(worker)
	e.release(holder)
}

// TestSMRFreeListRecycles tests that alloc hands back scanned-out nodes and
// that the free list respects its cap.
func TestSMRFreeListRecycles(t *testing.T) {
	e := newSMR[smrTestNode](1)
	rec := e.acquire()

	addresses := make(map[*smrTestNode]bool)
	for i := 0; i < minRetired; i++ {
		n := &smrTestNode{v: i}
		addresses[n] = true
		e.retire(rec, n)
	}
	if len(rec.free) == 0 {
		t.Fatal("free list empty after scan")
	}
	if len(rec.free) > maxFreeNodes {
		t.Fatalf("free list over cap: %d > %d", len(rec.free), maxFreeNodes)
	}

	n := e.alloc(rec)
	if !addresses[n] {
		t.Fatal("alloc did not recycle a reclaimed node")
	}
	if n.v != 0 {
		t.Fatalf("recycled node not zeroed: v=%d", n.v)
	}
	e.release(rec)
}

// TestSMRNoReuseDropsNodes tests that a no-reuse engine never feeds its
// free list.
func TestSMRNoReuseDropsNodes(t *testing.T) {
	e := newSMRNoReuse[smrTestNode](1)
	rec := e.acquire()
	for i := 0; i < 2*minRetired; i++ {
		e.retire(rec, &smrTestNode{v: i})
	}
	if len(rec.free) != 0 {
		t.Fatalf("no-reuse free list: %d nodes, want 0", len(rec.free))
	}
	e.release(rec)
}

// TestSMRRecordReuse tests that release makes a record claimable again
// instead of growing the list.
func TestSMRRecordReuse(t *testing.T) {
	e := newSMR[smrTestNode](2)

	r1 := e.acquire()
	e.release(r1)
	r2 := e.acquire()
	if r1 != r2 {
		t.Fatal("released record not reused")
	}
	if got := e.count.Load(); got != 1 {
		t.Fatalf("record count: got %d, want 1", got)
	}
	e.release(r2)
}

// TestSMRHelpScanAbsorbs tests that an inactive record's retired list is
// spliced into the scanning record.
func TestSMRHelpScanAbsorbs(t *testing.T) {
	e := newSMR[smrTestNode](1)

	// Two live records so the orphan stays distinct from the worker.
	orphan := e.acquire()
	worker := e.acquire()

	stranded := []*smrTestNode{{v: 1}, {v: 2}, {v: 3}}
	for _, n := range stranded {
		e.retire(orphan, n)
	}
	e.release(orphan)

	// Push the worker over the threshold: scan reclaims its own garbage,
	// then helpScan locks the orphan and takes over the stranded nodes.
	for i := 0; i < minRetired; i++ {
		e.retire(worker, &smrTestNode{v: i + 10})
	}

	if len(orphan.retired) != 0 {
		t.Fatalf("orphan keeps %d retired nodes, want 0", len(orphan.retired))
	}
	if len(worker.retired) != len(stranded) {
		t.Fatalf("worker retired: %d nodes, want %d absorbed", len(worker.retired), len(stranded))
	}
	if orphan.active.Load() != 0 {
		t.Fatal("orphan left locked by helpScan")
	}
	e.release(worker)
}

// TestSMRThresholdScales tests R = max(MIN, 2*records).
func TestSMRThresholdScales(t *testing.T) {
	e := newSMR[smrTestNode](1)
	if got := e.threshold(); got != minRetired {
		t.Fatalf("empty engine threshold: got %d, want %d", got, minRetired)
	}

	records := make([]*hprecord[smrTestNode], 0, minRetired)
	for range minRetired {
		records = append(records, e.acquire())
	}
	if got := e.threshold(); got != 2*minRetired {
		t.Fatalf("threshold with %d records: got %d, want %d", minRetired, got, 2*minRetired)
	}
	for _, r := range records {
		e.release(r)
	}
}

// TestSMRAcquireConcurrent tests that the record list stays bounded by the
// peak number of simultaneous owners.
func TestSMRAcquireConcurrent(t *testing.T) {
	const (
		workers = 8
		rounds  = 2000
	)
	e := newSMR[smrTestNode](1)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				rec := e.acquire()
				e.employ(rec, 0, &smrTestNode{})
				e.release(rec)
			}
		}()
	}
	wg.Wait()

	if got := e.count.Load(); got > workers {
		t.Fatalf("record count: got %d, want <= %d", got, workers)
	}
	// Every record must end up claimable.
	for r := e.head.Load(); r != nil; r = r.next {
		if r.active.Load() != 0 {
			t.Fatal("record left active after all releases")
		}
	}
}
