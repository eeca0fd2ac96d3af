// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfc provides unbounded lock-free containers on a shared hazard
// pointer engine.
//
// The package offers a family of multi-producer multi-consumer containers:
//
//   - [TreiberStack], [EBStack]: LIFO stacks (plain and elimination)
//   - [Queue]: Michael-Scott FIFO queue
//   - [OrderedList]: sorted list with set semantics
//   - [Deque]: double-ended queue with a status-tagged anchor
//   - [Set]: split-ordered hash set
//   - [Dictionary], [PriorityQueue]: skiplist-backed ordered map and
//     priority queue
//
// All of them rest on one safe-memory-reclamation engine: hazard pointers
// (Michael, 2004). Every operation publishes the shared pointers it is
// about to dereference, revalidates them, and retires removed nodes until
// a scan proves no other operation can still reference them. The payoff in
// Go is ABA safety under node recycling — the collector already rules out
// use-after-free, but it cannot stop a recycled node from reappearing
// under a compare-and-swap that should have failed.
//
// # Quick Start
//
//	s := lfc.NewTreiberStack[int]()
//	s.Push(42)
//	v, err := s.Pop()
//
//	q := lfc.NewQueue[string]()
//	q.Enqueue("job")
//	job, err := q.Dequeue()
//
//	d := lfc.NewDeque[int]()
//	d.PushLeft(1)
//	d.PushRight(2)
//	l, err := d.PopLeft()
//
// # Basic Usage
//
// Removal from a potentially empty container returns [ErrWouldBlock]
// instead of blocking:
//
//	v, err := q.Dequeue()
//	if lfc.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// Predicates on keyed containers return booleans:
//
//	set := lfc.NewSet[string]()
//	set.Insert("a")     // true: newly inserted
//	set.Insert("a")     // false: already present
//	set.Contains("a")   // true
//	set.Remove("a")     // true: was present
//
// # Common Patterns
//
// Work stealing (Deque):
//
//	// Owner pushes and pops on the right; thieves steal on the left.
//	d := lfc.NewDeque[Task]()
//
//	// Owner
//	d.PushRight(task)
//	t, err := d.PopRight()
//
//	// Thief
//	t, err := d.PopLeft()
//
// Producer/consumer (Queue):
//
//	q := lfc.NewQueue[Event]()
//
//	go func() { // Producer
//	    for ev := range input {
//	        q.Enqueue(ev)
//	    }
//	}()
//
//	go func() { // Consumer
//	    backoff := iox.Backoff{}
//	    for {
//	        ev, err := q.Dequeue()
//	        if err != nil {
//	            backoff.Wait()
//	            continue
//	        }
//	        backoff.Reset()
//	        process(ev)
//	    }
//	}()
//
// Deadline scheduling (PriorityQueue):
//
//	pq := lfc.NewPriorityQueue[int64](0)
//	pq.Insert(deadline.UnixNano())
//	next, err := pq.PeekMin()
//
// # Progress and Ordering
//
// Every operation is linearizable and lock-free: in any bounded stretch of
// execution in which threads keep getting scheduled, at least one
// operation completes. No operation suspends; a failed CAS retries
// immediately. The elimination back-off of [EBStack] waits briefly for a
// partner, but elimination is an optimization layer — a failed exchange
// always falls back to the main CAS loop.
//
// # Memory Reclamation
//
// Nodes removed from a container are retired, not dropped. When a
// retirement threshold is reached the engine scans all published hazard
// pointers and recycles every retired node none of them references; the
// recycled nodes feed later allocations through per-record free lists.
// The threshold scales with the number of records, keeping unreclaimed
// garbage bounded by O(records²) in the worst case.
//
// Engines, records and free lists are per container; two containers never
// exchange nodes.
//
// # Size and Emptiness
//
// Empty is a point-in-time observation that may be stale on return. Size
// traverses without synchronization and is approximate under concurrent
// mutation; treat it as a diagnostic. Neither is a synchronization device.
//
// # Race Detection
//
// Go's race detector tracks the synchronization it can see (mutexes,
// channels, atomics it instruments). Hazard pointer validation establishes
// order through re-reads of independent atomic words, which the detector
// cannot credit, so some stress tests skip themselves when [RaceEnabled]
// is true. This mirrors the sibling queue module.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for counter and flag atomics with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions in retry loops. Container links and hazard slots use
// sync/atomic pointer types: those words must stay visible to the garbage
// collector, which integer atomics cannot provide.
package lfc
