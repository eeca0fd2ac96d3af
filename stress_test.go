// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfc"
)

// =============================================================================
// Stress Tests
//
// These runs hammer the hazard pointer engine: small payload counts per
// scan window keep the retired lists churning, so node recycling happens
// constantly while other goroutines still hold references. The race
// detector cannot credit ordering established through hazard validation
// and reports false positives, hence the RaceEnabled skips; see doc.go.
// =============================================================================

// TestStressStackChurn tests rapid push/pop cycling under full recycling
// pressure with a wall-clock bound.
func TestStressStackChurn(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: hazard validation ordering is invisible to the race detector")
	}
	if testing.Short() {
		t.Skip("skip: stress in -short mode")
	}
	const (
		workers = 8
		timeout = 10 * time.Second
	)
	s := lfc.NewEBStack[int](0)

	var pushed, popped atomix.Int64
	deadline := time.Now().Add(timeout)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			backoff := iox.Backoff{}
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				if i%2 == 0 {
					s.Push(w<<20 | i)
					pushed.Add(int64(w<<20 | i))
					backoff.Reset()
					continue
				}
				if v, err := s.Pop(); err == nil {
					popped.Add(int64(v))
					backoff.Reset()
				} else {
					backoff.Wait()
				}
			}
		}(w)
	}

	for time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	close(stop)
	wg.Wait()

	// Drain the remainder single-threaded.
	for {
		v, err := s.Pop()
		if err != nil {
			break
		}
		popped.Add(int64(v))
	}
	if pushed.Load() != popped.Load() {
		t.Fatalf("payload sum mismatch: pushed %d, popped %d", pushed.Load(), popped.Load())
	}
}

// TestStressQueueThroughput tests sustained MPMC traffic through the queue
// under a watchdog: if the whole run has not finished within the timeout,
// something is stuck and the test panics.
func TestStressQueueThroughput(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: hazard validation ordering is invisible to the race detector")
	}
	if testing.Short() {
		t.Skip("skip: stress in -short mode")
	}
	const (
		producers = 4
		consumers = 4
		perProd   = 200000
		timeout   = 30 * time.Second
	)
	q := lfc.NewQueue[int]()

	var produced, consumed atomix.Int64
	var consumedSum atomix.Int64
	done := make(chan struct{})

	var prodWg, consWg sync.WaitGroup
	for p := range producers {
		prodWg.Add(1)
		go func(p int) {
			defer prodWg.Done()
			for i := range perProd {
				q.Enqueue(p*perProd + i)
				produced.Add(1)
			}
		}(p)
	}
	for range consumers {
		consWg.Add(1)
		go func() {
			defer consWg.Done()
			backoff := iox.Backoff{}
			for {
				v, err := q.Dequeue()
				if err != nil {
					select {
					case <-done:
						for {
							v, err := q.Dequeue()
							if err != nil {
								return
							}
							consumedSum.Add(int64(v))
							consumed.Add(1)
						}
					default:
						backoff.Wait()
						continue
					}
				}
				backoff.Reset()
				consumedSum.Add(int64(v))
				consumed.Add(1)
			}
		}()
	}

	// Liveness watchdog: global progress must never stall.
	watchdog := time.AfterFunc(timeout, func() {
		panic("stress queue: no completion within timeout")
	})
	defer watchdog.Stop()

	prodWg.Wait()
	close(done)
	consWg.Wait()

	if consumed.Load() != producers*perProd {
		t.Fatalf("consumed %d values, want %d", consumed.Load(), producers*perProd)
	}
	var want int64
	for p := range producers {
		for i := range perProd {
			want += int64(p*perProd + i)
		}
	}
	if consumedSum.Load() != want {
		t.Fatalf("payload sum mismatch: got %d, want %d", consumedSum.Load(), want)
	}
}

// TestStressDequeBothEnds tests every operation class of the deque at once:
// both pushes, both pops, both peeks, against one anchor.
func TestStressDequeBothEnds(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: hazard validation ordering is invisible to the race detector")
	}
	if testing.Short() {
		t.Skip("skip: stress in -short mode")
	}
	const (
		pairs   = 4
		perProd = 50000
	)
	d := lfc.NewDeque[int]()

	var pushedSum, poppedSum atomix.Int64
	done := make(chan struct{})

	var prodWg, consWg sync.WaitGroup
	for p := range pairs {
		prodWg.Add(1)
		go func(p int) {
			defer prodWg.Done()
			push := d.PushLeft
			if p%2 == 0 {
				push = d.PushRight
			}
			for i := range perProd {
				v := p*perProd + i
				push(v)
				pushedSum.Add(int64(v))
			}
		}(p)

		consWg.Add(1)
		go func(p int) {
			defer consWg.Done()
			pop := d.PopLeft
			peek := d.PeekLeft
			if p%2 == 0 {
				pop = d.PopRight
				peek = d.PeekRight
			}
			backoff := iox.Backoff{}
			for {
				if v, err := pop(); err == nil {
					poppedSum.Add(int64(v))
					backoff.Reset()
					peek()
					continue
				}
				select {
				case <-done:
					for {
						v, err := pop()
						if err != nil {
							return
						}
						poppedSum.Add(int64(v))
					}
				default:
					backoff.Wait()
				}
			}
		}(p)
	}

	prodWg.Wait()
	close(done)
	consWg.Wait()

	if pushedSum.Load() != poppedSum.Load() {
		t.Fatalf("payload sum mismatch: pushed %d, popped %d", pushedSum.Load(), poppedSum.Load())
	}
	if !d.Empty() {
		t.Fatal("deque not empty after draining")
	}
}

// TestStressSetMixed tests the set under reads, writes and growth at once.
func TestStressSetMixed(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: hazard validation ordering is invisible to the race detector")
	}
	if testing.Short() {
		t.Skip("skip: stress in -short mode")
	}
	const (
		workers = 8
		keys    = 4096
		rounds  = 50000
	)
	s := lfc.NewSetWith[int](lfc.SetOptions{ExpectedSize: 256})

	var wg sync.WaitGroup
	inserted := make([]int64, workers)
	removed := make([]int64, workers)
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range rounds {
				k := (w*31 + i*17) % keys
				switch i % 4 {
				case 0, 1:
					if s.Insert(k) {
						inserted[w]++
					}
				case 2:
					s.Contains(k)
				default:
					if s.Remove(k) {
						removed[w]++
					}
				}
			}
		}(w)
	}
	wg.Wait()

	var ins, rem int64
	for w := range workers {
		ins += inserted[w]
		rem += removed[w]
	}
	var survivors int64
	for k := range keys {
		if s.Remove(k) {
			survivors++
		}
	}
	if survivors != ins-rem {
		t.Fatalf("survivors: got %d, want %d", survivors, ins-rem)
	}
}

// TestStressDictionaryAndPQ tests the two skiplist facades side by side on
// separate structures, interleaving all operation classes.
func TestStressDictionaryAndPQ(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: hazard validation ordering is invisible to the race detector")
	}
	if testing.Short() {
		t.Skip("skip: stress in -short mode")
	}
	const (
		workers = 4
		perW    = 20000
	)
	dict := lfc.NewDictionary[int, int](0)
	pq := lfc.NewPriorityQueue[int](0)

	var enq, deq atomix.Int64
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			base := w * perW
			for i := range perW {
				dict.Insert(base+i, i)
				pq.Insert(base + i)
				enq.Add(1)
				if i%2 == 1 {
					if _, err := pq.DeleteMin(); err == nil {
						deq.Add(1)
					}
					dict.Remove(base + i)
				}
			}
		}(w)
	}
	wg.Wait()

	// Drain the remainder; totals must balance.
	for {
		if _, err := pq.DeleteMin(); err != nil {
			break
		}
		deq.Add(1)
	}
	if enq.Load() != deq.Load() {
		t.Fatalf("pq drain mismatch: enqueued %d, dequeued %d", enq.Load(), deq.Load())
	}
	if got, want := dict.Size(), workers*perW/2; got != want {
		t.Fatalf("dictionary survivors: got %d, want %d", got, want)
	}
}
