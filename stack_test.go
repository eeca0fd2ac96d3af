// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfc"
)

// =============================================================================
// Stacks - Basic Operations
//
// Every scenario runs against both implementations: elimination is a
// throughput layer and must not be observable through correctness.
// =============================================================================

func stacksUnderTest(t *testing.T) map[string]func() lfc.Stack[int] {
	t.Helper()
	return map[string]func() lfc.Stack[int]{
		"Treiber": func() lfc.Stack[int] { return lfc.NewTreiberStack[int]() },
		"EB":      func() lfc.Stack[int] { return lfc.NewEBStack[int](0) },
		"EBWide":  func() lfc.Stack[int] { return lfc.NewEBStack[int](32) },
	}
}

// TestStackPushPop tests the single push/pop round trip.
func TestStackPushPop(t *testing.T) {
	for name, mk := range stacksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()

			if !s.Empty() {
				t.Fatal("new stack not empty")
			}

			s.Push(5)
			v, err := s.Pop()
			if err != nil {
				t.Fatalf("Pop: %v", err)
			}
			if v != 5 {
				t.Fatalf("Pop: got %d, want 5", v)
			}
			if !s.Empty() {
				t.Fatal("stack not empty after draining")
			}

			// Empty stack returns ErrWouldBlock
			if _, err := s.Pop(); !errors.Is(err, lfc.ErrWouldBlock) {
				t.Fatalf("Pop on empty: got %v, want ErrWouldBlock", err)
			}
		})
	}
}

// TestStackLIFO tests that a single thread pops in reverse push order.
func TestStackLIFO(t *testing.T) {
	const n = 1000
	for name, mk := range stacksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			for i := range n {
				s.Push(i)
			}
			if got := s.Size(); got != n {
				t.Fatalf("Size: got %d, want %d", got, n)
			}
			for i := n - 1; i >= 0; i-- {
				v, err := s.Pop()
				if err != nil {
					t.Fatalf("Pop(%d): %v", i, err)
				}
				if v != i {
					t.Fatalf("Pop: got %d, want %d", v, i)
				}
			}
			if !s.Empty() {
				t.Fatal("stack not empty after draining")
			}
		})
	}
}

// TestStackPeekTop tests that PeekTop observes without removing.
func TestStackPeekTop(t *testing.T) {
	for name, mk := range stacksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()

			if _, err := s.PeekTop(); !errors.Is(err, lfc.ErrWouldBlock) {
				t.Fatalf("PeekTop on empty: got %v, want ErrWouldBlock", err)
			}

			s.Push(7)
			s.Push(9)
			for range 3 {
				v, err := s.PeekTop()
				if err != nil {
					t.Fatalf("PeekTop: %v", err)
				}
				if v != 9 {
					t.Fatalf("PeekTop: got %d, want 9", v)
				}
			}
			if got := s.Size(); got != 2 {
				t.Fatalf("Size after peeks: got %d, want 2", got)
			}
		})
	}
}

// TestStackSingleProducerSingleConsumer tests one pusher against one popper
// busy-waiting on empty: the popped multiset must equal the pushed set.
func TestStackSingleProducerSingleConsumer(t *testing.T) {
	const n = 1000
	for name, mk := range stacksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			seen := make([]bool, n)

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := range n {
					s.Push(i)
				}
			}()
			go func() {
				defer wg.Done()
				backoff := iox.Backoff{}
				for popped := 0; popped < n; {
					v, err := s.Pop()
					if err != nil {
						backoff.Wait()
						continue
					}
					backoff.Reset()
					if v < 0 || v >= n || seen[v] {
						t.Errorf("popped invalid or duplicate value %d", v)
						return
					}
					seen[v] = true
					popped++
				}
			}()
			wg.Wait()

			for i, ok := range seen {
				if !ok {
					t.Fatalf("value %d never popped", i)
				}
			}
			if !s.Empty() {
				t.Fatal("stack not empty after draining")
			}
		})
	}
}

// TestStackConcurrentSum tests that no update is lost under P producers and
// C consumers: the drained payload sum equals the pushed payload sum.
func TestStackConcurrentSum(t *testing.T) {
	if testing.Short() {
		t.Skip("skip: stress in -short mode")
	}
	const (
		producers = 4
		consumers = 4
		perProd   = 5000
	)
	for name, mk := range stacksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()

			var pushed, popped int64
			var wg sync.WaitGroup
			done := make(chan struct{})

			sums := make([]int64, consumers)
			for c := range consumers {
				wg.Add(1)
				go func(c int) {
					defer wg.Done()
					backoff := iox.Backoff{}
					for {
						v, err := s.Pop()
						if err != nil {
							select {
							case <-done:
								// Producers finished; drain what is left.
								for {
									v, err := s.Pop()
									if err != nil {
										return
									}
									sums[c] += int64(v)
								}
							default:
								backoff.Wait()
								continue
							}
						}
						backoff.Reset()
						sums[c] += int64(v)
					}
				}(c)
			}

			var prodWg sync.WaitGroup
			for p := range producers {
				prodWg.Add(1)
				go func(p int) {
					defer prodWg.Done()
					for i := range perProd {
						s.Push(p*perProd + i)
					}
				}(p)
			}
			prodWg.Wait()
			close(done)
			wg.Wait()

			for p := range producers {
				for i := range perProd {
					pushed += int64(p*perProd + i)
				}
			}
			for _, s := range sums {
				popped += s
			}
			if pushed != popped {
				t.Fatalf("sum mismatch: pushed %d, popped %d", pushed, popped)
			}
			if !s.Empty() {
				t.Fatal("stack not empty after draining")
			}
		})
	}
}
