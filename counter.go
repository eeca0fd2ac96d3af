// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "code.hybscloud.com/atomix"

// Counter is a striped counter: updates scatter over a fixed array of
// cache-line-padded cells so concurrent increments do not fight over one
// word. Value sums the cells without synchronization, so the total is
// approximate while updates are in flight — the usual trade of a statistics
// counter.
type Counter struct {
	cells []counterCell
	// ticket round-robins update placement across the cells.
	ticket atomix.Uint64
}

type counterCell struct {
	n atomix.Int64
	_ padShort
}

// NewCounter creates a counter striped over width cells.
// width <= 0 selects one cell per typical core count (8).
func NewCounter(width int) *Counter {
	if width <= 0 {
		width = 8
	}
	return &Counter{cells: make([]counterCell, width)}
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	i := c.ticket.Add(1) % uint64(len(c.cells))
	c.cells[i].n.AddAcqRel(delta)
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.Add(1) }

// Dec decrements the counter by one.
func (c *Counter) Dec() { c.Add(-1) }

// Value returns the sum of all cells.
func (c *Counter) Value() int64 {
	var sum int64
	for i := range c.cells {
		sum += c.cells[i].n.LoadRelaxed()
	}
	return sum
}
