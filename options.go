// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

// Tuning defaults. Constructors accept zero values and substitute these;
// no other knob is settable at runtime.
const (
	// DefaultEliminationWidth is the length of the EBStack collision
	// arrays.
	DefaultEliminationWidth = 8

	// DefaultSetCapacity is the expected element count of a Set:
	// 512 segment-directory entries times 64. With this default the
	// segment size works out to 128 buckets.
	DefaultSetCapacity = 512 * 64

	// DefaultLoadFactor is the Set occupancy ratio that triggers bucket
	// doubling.
	DefaultLoadFactor = 0.75

	// MinSegmentSize is the smallest Set bucket segment.
	MinSegmentSize = 8

	// DefaultMaxLevel is the tower height limit of the skiplist behind
	// Dictionary and PriorityQueue.
	DefaultMaxLevel = 10
)

// SetOptions tunes a Set. The zero value selects every default.
type SetOptions struct {
	// ExpectedSize is the anticipated element count. It fixes the segment
	// size at construction; the bucket count still grows with load.
	ExpectedSize int

	// LoadFactor triggers bucket doubling when elements/buckets exceeds
	// it. Must be positive; zero selects DefaultLoadFactor.
	LoadFactor float64
}

func (o SetOptions) withDefaults() SetOptions {
	if o.ExpectedSize <= 0 {
		o.ExpectedSize = DefaultSetCapacity
	}
	if o.LoadFactor <= 0 {
		o.LoadFactor = DefaultLoadFactor
	}
	return o
}

// padShort is padding to fill a cache line after an 8-byte field.
type padShort [64 - 8]byte
