// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package wyrand provides the seedable, deterministic random source the
// backtracker uses to break ties among equally-eligible substitutions.
// It is a small counter-based generator built on the wyhash mixing
// function, in the spirit of the reference "wyrand" generator.
package wyrand

import (
	"encoding/binary"

	"github.com/zeebo/wyhash"
)

// Rand is a seedable, non-cryptographic PRNG. The zero value is not
// usable; construct one with New.
type Rand struct {
	seed    uint64
	counter uint64
}

// New returns a Rand seeded deterministically from seed: the same seed
// always produces the same sequence of Next/Intn results, on any
// platform, which is required for the backtracker's reproducibility
// guarantee.
func New(seed uint64) *Rand {
	return &Rand{seed: seed}
}

// Next returns the next pseudo-random uint64 in the sequence.
func (r *Rand) Next() uint64 {
	r.counter++
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], r.counter)
	return wyhash.Hash(buf[:], r.seed)
}

// NextU32 satisfies the backtracker's PRNG contract: a seedable
// source of uniform 32-bit values.
func (r *Rand) NextU32() uint32 {
	return uint32(r.Next())
}

// Intn returns a pseudo-random integer in [0, n). Panics if n <= 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		panic("wyrand: Intn called with n <= 0")
	}
	return int(r.Next() % uint64(n))
}

// Reseed resets the generator to start producing the same sequence it
// would have produced if constructed fresh with New(seed).
func (r *Rand) Reseed(seed uint64) {
	r.seed = seed
	r.counter = 0
}
