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

// Package fmindex defines the contract the backtracker needs from an
// FM-index -- ftab lookup, fchr row intervals, and backward LF-mapping
// through a cached locus abstraction -- and provides one concrete,
// sort-based implementation (BWTIndex) for tests, the oracle
// cross-check, and the qualign build/align CLI commands.
//
// Construction of a production-grade FM-index (suffix-array sampling,
// checkpointed occurrence tables, blocked side arrays) is outside this
// package's ambitions; BWTIndex keeps the whole suffix array and a
// dense occurrence table in memory, which is adequate for the toy and
// test-scale references this module targets.
package fmindex

// SideLocus is a cached view of one BWT row sufficient for
// constant-time LF-mapping: which side-block contains the row, and the
// row's rank within that block's character counts. BWTIndex populates
// it directly from the row number; a blocked implementation would
// instead cache the block's base occurrence counts here.
type SideLocus struct {
	row   uint32
	valid bool
}

// Valid reports whether the locus was ever initialized.
func (s SideLocus) Valid() bool { return s.valid }

// Index is the external collaborator the Backtracker consults for
// arrow-pair lookups and backward extension. It has no mutable state
// once built, so implementations need no internal synchronization.
type Index interface {
	// Fchr returns the five global row boundaries: Fchr()[b] is the
	// number of rows whose first character sorts strictly before base
	// b, for b in 0..3, and Fchr()[4] is the total row count.
	Fchr() [5]uint32

	// FtabChars is the k-mer width of the ftab table.
	FtabChars() int

	// Ftab looks up the arrow pair for the ftabChars-mer encoded in
	// kmer (2 bits per base, most-significant pair is the first base
	// of the k-mer). ok is false if the index was built without an
	// ftab or ftabChars is 0.
	Ftab(kmer uint64) (top, bot uint32, ok bool)

	// InitFromTopBot builds the loci for the two boundary rows of an
	// arrow pair, for use by MapLF/MapLFEx.
	InitFromTopBot(top, bot uint32) (ltop, lbot SideLocus)

	// MapLF performs backward LF-mapping of loc under base c, i.e. the
	// row reached by prepending c to the suffix loc represents.
	MapLF(loc SideLocus, c uint8) uint32

	// MapLFEx computes, for all four bases at once, the arrow pair
	// reached by prepending each base to the range [ltop.row,
	// lbot.row).
	MapLFEx(ltop, lbot SideLocus) (outTop, outBot [4]uint32)
}
