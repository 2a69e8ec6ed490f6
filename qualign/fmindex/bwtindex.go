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

package fmindex

import (
	"github.com/shenwei356/kmers"
	"github.com/twotwotwo/sorts"
)

// baseLetters maps a 0..3 base code to its ACGT byte, the alphabet
// github.com/shenwei356/kmers.Encode expects.
var baseLetters = [4]byte{'A', 'C', 'G', 'T'}

// sentinelRow is always row 0: the suffix consisting of just the
// end-of-text marker, which sorts before every real base.
const sentinelRow = 0

// BWTIndex is a sort-based FM-index over one concatenated text of
// base codes 0..3. It keeps the full suffix array and a dense
// occurrence table in memory rather than the side-block/checkpoint
// structures a production ebwt would use.
type BWTIndex struct {
	text []uint8 // base codes 0..3, length n
	sa   []int32 // suffix array over text + sentinel, length n+1
	bwt  []uint8 // bwt[i] = text[sa[i]-1], or sentinelMark at the row whose suffix is the whole text (sa[i] == 0)

	fchr [5]uint32
	// occ[b][i] = number of occurrences of base b in bwt[0:i].
	occ [4][]uint32

	ftabChars int
	ftab      map[uint64][2]uint32

	boundaries []uint32 // cumulative lengths of concatenated reference sequences
}

const sentinelMark uint8 = 255

// Build constructs a BWTIndex over text, a slice of base codes in
// 0..3 (as produced by reference.EncodeSequences' per-position codes,
// with ambiguous runs skipped by the caller -- this index does not
// model ambiguous bases). ftabChars selects the width of the
// precomputed k-mer shortcut table; pass 0 to skip it.
func Build(text []uint8, ftabChars int) *BWTIndex {
	n := len(text)
	idx := &BWTIndex{text: append([]uint8(nil), text...), ftabChars: ftabChars}

	sa := make([]int32, n+1)
	for i := range sa {
		sa[i] = int32(i)
	}
	sorts.Quicksort(suffixArray{sa: sa, text: idx.text})
	idx.sa = sa

	bwt := make([]uint8, n+1)
	for i, s := range sa {
		if s == 0 {
			bwt[i] = sentinelMark
		} else {
			bwt[i] = idx.text[s-1]
		}
	}
	idx.bwt = bwt

	var counts [4]uint32
	for _, c := range idx.text {
		counts[c]++
	}
	idx.fchr[0] = 1 // row 0 is the sentinel
	for b := 0; b < 4; b++ {
		idx.fchr[b+1] = idx.fchr[b] + counts[b]
	}

	for b := 0; b < 4; b++ {
		occ := make([]uint32, n+2)
		var run uint32
		for i := 0; i <= n; i++ {
			occ[i] = run
			if bwt[i] == uint8(b) {
				run++
			}
		}
		occ[n+1] = run
		idx.occ[b] = occ
	}

	if ftabChars > 0 {
		idx.buildFtab(ftabChars)
	}
	return idx
}

// BuildMulti concatenates seqs (each a slice of unambiguous base
// codes for one reference sequence) and builds one index over the
// whole text, recording sequence boundaries for RowToRef.
func BuildMulti(seqs [][]uint8, ftabChars int) *BWTIndex {
	var text []uint8
	var boundaries []uint32
	for _, s := range seqs {
		text = append(text, s...)
		boundaries = append(boundaries, uint32(len(text)))
	}
	idx := Build(text, ftabChars)
	idx.boundaries = boundaries
	return idx
}

// suffixArray adapts a suffix-array-in-progress to sort.Interface so
// it can be sorted by the parallel github.com/twotwotwo/sorts
// quicksort instead of the single-threaded standard library one.
type suffixArray struct {
	sa   []int32
	text []uint8
}

func (s suffixArray) Len() int      { return len(s.sa) }
func (s suffixArray) Swap(i, j int) { s.sa[i], s.sa[j] = s.sa[j], s.sa[i] }
func (s suffixArray) Less(i, j int) bool {
	return suffixLess(s.text, s.sa[i], s.sa[j])
}

func suffixLess(text []uint8, i, j int32) bool {
	n := int32(len(text))
	for {
		var a, b int
		ai := i < n
		bi := j < n
		if !ai && !bi {
			return false
		}
		if !ai {
			return true
		}
		if !bi {
			return false
		}
		a = int(text[i])
		b = int(text[j])
		if a != b {
			return a < b
		}
		i++
		j++
	}
}

func (idx *BWTIndex) buildFtab(k int) {
	idx.ftab = make(map[uint64][2]uint32)
	n := len(idx.sa)
	letters := make([]byte, k)
	for i := 0; i < n; i++ {
		pos := int(idx.sa[i])
		if pos+k > len(idx.text) {
			continue
		}
		for j := 0; j < k; j++ {
			letters[j] = baseLetters[idx.text[pos+j]]
		}
		kmer, err := kmers.Encode(letters)
		if err != nil {
			continue
		}
		if rng, ok := idx.ftab[kmer]; ok {
			rng[1] = uint32(i + 1)
			idx.ftab[kmer] = rng
		} else {
			idx.ftab[kmer] = [2]uint32{uint32(i), uint32(i + 1)}
		}
	}
}

// Fchr implements Index.
func (idx *BWTIndex) Fchr() [5]uint32 { return idx.fchr }

// FtabChars implements Index.
func (idx *BWTIndex) FtabChars() int { return idx.ftabChars }

// Ftab implements Index.
func (idx *BWTIndex) Ftab(kmer uint64) (top, bot uint32, ok bool) {
	if idx.ftab == nil {
		return 0, 0, false
	}
	rng, found := idx.ftab[kmer]
	if !found {
		return 0, 0, true
	}
	return rng[0], rng[1], true
}

// InitFromTopBot implements Index.
func (idx *BWTIndex) InitFromTopBot(top, bot uint32) (ltop, lbot SideLocus) {
	return SideLocus{row: top, valid: true}, SideLocus{row: bot, valid: true}
}

func (idx *BWTIndex) occAt(b int, row uint32) uint32 {
	return idx.occ[b][row]
}

// MapLF implements Index.
func (idx *BWTIndex) MapLF(loc SideLocus, c uint8) uint32 {
	return idx.fchr[c] + idx.occAt(int(c), loc.row)
}

// MapLFEx implements Index.
func (idx *BWTIndex) MapLFEx(ltop, lbot SideLocus) (outTop, outBot [4]uint32) {
	for c := uint8(0); c < 4; c++ {
		outTop[c] = idx.MapLF(ltop, c)
		outBot[c] = idx.MapLF(lbot, c)
	}
	return
}

// RowToRef translates a BWT row (one that is not the sentinel row) to
// a (reference index, offset) pair in the concatenated multi-sequence
// text built by BuildMulti. It is not part of the Index contract; the
// CLI and the sink use it to turn a hit row into a reportable locus.
func (idx *BWTIndex) RowToRef(row uint32) (ref, offset uint32) {
	pos := uint32(idx.sa[row])
	if len(idx.boundaries) == 0 {
		return 0, pos
	}
	start := uint32(0)
	for i, end := range idx.boundaries {
		if pos < end {
			return uint32(i), pos - start
		}
		start = end
	}
	return uint32(len(idx.boundaries) - 1), pos - start
}

// IsSentinelRow reports whether row is the synthetic end-of-text row,
// which carries no base and must never be selected as a hit.
func (idx *BWTIndex) IsSentinelRow(row uint32) bool {
	return row == sentinelRow
}
