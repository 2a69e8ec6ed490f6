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

// Package backtrack implements the region-constrained, quality-aware
// backtracking search over an FM-index: the core of this module.
package backtrack

// SPREAD is the maximum supported query length. Scratch buffers are
// sized in units of SPREAD regardless of the actual query length so
// that a Backtracker, once allocated, never reallocates mid-search.
const SPREAD = 64

// Policy bounds the search: which search depths may carry mismatches
// (depth d is query index qlen-d-1, so depth 0 is the read's 3'-most
// base), the weighted-distance budget, and the optional
// half-and-half and seedling modes.
type Policy struct {
	UnrevOff  uint32 // [0, UnrevOff) is unrevisitable
	OneRevOff uint32 // [UnrevOff, OneRevOff) admits <=1 mismatch
	TwoRevOff uint32 // [OneRevOff, TwoRevOff) admits <=2 mismatches

	QualThresh uint32 // total weighted Hamming distance budget

	HalfAndHalf bool // require exactly one mismatch in each of two halves

	ReportSeedlings uint32 // > 0 enables seedling enumeration up to this many mismatches
}

// QueryMutation is a single forced substitution applied to the query
// before search and undone before reporting, so that the reported
// mismatch set reflects the original, unmutated read.
type QueryMutation struct {
	Pos uint32
	Old uint8
	New uint8
}

// Phred converts an ASCII-phred33 quality byte (valid range 33..=73)
// to a phred score in 0..=40.
func Phred(q byte) uint32 {
	return uint32(q) - 33
}

// DescribeRegions renders the backtracking region map for a query of
// length qlen under policy: one character per search depth, depth 0
// (the read's 3' end) first, '0' for unrevisitable, '1' for the
// <=1-mismatch region, '2' for the <=2-mismatch region, and 'X' past
// twoRevOff (can only happen when twoRevOff < qlen). Ported from
// printHit's region-map rendering, used by verbose CLI output.
func DescribeRegions(p Policy, qlen uint32) string {
	b := make([]byte, qlen)
	for i := uint32(0); i < qlen; i++ {
		switch {
		case i < p.UnrevOff:
			b[i] = '0'
		case i < p.OneRevOff:
			b[i] = '1'
		case i < p.TwoRevOff:
			b[i] = '2'
		default:
			b[i] = 'X'
		}
	}
	return string(b)
}
