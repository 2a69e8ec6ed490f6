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

// Package oracle implements a brute-force reference search used only
// to validate the backtracker's correctness in tests: it has no
// dependency on the FM-index and is deliberately O(reference * qlen).
package oracle

import "github.com/qualign/qualign/qualign/backtrack"

// Hit is one brute-force match: the alignment offset in the reference
// and the set of 5'-indexed query positions that mismatched.
type Hit struct {
	Offset     uint32
	Mismatches []uint32
}

// FindAll scans ref (base codes 0..3, ambiguous positions as any value
// >3) at every alignment offset and returns every position accepted
// by the policy, applying query mutations first exactly as the
// backtracker does.
func FindAll(ref []uint8, query []uint8, qual []byte, policy backtrack.Policy, muts []backtrack.QueryMutation) []Hit {
	qlen := uint32(len(query))
	q := append([]uint8(nil), query...)
	for _, m := range muts {
		q[m.Pos] = m.New
	}

	var hits []Hit
	if uint32(len(ref)) < qlen {
		return nil
	}
	for offset := uint32(0); offset+qlen <= uint32(len(ref)); offset++ {
		mms, ok := accepts(ref[offset:offset+qlen], q, qual, policy)
		if !ok {
			continue
		}
		for _, m := range muts {
			mms = append(mms, m.Pos)
		}
		hits = append(hits, Hit{Offset: offset, Mismatches: mms})
	}
	return hits
}

// accepts implements the acceptance predicate of §4.6: scan
// right-to-left (3'->5'), track weighted distance and the
// region-bucketed mismatch counts, and check half-and-half if
// enabled.
func accepts(window []uint8, q []uint8, qual []byte, policy backtrack.Policy) ([]uint32, bool) {
	qlen := uint32(len(q))
	var ham uint32
	var mms []uint32
	var oneRegionCount, twoRegionCount int
	var firstHalf, secondHalf int

	for d := uint32(0); d < qlen; d++ {
		cur := qlen - d - 1
		if window[cur] == q[cur] {
			continue
		}
		if window[cur] > 3 {
			return nil, false // ambiguous reference base never matches, never counts as a scorable mismatch
		}
		if d < policy.UnrevOff {
			return nil, false
		}
		ph := backtrack.Phred(qual[cur])
		ham += ph
		if ham > policy.QualThresh {
			return nil, false
		}
		mms = append(mms, cur)

		switch {
		case d < policy.OneRevOff:
			oneRegionCount++
			if oneRegionCount > 1 {
				return nil, false
			}
		case d < policy.TwoRevOff:
			twoRegionCount++
			if twoRegionCount > 2 {
				return nil, false
			}
		}

		if policy.HalfAndHalf {
			if d < policy.OneRevOff {
				firstHalf++
			} else {
				secondHalf++
			}
		}
	}

	if policy.HalfAndHalf && (firstHalf != 1 || secondHalf != 1) {
		return nil, false
	}

	return mms, true
}
