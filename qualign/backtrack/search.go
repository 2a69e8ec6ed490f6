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

package backtrack

// searchState carries the parts of a single Backtrack() invocation
// that are not worth threading through every frame() call as explicit
// parameters: the bound Backtracker, a snapshot of the policy, and
// the eventual hit.
type searchState struct {
	bt       *Backtracker
	policy   Policy
	usedFtab bool
	hit      Hit
}

// arrowQuartet is the per-depth (top,bot) for all four bases, stashed
// in a frame's pairs scratch only at depths where alternatives were
// considered -- non-alternative depths never need it.
type arrowQuartet [4][2]uint32

// frame runs the forward column scan starting at search depth `depth`
// with incoming arrow range (top,bot) and accumulated weighted
// distance ham, backtracking into fresh frames (stackDepth+1) as
// needed. unrevOff/oneRevOff/twoRevOff are this frame's (possibly
// already-widened) region boundaries.
func (st *searchState) frame(stackDepth, depth, top, bot, ham uint32, unrevOff, oneRevOff, twoRevOff uint32) bool {
	bt := st.bt
	qlen := bt.qlen
	q := bt.query.Bases
	qual := bt.query.Qual

	pairs := bt.framePairs(stackDepth)
	elims := bt.frameElims(stackDepth)
	var isAlt [SPREAD]bool

	var altNum, eligibleNum uint32
	var eligibleSz uint32
	lowAltQual := ^uint32(0)

	d := depth
	for d < qlen {
		cur := qlen - d - 1
		c := q[cur]
		ph := Phred(qual[cur])
		local := d - depth

		alternative := d >= unrevOff && ham+ph <= st.policy.QualThresh
		if st.policy.HalfAndHalf && ((d == oneRevOff && stackDepth < 1) || (d == twoRevOff && stackDepth < 2)) {
			// A half boundary is the first depth of the next half: its
			// alternatives cannot pay the mismatch the closing half owes.
			alternative = false
		}

		var quartet arrowQuartet
		if d == 0 && top == 0 && bot == 0 && !st.usedFtab {
			fchr := bt.idx.Fchr()
			for b := 0; b < 4; b++ {
				quartet[b] = [2]uint32{fchr[b], fchr[b+1]}
			}
		} else if alternative {
			ltop, lbot := bt.idx.InitFromTopBot(top, bot)
			outTop, outBot := bt.idx.MapLFEx(ltop, lbot)
			for b := 0; b < 4; b++ {
				quartet[b] = [2]uint32{outTop[b], outBot[b]}
			}
		} else {
			ltop, lbot := bt.idx.InitFromTopBot(top, bot)
			quartet[c] = [2]uint32{bt.idx.MapLF(ltop, c), bt.idx.MapLF(lbot, c)}
		}

		elims[local] = 1 << c
		if alternative {
			isAlt[local] = true
			copy(pairs[local*8:local*8+8], flattenQuartet(quartet))

			var liveCount, liveSpan uint32
			for b := uint8(0); b < 4; b++ {
				if b == c {
					continue
				}
				top_, bot_ := quartet[b][0], quartet[b][1]
				if top_ >= bot_ {
					elims[local] |= 1 << b
					continue
				}
				liveCount++
				liveSpan += bot_ - top_
			}
			if liveCount > 0 {
				altNum += liveCount
				if ph < lowAltQual {
					lowAltQual = ph
					eligibleNum = 0
					eligibleSz = 0
				}
				if ph == lowAltQual {
					eligibleNum += liveCount
					eligibleSz += liveSpan
				}
			}
		}

		newTop, newBot := quartet[c][0], quartet[c][1]

		if st.policy.HalfAndHalf {
			// keepGoingDespiteMatch: a half that reaches its boundary
			// without the mismatch it owes can't be completed by
			// continuing greedily, matched or not -- force a
			// backtrack into whatever alternatives this half offered.
			if d == oneRevOff && stackDepth < 1 {
				if altNum > 0 {
					return st.backtrackSelect(stackDepth, depth, d, ham, pairs, elims, isAlt[:], altNum, lowAltQual, eligibleNum, eligibleSz, unrevOff, oneRevOff, twoRevOff)
				}
				return false
			}
			if d == twoRevOff && stackDepth < 2 {
				if altNum > 0 {
					return st.backtrackSelect(stackDepth, depth, d, ham, pairs, elims, isAlt[:], altNum, lowAltQual, eligibleNum, eligibleSz, unrevOff, oneRevOff, twoRevOff)
				}
				return false
			}
		}

		if newTop >= newBot {
			if altNum > 0 {
				return st.backtrackSelect(stackDepth, depth, d, ham, pairs, elims, isAlt[:], altNum, lowAltQual, eligibleNum, eligibleSz, unrevOff, oneRevOff, twoRevOff)
			}
			return false
		}

		bt.chars[d] = c
		top, bot = newTop, newBot
		d++
	}

	// Full match: d == qlen, (top,bot) is the final arrow range.
	if top >= bot {
		return false
	}

	if st.policy.HalfAndHalf && stackDepth < 2 {
		if altNum > 0 {
			return st.backtrackSelect(stackDepth, depth, d, ham, pairs, elims, isAlt[:], altNum, lowAltQual, eligibleNum, eligibleSz, unrevOff, oneRevOff, twoRevOff)
		}
		return false
	}

	if stackDepth == 0 && st.policy.ReportSeedlings == 0 {
		return st.reportHitAt(stackDepth, top, bot, ham)
	}

	if st.policy.ReportSeedlings > 0 && stackDepth <= st.policy.ReportSeedlings {
		if stackDepth > 0 {
			// The zero-mismatch quick-return match is reserved: it is
			// never itself emitted as a seedling, only the mismatch
			// sets reached by backtracking past it.
			st.appendSeedling(stackDepth)
		}
		if stackDepth < st.policy.ReportSeedlings && altNum > 0 {
			st.backtrackSelect(stackDepth, depth, d, ham, pairs, elims, isAlt[:], altNum, lowAltQual, eligibleNum, eligibleSz, unrevOff, oneRevOff, twoRevOff)
		}
		return false
	}

	return st.reportHitAt(stackDepth, top, bot, ham)
}

func flattenQuartet(q arrowQuartet) []uint32 {
	return []uint32{q[0][0], q[0][1], q[1][0], q[1][1], q[2][0], q[2][1], q[3][0], q[3][1]}
}

// backtrackSelect implements §4.3.1: draw a uniform row-span-weighted
// alternative among the frame's eligible (depth,base) pairs, recurse
// into a fresh frame, and on failure eliminate the candidate and
// retry until the frame's alternatives are exhausted.
func (st *searchState) backtrackSelect(
	stackDepth, depth, d, ham uint32,
	pairs []uint32, elims []uint8, isAlt []bool,
	altNum, lowAltQual, eligibleNum, eligibleSz uint32,
	unrevOff, oneRevOff, twoRevOff uint32,
) bool {
	bt := st.bt
	qlen := bt.qlen
	qual := bt.query.Qual

	for altNum > 0 {
		if eligibleSz == 0 {
			lowAltQual, eligibleNum, eligibleSz = rescan(bt, depth, d, qlen, qual, elims, isAlt, pairs)
			if eligibleNum == 0 {
				return false
			}
		}

		r := bt.rng.NextU32() % eligibleSz
		var cum uint32
		var targetDepth uint32
		var targetBase uint8
		var bttop, btbot uint32
		found := false

	scan:
		for i := depth; i <= d && i < qlen; i++ {
			local := i - depth
			if !isAlt[local] || elims[local] == 0x0F {
				continue
			}
			cur := qlen - i - 1
			ph := Phred(qual[cur])
			if ph != lowAltQual {
				continue
			}
			for b := uint8(0); b < 4; b++ {
				if elims[local]&(1<<b) != 0 {
					continue
				}
				top_ := pairs[int(local)*8+int(b)*2]
				bot_ := pairs[int(local)*8+int(b)*2+1]
				span := bot_ - top_
				cum += span
				if cum > r {
					targetDepth, targetBase = i, b
					bttop, btbot = top_, bot_
					found = true
					break scan
				}
			}
		}
		if !found {
			// Should not happen if eligibleSz accounting is correct;
			// treat as exhausted rather than panic.
			return false
		}

		curI := qlen - targetDepth - 1
		btham := ham + Phred(qual[curI])

		calleeUnrev, calleeOneRev, calleeTwoRev := unrevOff, oneRevOff, twoRevOff
		if targetDepth >= unrevOff && targetDepth < oneRevOff {
			calleeUnrev = oneRevOff
			calleeOneRev = twoRevOff
		} else if targetDepth >= oneRevOff && targetDepth < twoRevOff {
			if st.policy.HalfAndHalf {
				calleeTwoRev = oneRevOff
			} else {
				calleeOneRev = twoRevOff
			}
		}

		bt.mms[stackDepth] = curI
		bt.chars[targetDepth] = targetBase

		var ok bool
		if targetDepth+1 == qlen {
			ok = st.reportHitAt(stackDepth+1, bttop, btbot, btham)
		} else {
			ok = st.frame(stackDepth+1, targetDepth+1, bttop, btbot, btham, calleeUnrev, calleeOneRev, calleeTwoRev)
		}
		if ok {
			return true
		}

		local := targetDepth - depth
		elims[local] |= 1 << targetBase
		altNum--
		eligibleNum--
		eligibleSz -= (btbot - bttop)
	}
	return false
}

// rescan recomputes (lowAltQual, eligibleNum, eligibleSz) over the
// frame's still-live alternatives after exhausting the previous
// eligible tier, per §4.3.1's "rescan" step.
func rescan(bt *Backtracker, depth, d, qlen uint32, qual []byte, elims []uint8, isAlt []bool, pairs []uint32) (lowAltQual, eligibleNum, eligibleSz uint32) {
	lowAltQual = ^uint32(0)
	for i := depth; i <= d && i < qlen; i++ {
		local := i - depth
		if !isAlt[local] || elims[local] == 0x0F {
			continue
		}
		cur := qlen - i - 1
		ph := Phred(qual[cur])
		var liveCount, liveSpan uint32
		for b := uint8(0); b < 4; b++ {
			if elims[local]&(1<<b) != 0 {
				continue
			}
			top_ := pairs[int(local)*8+int(b)*2]
			bot_ := pairs[int(local)*8+int(b)*2+1]
			liveCount++
			liveSpan += bot_ - top_
		}
		if liveCount == 0 {
			continue
		}
		if ph < lowAltQual {
			lowAltQual = ph
			eligibleNum = 0
			eligibleSz = 0
		}
		if ph == lowAltQual {
			eligibleNum += liveCount
			eligibleSz += liveSpan
		}
	}
	return
}

// reportHitAt picks a uniformly random row in [top,bot) and offers it
// (and, on rejection, the rest of the range in cyclic order) to the
// sink.
func (st *searchState) reportHitAt(stackDepth, top, bot, ham uint32) bool {
	bt := st.bt
	span := bot - top
	start := top + bt.rng.NextU32()%span

	mms := append([]uint32(nil), bt.mms[:stackDepth]...)
	for _, m := range bt.query.Muts {
		mms = append(mms, m.Pos)
	}

	for i := uint32(0); i < span; i++ {
		row := top + (start-top+i)%span
		hit := Hit{Row: row, Top: top, Bot: bot, Mismatches: mms, Qlen: bt.qlen, Ham: ham}
		if bt.sink.ReportChaseOne(bt.query.Name, bt.query.Bases, bt.query.Qual, hit) {
			st.hit = hit
			return true
		}
	}
	return false
}

// appendSeedling encodes the current mismatch set (bt.mms[0:stackDepth])
// into bt.seedlings as (pos,base) pairs separated by minorSeparator,
// followed by majorSeparator.
func (st *searchState) appendSeedling(stackDepth uint32) {
	bt := st.bt
	for i := uint32(0); i < stackDepth; i++ {
		pos := bt.mms[i]
		base := bt.chars[bt.qlen-pos-1]
		bt.seedlings = append(bt.seedlings, byte(pos), base)
		if i+1 < stackDepth {
			bt.seedlings = append(bt.seedlings, minorSeparator)
		}
	}
	bt.seedlings = append(bt.seedlings, majorSeparator)
}
