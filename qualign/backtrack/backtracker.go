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

import (
	"fmt"

	"github.com/qualign/qualign/qualign/fmindex"
	"github.com/shenwei356/kmers"
)

// baseLetters maps a 0..3 base code to its ACGT byte, the alphabet
// github.com/shenwei356/kmers.Encode expects.
var baseLetters = [4]byte{'A', 'C', 'G', 'T'}

// PRNG is the seedable uniform random source the backtracker uses to
// break ties among equally eligible alternatives and rows.
type PRNG interface {
	NextU32() uint32
}

// Hit describes one reported alignment, relative to the query
// orientation the Backtracker was given.
type Hit struct {
	Row        uint32
	Top, Bot   uint32
	Mismatches []uint32 // query-indices (5'-indexed), in search order (descending index), then mutation positions
	Qlen       uint32
	Ham        uint32 // total weighted Hamming distance (sum of phred scores at mismatch positions)
}

// Sink is the caller-supplied collector of accepted alignments. It
// returns true iff it accepted the hit and no further rows in the
// current range need be tried.
type Sink interface {
	ReportChaseOne(name string, query []uint8, qual []byte, hit Hit) bool
}

// Query is the read bound to a Backtracker between SetQuery calls.
type Query struct {
	Name string
	Bases []uint8 // 0..3, length qlen, 5'->3'
	Qual  []byte  // ASCII-phred33, same length as Bases
	Muts  []QueryMutation
}

// Backtracker is the search state machine: per-instance scratch, a
// bound FM-Index, PRNG and sink. Not safe for concurrent use; run one
// per worker goroutine.
type Backtracker struct {
	idx  fmindex.Index
	rng  PRNG
	sink Sink

	policy Policy
	qlen   uint32
	query  *Query

	// scratch, reused across queries; frame stride SPREAD*8 for pairs
	// (u32s) and SPREAD for elims (bytes), one frame per stack depth.
	pairs []uint32
	elims []uint8
	mms   []uint32
	chars []uint8

	maxFrames uint32

	seedlings []byte // (pos,base) pairs separated by 0xFE within a seedling, major separator 0xFF between seedlings

	sanityRefs    [][]uint8
	sanityChecker SanityChecker
}

// SanityChecker independently re-derives whether a query should have
// matched one of sanityRefs under policy, without touching the FM
// index -- the role oracle.FindAll plays for a Backtracker wired up by
// SetSanityReferences. Kept as an injected function rather than a
// direct dependency on the oracle package to avoid backtrack<->oracle
// import cycle; callers that want the cross-check pass oracle.FindAll
// adapted to this shape.
type SanityChecker func(refs [][]uint8, query []uint8, qual []byte, policy Policy, muts []QueryMutation) (found bool)

// SetSanityReferences arms the sanity-build cross-check: every
// Backtrack call re-derives its verdict via checker against refs and
// panics on disagreement. Built as a no-op outside the qualign_sanity
// build tag, matching original_source's _os-gated behavior.
func (bt *Backtracker) SetSanityReferences(refs [][]uint8, checker SanityChecker) {
	bt.sanityRefs = refs
	bt.sanityChecker = checker
}

// SetUnrevOff overrides the policy's unrevisitable-region boundary
// without touching the rest of the policy or reallocating scratch,
// letting a caller run successive passes (e.g. an initial exact pass,
// then a widened backtracking pass) against the same query.
func (bt *Backtracker) SetUnrevOff(v uint32) { bt.policy.UnrevOff = v }

// SetOneRevOff overrides the <=1-mismatch region boundary.
func (bt *Backtracker) SetOneRevOff(v uint32) { bt.policy.OneRevOff = v }

// SetTwoRevOff overrides the <=2-mismatch region boundary.
func (bt *Backtracker) SetTwoRevOff(v uint32) { bt.policy.TwoRevOff = v }

// SetQlen truncates the effective length of the currently bound query
// to n (n <= the query's actual length), without reallocating scratch
// or requiring a new SetQuery call. Used to seed-align a prefix of a
// longer read.
func (bt *Backtracker) SetQlen(n uint32) error {
	if bt.query == nil {
		return fmt.Errorf("backtrack: SetQlen called before SetQuery")
	}
	if n > uint32(len(bt.query.Bases)) {
		return fmt.Errorf("backtrack: SetQlen %d exceeds bound query length %d", n, len(bt.query.Bases))
	}
	bt.qlen = n
	return nil
}

// minorSeparator delimits (pos,base) pairs within one seedling.
const minorSeparator byte = 0xFE

// majorSeparator delimits seedlings from each other in the buffer.
const majorSeparator byte = 0xFF

// New creates a Backtracker bound to idx, using rng for tie-breaking
// and sink to receive accepted hits.
func New(idx fmindex.Index, rng PRNG, sink Sink) *Backtracker {
	return &Backtracker{idx: idx, rng: rng, sink: sink}
}

// SetPolicy installs the region/budget policy used by subsequent
// Backtrack calls.
func (bt *Backtracker) SetPolicy(p Policy) {
	bt.policy = p
}

// SetQuery binds a new read. It (re)allocates scratch if the previous
// buffers are too small for qlen or the policy's unrevisitable region.
func (bt *Backtracker) SetQuery(q *Query) error {
	if len(q.Bases) > SPREAD {
		return fmt.Errorf("backtrack: query length %d exceeds SPREAD (%d)", len(q.Bases), SPREAD)
	}
	if len(q.Bases) != len(q.Qual) {
		return fmt.Errorf("backtrack: query/quality length mismatch: %d vs %d", len(q.Bases), len(q.Qual))
	}
	for _, b := range q.Bases {
		if b > 3 {
			return fmt.Errorf("backtrack: base %d out of range {0,1,2,3}", b)
		}
	}
	for _, ch := range q.Qual {
		if ch < 33 || ch > 73 {
			return fmt.Errorf("backtrack: quality byte %d out of range 33..=73", ch)
		}
	}
	for _, m := range q.Muts {
		if m.Pos >= uint32(len(q.Bases)) {
			return fmt.Errorf("backtrack: mutation position %d >= qlen %d", m.Pos, len(q.Bases))
		}
		if m.Old == m.New {
			return fmt.Errorf("backtrack: mutation at %d has Old == New", m.Pos)
		}
	}

	bt.query = q
	bt.qlen = uint32(len(q.Bases))

	unrev := bt.policy.UnrevOff
	if unrev > bt.qlen {
		unrev = bt.qlen
	}
	maxFrames := bt.qlen - unrev + 4
	if maxFrames > bt.maxFrames {
		bt.maxFrames = maxFrames
		bt.pairs = make([]uint32, maxFrames*SPREAD*8)
		bt.elims = make([]uint8, maxFrames*SPREAD)
		bt.mms = make([]uint32, maxFrames)
	}
	if bt.chars == nil {
		bt.chars = make([]uint8, SPREAD)
	}
	return nil
}

// applyMutations mutates q.Bases in place at the listed positions,
// checking that the expected old base is present.
func applyMutations(q *Query) error {
	for _, m := range q.Muts {
		if q.Bases[m.Pos] != m.Old {
			return fmt.Errorf("backtrack: mutation at %d expected base %d, found %d", m.Pos, m.Old, q.Bases[m.Pos])
		}
		q.Bases[m.Pos] = m.New
	}
	return nil
}

// undoMutations reverses applyMutations.
func undoMutations(q *Query) {
	for _, m := range q.Muts {
		q.Bases[m.Pos] = m.Old
	}
}

// framePairs and frameElims return the pairs/elims sub-slices backing
// frame f (f == stackDepth); callers index within the frame by depth
// minus the frame's starting depth.
func (bt *Backtracker) framePairs(f uint32) []uint32 {
	return bt.pairs[f*SPREAD*8 : (f+1)*SPREAD*8]
}

func (bt *Backtracker) frameElims(f uint32) []uint8 {
	return bt.elims[f*SPREAD : (f+1)*SPREAD]
}

// Backtrack runs the search for the currently bound query and policy,
// returning the accepted Hit (if any) and whether a hit was found.
// When policy.ReportSeedlings > 0, seedlings accumulated along the way
// are available afterward via Seedlings().
func (bt *Backtracker) Backtrack() (Hit, bool, error) {
	if bt.query == nil {
		return Hit{}, false, fmt.Errorf("backtrack: SetQuery not called")
	}
	bt.seedlings = bt.seedlings[:0]

	if len(bt.query.Muts) > 0 {
		if err := applyMutations(bt.query); err != nil {
			return Hit{}, false, err
		}
		defer undoMutations(bt.query)
	}

	p := bt.policy
	ftabChars := bt.idx.FtabChars()
	depth := uint32(0)
	top, bot := uint32(0), uint32(0)
	usedFtab := false

	if ftabChars > 0 && uint32(ftabChars) <= p.UnrevOff && uint32(ftabChars) <= bt.qlen {
		kmer := bt.assembleFtabKmer(uint32(ftabChars))
		t, b, ok := bt.idx.Ftab(kmer)
		if ok {
			top, bot = t, b
			depth = uint32(ftabChars)
			usedFtab = true
		}
	}

	st := &searchState{
		bt:       bt,
		policy:   p,
		usedFtab: usedFtab,
	}
	ok := st.frame(0, depth, top, bot, 0, p.UnrevOff, p.OneRevOff, p.TwoRevOff)
	if !ok {
		bt.checkSanity(false)
		return Hit{}, false, nil
	}
	bt.checkSanity(true)
	return st.hit, true, nil
}

// Seedlings returns the raw seedling buffer accumulated by the most
// recent Backtrack call, encoded per the package's seedling format.
func (bt *Backtracker) Seedlings() []byte {
	return bt.seedlings
}

// assembleFtabKmer packs the last k bases of the query (its 3'-most k
// bases, in 5'->3' order) into a 2-bit-per-base integer matching
// fmindex's ftab key convention (first base in the most significant
// position), via github.com/shenwei356/kmers.Encode rather than
// hand-rolled bit shifting.
func (bt *Backtracker) assembleFtabKmer(k uint32) uint64 {
	start := bt.qlen - k
	letters := make([]byte, k)
	for i := start; i < bt.qlen; i++ {
		letters[i-start] = baseLetters[bt.query.Bases[i]]
	}
	code, err := kmers.Encode(letters)
	if err != nil {
		panic(fmt.Sprintf("backtrack: assembleFtabKmer: %v", err))
	}
	return code
}
