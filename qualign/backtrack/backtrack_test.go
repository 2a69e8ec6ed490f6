package backtrack_test

import (
	"testing"

	"github.com/qualign/qualign/qualign/backtrack"
	"github.com/qualign/qualign/qualign/fmindex"
	"github.com/qualign/qualign/qualign/oracle"
	"github.com/qualign/qualign/qualign/sink"
	"github.com/qualign/qualign/qualign/wyrand"
)

func phred(p uint32) byte { return byte(33 + p) }

func qualAll(n int, p uint32) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = phred(p)
	}
	return q
}

func newBacktracker(idx *fmindex.BWTIndex, seed uint64) (*backtrack.Backtracker, *sink.Collector) {
	c := &sink.Collector{}
	bt := backtrack.New(idx, wyrand.New(seed), c)
	return bt, c
}

func TestExactMatchViaFtab(t *testing.T) {
	ref := []uint8{0, 1, 2, 3, 0, 1, 2, 3, 0, 1} // ACGTACGTAC
	idx := fmindex.Build(ref, 4)
	bt, c := newBacktracker(idx, 1)

	bt.SetPolicy(backtrack.Policy{UnrevOff: 5, OneRevOff: 5, TwoRevOff: 5, QualThresh: 0})
	query := []uint8{1, 2, 3, 0, 1} // CGTAC
	if err := bt.SetQuery(&backtrack.Query{Name: "r1", Bases: query, Qual: qualAll(5, 40)}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	hit, ok, err := bt.Backtrack()
	if err != nil {
		t.Fatalf("Backtrack: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if len(hit.Mismatches) != 0 {
		t.Fatalf("expected zero mismatches, got %v", hit.Mismatches)
	}
	_, offset := idx.RowToRef(hit.Row)
	if offset != 1 {
		t.Fatalf("hit offset = %d, want 1", offset)
	}
	if len(c.Hits) != 1 {
		t.Fatalf("sink recorded %d hits, want 1", len(c.Hits))
	}
}

func TestOneMismatchInRevisitableRegion(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 0, 1, 1, 1, 1, 1} // AAAAACCCCC
	idx := fmindex.Build(ref, 0)
	bt, _ := newBacktracker(idx, 2)

	bt.SetPolicy(backtrack.Policy{UnrevOff: 4, OneRevOff: 10, TwoRevOff: 10, QualThresh: 30})
	query := []uint8{0, 0, 0, 0, 3, 1, 1, 1, 1, 1} // AAAATCCCCC
	qual := qualAll(10, 40)
	qual[4] = phred(30)
	if err := bt.SetQuery(&backtrack.Query{Name: "r2", Bases: query, Qual: qual}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	hit, ok, err := bt.Backtrack()
	if err != nil {
		t.Fatalf("Backtrack: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if len(hit.Mismatches) != 1 || hit.Mismatches[0] != 4 {
		t.Fatalf("mismatches = %v, want [4]", hit.Mismatches)
	}
	_, offset := idx.RowToRef(hit.Row)
	if offset != 0 {
		t.Fatalf("hit offset = %d, want 0", offset)
	}
}

func TestDisallowedMismatchInUnrevisitableRegion(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	idx := fmindex.Build(ref, 0)
	bt, _ := newBacktracker(idx, 3)

	// Query index 4 is search depth 10-1-4 = 5, inside [0, UnrevOff=6).
	bt.SetPolicy(backtrack.Policy{UnrevOff: 6, OneRevOff: 10, TwoRevOff: 10, QualThresh: 30})
	query := []uint8{0, 0, 0, 0, 3, 1, 1, 1, 1, 1}
	qual := qualAll(10, 40)
	qual[4] = phred(30)
	if err := bt.SetQuery(&backtrack.Query{Name: "r3", Bases: query, Qual: qual}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	_, ok, err := bt.Backtrack()
	if err != nil {
		t.Fatalf("Backtrack: %v", err)
	}
	if ok {
		t.Fatal("expected no hit: mismatch falls in the unrevisitable region")
	}

	oracleHits := oracle.FindAll(ref, query, qual, bt_policy(), nil)
	if len(oracleHits) != 0 {
		t.Fatalf("oracle disagreement: expected no hits, got %+v", oracleHits)
	}
}

func bt_policy() backtrack.Policy {
	return backtrack.Policy{UnrevOff: 6, OneRevOff: 10, TwoRevOff: 10, QualThresh: 30}
}

func TestTwoMismatchPathOverBudget(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	idx := fmindex.Build(ref, 0)
	bt, _ := newBacktracker(idx, 4)

	policy := backtrack.Policy{UnrevOff: 0, OneRevOff: 0, TwoRevOff: 10, QualThresh: 40}
	bt.SetPolicy(policy)
	query := []uint8{1, 2, 0, 0, 0, 1, 1, 1, 1, 1}
	qual := qualAll(10, 40)
	qual[0] = phred(25)
	qual[1] = phred(20)
	if err := bt.SetQuery(&backtrack.Query{Name: "r4", Bases: query, Qual: qual}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	_, ok, err := bt.Backtrack()
	if err != nil {
		t.Fatalf("Backtrack: %v", err)
	}
	if ok {
		t.Fatal("expected no hit: 25+20 exceeds qualThresh 40")
	}

	oracleHits := oracle.FindAll(ref, query, qual, policy, nil)
	if len(oracleHits) != 0 {
		t.Fatalf("oracle disagreement: expected no hits, got %+v", oracleHits)
	}
}

func TestHalfAndHalf(t *testing.T) {
	ref := []uint8{0, 0, 0, 0}
	idx := fmindex.Build(ref, 0)

	policy := backtrack.Policy{UnrevOff: 0, OneRevOff: 2, TwoRevOff: 4, QualThresh: 40, HalfAndHalf: true}

	t.Run("one mismatch per half", func(t *testing.T) {
		bt, _ := newBacktracker(idx, 5)
		bt.SetPolicy(policy)
		query := []uint8{1, 0, 0, 2}
		qual := qualAll(4, 10)
		if err := bt.SetQuery(&backtrack.Query{Name: "r5a", Bases: query, Qual: qual}); err != nil {
			t.Fatalf("SetQuery: %v", err)
		}
		hit, ok, err := bt.Backtrack()
		if err != nil {
			t.Fatalf("Backtrack: %v", err)
		}
		if !ok {
			t.Fatal("expected a hit with one mismatch per half")
		}
		if len(hit.Mismatches) != 2 {
			t.Fatalf("mismatches = %v, want 2 entries", hit.Mismatches)
		}
	})

	t.Run("both mismatches in same half", func(t *testing.T) {
		bt, _ := newBacktracker(idx, 6)
		bt.SetPolicy(policy)
		query := []uint8{1, 2, 0, 0}
		qual := qualAll(4, 10)
		if err := bt.SetQuery(&backtrack.Query{Name: "r5b", Bases: query, Qual: qual}); err != nil {
			t.Fatalf("SetQuery: %v", err)
		}
		_, ok, err := bt.Backtrack()
		if err != nil {
			t.Fatalf("Backtrack: %v", err)
		}
		if ok {
			t.Fatal("expected no hit: both mismatches share a half")
		}
	})
}

// TestHalfAndHalfForcesBacktrackAtHalfBoundary covers a half-and-half
// search whose greedy path matches cleanly through the first half
// with zero mismatches: reaching the halfway boundary in that state
// must force a backtrack into an already-accumulated alternative
// instead of abandoning the search, so a second locus with one
// mismatch in each half is still found.
func TestHalfAndHalfForcesBacktrackAtHalfBoundary(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 1, 0, 2, 0} // AAAA + CAGA
	idx := fmindex.Build(ref, 0)
	bt, _ := newBacktracker(idx, 7)

	policy := backtrack.Policy{UnrevOff: 0, OneRevOff: 2, TwoRevOff: 4, QualThresh: 40, HalfAndHalf: true}
	bt.SetPolicy(policy)
	query := []uint8{0, 0, 0, 0} // AAAA; matches "AAAA" exactly, which half-and-half rejects
	qual := qualAll(4, 10)
	if err := bt.SetQuery(&backtrack.Query{Name: "r6", Bases: query, Qual: qual}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	hit, ok, err := bt.Backtrack()
	if err != nil {
		t.Fatalf("Backtrack: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit: the CAGA locus has one mismatch in each half")
	}
	if len(hit.Mismatches) != 2 {
		t.Fatalf("mismatches = %v, want 2 entries", hit.Mismatches)
	}

	oracleHits := oracle.FindAll(ref, query, qual, policy, nil)
	if len(oracleHits) == 0 {
		t.Fatal("oracle disagreement: oracle found no hits but the backtracker reported one")
	}
	found := false
	for _, oh := range oracleHits {
		if len(oh.Mismatches) == 2 {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("no oracle hit with 2 mismatches to corroborate %+v; oracle hits: %+v", hit, oracleHits)
	}
}

// TestSeedlingZeroMismatchIsReserved covers the case spec'd for
// seedling mode: the zero-mismatch quick-return match is reserved and
// must never itself be emitted into the seedlings buffer, even though
// reaching it still drives the keepGoingDespiteMatch continuation (so
// the search still backtracks into whatever alternatives exist, rather
// than stopping as it would in ordinary one-hit mode).
func TestSeedlingZeroMismatchIsReserved(t *testing.T) {
	ref := []uint8{0, 0, 0, 0} // a single locus, no alternative branches
	idx := fmindex.Build(ref, 0)
	bt, _ := newBacktracker(idx, 8)

	bt.SetPolicy(backtrack.Policy{UnrevOff: 0, OneRevOff: 4, TwoRevOff: 4, QualThresh: 40, ReportSeedlings: 2})
	query := []uint8{0, 0, 0, 0}
	if err := bt.SetQuery(&backtrack.Query{Name: "r7", Bases: query, Qual: qualAll(4, 10)}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	_, ok, err := bt.Backtrack()
	if err != nil {
		t.Fatalf("Backtrack: %v", err)
	}
	if ok {
		t.Fatal("seedling mode never reports a one-hit result")
	}

	// The sole locus is an exact match with no alternatives, so the
	// reserved zero-mismatch case leaves nothing else to enumerate:
	// the seedlings buffer must come back empty, not a bare major
	// separator for the quick-return match itself.
	if seedlings := bt.Seedlings(); len(seedlings) != 0 {
		t.Fatalf("seedlings = %v, want none: the zero-mismatch match is reserved, not emitted", seedlings)
	}
}

// TestSeedlingEnumeratesSingleMismatchAlternatives covers enumerating
// more than one seedling: a short reference admitting two distinct
// single-mismatch windows against the same query must surface both,
// each as one (pos,base) pair terminated by the major separator.
func TestSeedlingEnumeratesSingleMismatchAlternatives(t *testing.T) {
	ref := []uint8{0, 0, 0, 1, 0} // AAACA: windows AAAC (mismatch at pos 3) and AACA (mismatch at pos 2)
	idx := fmindex.Build(ref, 0)
	bt, _ := newBacktracker(idx, 9)

	bt.SetPolicy(backtrack.Policy{UnrevOff: 0, OneRevOff: 4, TwoRevOff: 4, QualThresh: 40, ReportSeedlings: 2})
	query := []uint8{0, 0, 0, 0}
	if err := bt.SetQuery(&backtrack.Query{Name: "r8", Bases: query, Qual: qualAll(4, 10)}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	if _, _, err := bt.Backtrack(); err != nil {
		t.Fatalf("Backtrack: %v", err)
	}

	entries := splitSeedlings(t, bt.Seedlings(), query)
	if len(entries) != 2 {
		t.Fatalf("got %d seedlings, want 2 (one per single-mismatch window): %v", len(entries), entries)
	}
	for _, pairs := range entries {
		if len(pairs) != 1 {
			t.Fatalf("seedling %v has %d mismatches, want exactly 1", pairs, len(pairs))
		}
	}
}

// splitSeedlings decodes a seedling buffer into one []([pos,base])
// slice per seedling, validating that every decoded pair is a genuine
// mismatch against query.
func splitSeedlings(t *testing.T, buf []byte, query []uint8) [][][2]byte {
	t.Helper()
	var entries [][][2]byte
	var cur [][2]byte
	for i := 0; i < len(buf); i++ {
		switch buf[i] {
		case 0xFF:
			entries = append(entries, cur)
			cur = nil
		case 0xFE:
			// pair separator within a seedling; nothing to do
		default:
			pos := buf[i]
			i++
			if i >= len(buf) {
				t.Fatalf("seedling buffer truncated after position %d", pos)
			}
			base := buf[i]
			if int(pos) >= len(query) || base > 3 {
				t.Fatalf("seedling pair (%d,%d) out of range for qlen %d", pos, base, len(query))
			}
			if base == query[pos] {
				t.Fatalf("seedling pair (%d,%d) is not a mismatch against query %v", pos, base, query)
			}
			cur = append(cur, [2]byte{pos, base})
		}
	}
	return entries
}

func TestDeterminismUnderSeed(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	idx := fmindex.Build(ref, 0)
	policy := backtrack.Policy{UnrevOff: 4, OneRevOff: 10, TwoRevOff: 10, QualThresh: 30}
	query := []uint8{0, 0, 0, 0, 3, 1, 1, 1, 1, 1}
	qual := qualAll(10, 40)
	qual[4] = phred(30)

	run := func() backtrack.Hit {
		bt, _ := newBacktracker(idx, 42)
		bt.SetPolicy(policy)
		if err := bt.SetQuery(&backtrack.Query{Name: "r", Bases: append([]uint8(nil), query...), Qual: qual}); err != nil {
			t.Fatalf("SetQuery: %v", err)
		}
		hit, ok, err := bt.Backtrack()
		if err != nil || !ok {
			t.Fatalf("Backtrack: ok=%v err=%v", ok, err)
		}
		return hit
	}

	h1 := run()
	h2 := run()
	if h1.Row != h2.Row || len(h1.Mismatches) != len(h2.Mismatches) {
		t.Fatalf("runs diverged: %+v vs %+v", h1, h2)
	}
}
