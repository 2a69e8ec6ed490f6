package oracle

import (
	"testing"

	"github.com/qualign/qualign/qualign/backtrack"
)

func q(ascii ...byte) []byte { return ascii }

func TestExactMatchIsFound(t *testing.T) {
	ref := []uint8{0, 1, 2, 3, 0, 1, 2, 3, 0, 1}
	query := []uint8{1, 2, 3, 0, 1}
	qual := q(40, 40, 40, 40, 40)
	policy := backtrack.Policy{UnrevOff: 5, OneRevOff: 5, TwoRevOff: 5, QualThresh: 0}

	hits := FindAll(ref, query, qual, policy, nil)
	if len(hits) != 2 || hits[0].Offset != 1 || hits[1].Offset != 5 {
		t.Fatalf("hits = %+v, want hits at offsets 1 and 5", hits)
	}
	for _, h := range hits {
		if len(h.Mismatches) != 0 {
			t.Fatalf("expected zero mismatches, got %v", h.Mismatches)
		}
	}
}

func TestDisallowedMismatchInUnrevisitableRegion(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	query := []uint8{0, 0, 0, 3, 1, 1, 1, 1, 1, 0}
	qual := make([]byte, 10)
	for i := range qual {
		qual[i] = 73
	}
	policy := backtrack.Policy{UnrevOff: 5, OneRevOff: 10, TwoRevOff: 10, QualThresh: 40}

	hits := FindAll(ref, query, qual, policy, nil)
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestOverBudgetTwoMismatchesRejected(t *testing.T) {
	ref := []uint8{0, 0, 0, 0, 0}
	query := []uint8{1, 0, 0, 0, 2}
	qual := q(33+25, 40, 40, 40, 33+20)
	policy := backtrack.Policy{UnrevOff: 0, OneRevOff: 5, TwoRevOff: 5, QualThresh: 40}

	hits := FindAll(ref, query, qual, policy, nil)
	if len(hits) != 0 {
		t.Fatalf("expected no hits (25+20 > 40), got %+v", hits)
	}
}

func TestHalfAndHalfRequiresOneMismatchPerHalf(t *testing.T) {
	ref := []uint8{0, 0, 0, 0}
	// one mismatch in each half
	query := []uint8{1, 0, 0, 2}
	qual := q(43, 40, 40, 43) // phred 10 each
	policy := backtrack.Policy{UnrevOff: 0, OneRevOff: 2, TwoRevOff: 4, QualThresh: 40, HalfAndHalf: true}
	hits := FindAll(ref, query, qual, policy, nil)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %+v", hits)
	}

	// both mismatches in the same half
	query2 := []uint8{1, 2, 0, 0}
	hits2 := FindAll(ref, query2, qual, policy, nil)
	if len(hits2) != 0 {
		t.Fatalf("expected no hits when both mismatches share a half, got %+v", hits2)
	}
}

func TestMutationsAreUnionedIntoMismatchSet(t *testing.T) {
	ref := []uint8{0, 1, 2, 3}
	query := []uint8{0, 1, 2, 3}
	qual := q(73, 73, 73, 73)
	policy := backtrack.Policy{UnrevOff: 0, OneRevOff: 4, TwoRevOff: 4, QualThresh: 0}
	muts := []backtrack.QueryMutation{{Pos: 2, Old: 2, New: 2}}
	// zero-cost synthetic mutation at a position that already matches in ref;
	// Old==New is rejected by the backtracker's SetQuery, but the oracle
	// itself only unions positions, so use distinct Old/New with a
	// post-mutation base identical to the reference to isolate unioning.
	muts[0] = backtrack.QueryMutation{Pos: 2, Old: 9, New: 2}

	hits := FindAll(ref, query, qual, policy, muts)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %+v", hits)
	}
	found := false
	for _, m := range hits[0].Mismatches {
		if m == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected mutation position 2 unioned into mismatches, got %v", hits[0].Mismatches)
	}
}
