package sink

import (
	"testing"

	"github.com/qualign/qualign/qualign/backtrack"
)

type fixedLocator struct {
	ref    uint32
	offset uint32
}

func (f fixedLocator) RowToRef(row uint32) (uint32, uint32) {
	return f.ref, f.offset + row
}

func TestDedupRejectsOverlap(t *testing.T) {
	inner := &Collector{}
	d := NewDedupSink(inner, fixedLocator{ref: 0, offset: 0})

	h1 := backtrack.Hit{Row: 10, Qlen: 5}
	if !d.ReportChaseOne("r1", nil, nil, h1) {
		t.Fatal("expected first hit to be accepted")
	}

	h2 := backtrack.Hit{Row: 12, Qlen: 5} // overlaps [10,15) at [12,17)
	if d.ReportChaseOne("r2", nil, nil, h2) {
		t.Fatal("expected overlapping hit to be rejected")
	}

	h3 := backtrack.Hit{Row: 100, Qlen: 5} // disjoint
	if !d.ReportChaseOne("r3", nil, nil, h3) {
		t.Fatal("expected disjoint hit to be accepted")
	}

	if len(inner.Hits) != 2 {
		t.Fatalf("inner collector got %d hits, want 2", len(inner.Hits))
	}
}
