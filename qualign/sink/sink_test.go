package sink

import (
	"sync"
	"testing"

	"github.com/qualign/qualign/qualign/backtrack"
)

func TestCollectorRecordsEveryHit(t *testing.T) {
	c := &Collector{}
	for i := uint32(0); i < 3; i++ {
		if !c.ReportChaseOne("r", nil, nil, backtrack.Hit{Row: i}) {
			t.Fatalf("hit %d rejected", i)
		}
	}
	if len(c.Hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(c.Hits))
	}
}

func TestSynchronizedSerializesConcurrentReports(t *testing.T) {
	c := &Collector{}
	s := NewSynchronized(c)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i uint32) {
			defer wg.Done()
			s.ReportChaseOne("r", nil, nil, backtrack.Hit{Row: i})
		}(uint32(i))
	}
	wg.Wait()

	if len(c.Hits) != 50 {
		t.Fatalf("got %d hits, want 50", len(c.Hits))
	}
}
