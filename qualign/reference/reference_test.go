package reference

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, seqs [][]uint8) string {
	t.Helper()
	recs, bases := EncodeSequences(seqs)
	path := filepath.Join(t.TempDir(), "ref")
	if err := WriteTo(path, recs, bases); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return path
}

func TestConstructRoundTrip(t *testing.T) {
	A, C, G, T, N := uint8(0), uint8(1), uint8(2), uint8(3), uint8(Ambiguous)
	seqs := [][]uint8{
		{A, C, G, T, N, N, A, C, G, T},
		{N, N, N, G, G, G, G},
	}
	path := writeFixture(t, seqs)

	r, err := Construct(path)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if !r.Loaded() {
		t.Fatal("expected Reference to be loaded")
	}
	if r.NumRefs() != 2 {
		t.Fatalf("NumRefs = %d, want 2", r.NumRefs())
	}

	for t0, seq := range seqs {
		for i, want := range seq {
			got := r.GetBase(uint32(t0), uint32(i))
			if got != want {
				t.Errorf("ref %d offset %d: GetBase = %d, want %d", t0, i, got, want)
			}
		}
	}
}

func TestGetStretchMatchesGetBase(t *testing.T) {
	A, C, G, T, N := uint8(0), uint8(1), uint8(2), uint8(3), uint8(Ambiguous)
	seqs := [][]uint8{
		{A, A, C, C, G, G, T, T, N, N, N, A, C, G, T, A, C},
	}
	path := writeFixture(t, seqs)
	r, err := Construct(path)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	seq := seqs[0]
	for start := 0; start < len(seq); start++ {
		for count := 1; start+count <= len(seq)+3; count++ {
			dest := make([]byte, count)
			r.GetStretch(dest, 0, uint32(start), uint32(count))
			for i := 0; i < count; i++ {
				want := r.GetBase(0, uint32(start+i))
				if dest[i] != want {
					t.Fatalf("start=%d count=%d i=%d: GetStretch=%d GetBase=%d", start, count, i, dest[i], want)
				}
			}
		}
	}
}

func TestGetBaseOutOfRangeIsAmbiguous(t *testing.T) {
	seqs := [][]uint8{{0, 1, 2, 3}}
	path := writeFixture(t, seqs)
	r, err := Construct(path)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if got := r.GetBase(0, 1000); got != Ambiguous {
		t.Fatalf("out-of-range GetBase = %d, want Ambiguous", got)
	}
}

func TestConstructMissingFileIsNotLoadedNotError(t *testing.T) {
	r, err := Construct(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Construct on missing file returned error: %v", err)
	}
	if r.Loaded() {
		t.Fatal("expected not-loaded Reference for a missing file")
	}
}

func TestConstructBrokenStructureFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref")
	if err := os.WriteFile(path+StructureExt, []byte{1, 0, 0}, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Construct(path); err == nil {
		t.Fatal("expected an error for a truncated structure file")
	}
}

func TestBaseCodeAndBaseLetterRoundTrip(t *testing.T) {
	for c := uint8(0); c < 4; c++ {
		letter := BaseLetter(c)
		if got := BaseCode(letter); got != c {
			t.Errorf("BaseCode(BaseLetter(%d)) = %d, want %d", c, got, c)
		}
	}
	for _, b := range []byte{'n', 'N', '-', 'x'} {
		if got := BaseCode(b); got != Ambiguous {
			t.Errorf("BaseCode(%q) = %d, want Ambiguous", b, got)
		}
	}
}

func TestApproxLenExcludesTrailingAmbiguousRun(t *testing.T) {
	A, N := uint8(0), uint8(Ambiguous)
	seqs := [][]uint8{{A, A, A, A, N, N, N}}
	path := writeFixture(t, seqs)
	r, err := Construct(path)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if got := r.ApproxLen(0); got != 4 {
		t.Fatalf("ApproxLen = %d, want 4", got)
	}
}

func TestApproxLenOfWhollyAmbiguousSequence(t *testing.T) {
	N := uint8(Ambiguous)
	seqs := [][]uint8{{N, N, N}}
	path := writeFixture(t, seqs)
	r, err := Construct(path)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if r.NumRefs() != 1 {
		t.Fatalf("NumRefs = %d, want 1", r.NumRefs())
	}
	// there is no unambiguous stretch to exclude the run from, so the
	// lone marker record's Off folds the whole sequence into refLens.
	if got := r.ApproxLen(0); got != 3 {
		t.Fatalf("ApproxLen = %d, want 3", got)
	}
}
