package fmindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	seqs := [][]uint8{
		{0, 1, 2, 3, 0, 1, 2, 3, 0, 1},
		{3, 2, 1, 0, 0, 1, 1, 1},
	}
	idx := BuildMulti(seqs, 3)

	dir := t.TempDir()
	file := filepath.Join(dir, "test.fmi")
	if err := idx.Save(file); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.FtabChars() != idx.FtabChars() {
		t.Fatalf("FtabChars mismatch: %d vs %d", loaded.FtabChars(), idx.FtabChars())
	}
	if loaded.Fchr() != idx.Fchr() {
		t.Fatalf("Fchr mismatch: %v vs %v", loaded.Fchr(), idx.Fchr())
	}

	for _, kmer := range [][]uint8{{0, 1, 2}, {3, 2, 1}, {1, 1, 1}} {
		var code uint64
		for _, b := range kmer {
			code = code<<2 | uint64(b)
		}
		wantTop, wantBot, wantOk := idx.Ftab(code)
		gotTop, gotBot, gotOk := loaded.Ftab(code)
		if wantOk != gotOk || wantTop != gotTop || wantBot != gotBot {
			t.Errorf("Ftab(%v) after reload = (%d,%d,%v), want (%d,%d,%v)", kmer, gotTop, gotBot, gotOk, wantTop, wantBot, wantOk)
		}
	}

	for row := 0; row < len(idx.sa); row++ {
		if idx.IsSentinelRow(uint32(row)) {
			continue
		}
		wantRef, wantOff := idx.RowToRef(uint32(row))
		gotRef, gotOff := loaded.RowToRef(uint32(row))
		if wantRef != gotRef || wantOff != gotOff {
			t.Errorf("RowToRef(%d) after reload = (%d,%d), want (%d,%d)", row, gotRef, gotOff, wantRef, wantOff)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.fmi")); err == nil {
		t.Fatal("expected error loading a missing file")
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.fmi"), []byte("not an fm-index"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "garbage.fmi")); err != ErrInvalidFileFormat {
		t.Fatalf("expected ErrInvalidFileFormat, got %v", err)
	}
}
