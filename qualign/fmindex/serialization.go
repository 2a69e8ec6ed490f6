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

package fmindex

import (
	"bufio"
	"encoding/binary"
	goerrors "errors"
	"io"
	"os"

	"github.com/pkg/errors"
)

var be = binary.BigEndian

// Magic identifies an on-disk BWTIndex, the same key->value record
// shape lexicmap/kv/kv-data.go uses for its own k-mer tables, here
// keyed by ftabChars-mers instead of lexichash masks.
var magic = [8]byte{'.', 'q', 'a', '-', 'f', 'm', 'i', 'x'}

// MainVersion gates load-time compatibility; MinorVersion is written
// to the header but not checked on load.
var MainVersion uint8 = 0
var MinorVersion uint8 = 1

// ErrInvalidFileFormat means the magic number did not match.
var ErrInvalidFileFormat = goerrors.New("fmindex: invalid binary format")

// ErrVersionMismatch means the file was written by an incompatible version.
var ErrVersionMismatch = goerrors.New("fmindex: version mismatch")

// Save persists idx's suffix array, BWT, Fchr table, ftab and sequence
// boundaries to file.
//
// Header (24 bytes):
//
//	Magic number, 8 bytes, ".qa-fmix".
//	Main and minor version, 2 bytes.
//	ftabChars, 1 byte.
//	Blank, 5 bytes.
//	Text length n, 8 bytes.
//
// Then:
//
//	fchr, 5 * 4 bytes.
//	bwt, n+1 bytes (raw base codes 0..3, 255 at the row whose suffix is the whole text).
//	sa, (n+1) * 4 bytes (int32, big-endian).
//	Number of ftab entries, 8 bytes (0 if ftabChars == 0).
//	For each entry: kmer (8 bytes), top (4 bytes), bot (4 bytes).
//	Number of boundaries, 8 bytes.
//	For each boundary: 4 bytes.
func (idx *BWTIndex) Save(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	w := bufio.NewWriter(fh)

	n := len(idx.text)
	if err := writeHeader(w, idx.ftabChars, n); err != nil {
		return errors.Wrap(err, file)
	}
	for _, v := range idx.fchr {
		if err := binary.Write(w, be, v); err != nil {
			return errors.Wrap(err, file)
		}
	}
	if _, err := w.Write(idx.bwt); err != nil {
		return errors.Wrap(err, file)
	}
	for _, s := range idx.sa {
		if err := binary.Write(w, be, s); err != nil {
			return errors.Wrap(err, file)
		}
	}

	if idx.ftabChars > 0 {
		if err := binary.Write(w, be, uint64(len(idx.ftab))); err != nil {
			return errors.Wrap(err, file)
		}
		for kmer, rng := range idx.ftab {
			if err := binary.Write(w, be, kmer); err != nil {
				return errors.Wrap(err, file)
			}
			if err := binary.Write(w, be, rng[0]); err != nil {
				return errors.Wrap(err, file)
			}
			if err := binary.Write(w, be, rng[1]); err != nil {
				return errors.Wrap(err, file)
			}
		}
	} else {
		if err := binary.Write(w, be, uint64(0)); err != nil {
			return errors.Wrap(err, file)
		}
	}

	if err := binary.Write(w, be, uint64(len(idx.boundaries))); err != nil {
		return errors.Wrap(err, file)
	}
	for _, b := range idx.boundaries {
		if err := binary.Write(w, be, b); err != nil {
			return errors.Wrap(err, file)
		}
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, file)
	}
	return errors.Wrap(fh.Close(), file)
}

func writeHeader(w io.Writer, ftabChars, n int) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, be, MainVersion); err != nil {
		return err
	}
	if err := binary.Write(w, be, MinorVersion); err != nil {
		return err
	}
	if err := binary.Write(w, be, uint8(ftabChars)); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, 5)); err != nil {
		return err
	}
	return binary.Write(w, be, uint64(n))
}

// Load reads a BWTIndex previously written by Save.
func Load(file string) (*BWTIndex, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()
	r := bufio.NewReader(fh)

	var gotMagic [8]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, errors.Wrap(err, file)
	}
	if gotMagic != magic {
		return nil, ErrInvalidFileFormat
	}
	var mainV, minorV, ftabChars uint8
	if err := binary.Read(r, be, &mainV); err != nil {
		return nil, errors.Wrap(err, file)
	}
	if err := binary.Read(r, be, &minorV); err != nil {
		return nil, errors.Wrap(err, file)
	}
	if mainV != MainVersion {
		return nil, ErrVersionMismatch
	}
	if err := binary.Read(r, be, &ftabChars); err != nil {
		return nil, errors.Wrap(err, file)
	}
	blank := make([]byte, 5)
	if _, err := io.ReadFull(r, blank); err != nil {
		return nil, errors.Wrap(err, file)
	}
	var n uint64
	if err := binary.Read(r, be, &n); err != nil {
		return nil, errors.Wrap(err, file)
	}

	idx := &BWTIndex{ftabChars: int(ftabChars)}
	for b := 0; b < 5; b++ {
		var v uint32
		if err := binary.Read(r, be, &v); err != nil {
			return nil, errors.Wrap(err, file)
		}
		idx.fchr[b] = v
	}

	bwt := make([]uint8, n+1)
	if _, err := io.ReadFull(r, bwt); err != nil {
		return nil, errors.Wrap(err, file)
	}
	idx.bwt = bwt

	sa := make([]int32, n+1)
	for i := range sa {
		if err := binary.Read(r, be, &sa[i]); err != nil {
			return nil, errors.Wrap(err, file)
		}
	}
	idx.sa = sa

	idx.text = make([]uint8, n)
	for i, s := range sa {
		if s == 0 {
			continue
		}
		if int(s)-1 < len(idx.text) {
			idx.text[s-1] = bwt[i]
		}
	}

	var nFtab uint64
	if err := binary.Read(r, be, &nFtab); err != nil {
		return nil, errors.Wrap(err, file)
	}
	if nFtab > 0 {
		idx.ftab = make(map[uint64][2]uint32, nFtab)
		for i := uint64(0); i < nFtab; i++ {
			var kmer uint64
			var top, bot uint32
			if err := binary.Read(r, be, &kmer); err != nil {
				return nil, errors.Wrap(err, file)
			}
			if err := binary.Read(r, be, &top); err != nil {
				return nil, errors.Wrap(err, file)
			}
			if err := binary.Read(r, be, &bot); err != nil {
				return nil, errors.Wrap(err, file)
			}
			idx.ftab[kmer] = [2]uint32{top, bot}
		}
	}

	var nBoundaries uint64
	if err := binary.Read(r, be, &nBoundaries); err != nil {
		return nil, errors.Wrap(err, file)
	}
	if nBoundaries > 0 {
		idx.boundaries = make([]uint32, nBoundaries)
		for i := range idx.boundaries {
			if err := binary.Read(r, be, &idx.boundaries[i]); err != nil {
				return nil, errors.Wrap(err, file)
			}
		}
	}

	idx.occ = buildOcc(idx.bwt)
	return idx, nil
}

// buildOcc rebuilds the dense per-base occurrence tables from a
// loaded bwt, mirroring Build's construction.
func buildOcc(bwt []uint8) (occ [4][]uint32) {
	n := len(bwt) - 1
	for b := 0; b < 4; b++ {
		table := make([]uint32, n+2)
		var run uint32
		for i := 0; i <= n; i++ {
			table[i] = run
			if bwt[i] == uint8(b) {
				run++
			}
		}
		table[n+1] = run
		occ[b] = table
	}
	return
}
