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

package reference

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"
	"github.com/shenwei356/xopen"
)

// StructureExt and PayloadExt are the file suffixes of the two files
// that make up one reference image, matching the external interface
// in spec.md §6.
const (
	StructureExt = ".3.ebwt"
	PayloadExt   = ".4.ebwt"
)

// ErrBrokenFile means the structure or payload stream was short or
// otherwise malformed.
var ErrBrokenFile = fmt.Errorf("qualign reference: broken index file")

// ErrBadSentinel means the endianness sentinel at the head of the
// structure stream was neither 1 nor its byte-swapped form.
var ErrBadSentinel = fmt.Errorf("qualign reference: bad endianness sentinel")

var gzipMagic = [2]byte{0x1f, 0x8b}

// Construct loads a Reference from path+StructureExt and
// path+PayloadExt. If either file cannot be opened, Construct returns
// a not-loaded Reference and a nil error (spec.md §7: "Index-file open
// failure: return a not-loaded oracle; do not abort."). A short or
// malformed stream is a fatal, named error.
func Construct(path string) (*Reference, error) {
	sf, err := xopen.Ropen(path + StructureExt)
	if err != nil {
		return &Reference{loaded: false}, nil
	}
	defer sf.Close()

	r := &Reference{}
	order, err := r.readStructure(sf)
	if err != nil {
		return nil, fmt.Errorf("qualign reference: reading %s: %w", path+StructureExt, err)
	}

	pf, err := openMaybeGzip(path + PayloadExt)
	if err != nil {
		return &Reference{loaded: false}, nil
	}
	defer pf.Close()

	if err := r.readPayload(pf, order); err != nil {
		return nil, fmt.Errorf("qualign reference: reading %s: %w", path+PayloadExt, err)
	}

	r.loaded = true
	return r, nil
}

// openMaybeGzip opens path for reading. If the first two bytes are the
// gzip magic number, the stream is wrapped in a parallel
// github.com/klauspost/pgzip reader; large reference payloads are the
// one place in this package where parallel inflation is worth the
// extra goroutines.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	peek, err := br.Peek(2)
	if err == nil && peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1] {
		zr, zerr := pgzip.NewReader(br)
		if zerr != nil {
			f.Close()
			return nil, zerr
		}
		return &gzipReadCloser{Reader: zr, f: f}, nil
	}
	return &plainReadCloser{Reader: br, f: f}, nil
}

type gzipReadCloser struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipReadCloser) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

type plainReadCloser struct {
	io.Reader
	f *os.File
}

func (p *plainReadCloser) Close() error {
	return p.f.Close()
}

// readStructure parses the endianness sentinel, the record count, and
// the records themselves, and derives refRecOffs/refOffs/refLens as
// described in spec.md §4.1.
func (r *Reference) readStructure(in io.Reader) (binary.ByteOrder, error) {
	var head [4]byte
	if _, err := io.ReadFull(in, head[:]); err != nil {
		return nil, ErrBrokenFile
	}
	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(head[:]) == 1:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(head[:]) == 1:
		order = binary.BigEndian
	default:
		return nil, ErrBadSentinel
	}

	var nBuf [4]byte
	if _, err := io.ReadFull(in, nBuf[:]); err != nil {
		return nil, ErrBrokenFile
	}
	n := order.Uint32(nBuf[:])

	recs := make([]RefRecord, n)
	var rec [12]byte
	var cumsz, cumlen uint32
	var nrefs uint32
	var refRecOffs, refOffs, refLens []uint32
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(in, rec[:]); err != nil {
			return nil, ErrBrokenFile
		}
		off := order.Uint32(rec[0:4])
		ln := order.Uint32(rec[4:8])
		first := order.Uint32(rec[8:12]) != 0
		recs[i] = RefRecord{Off: off, Len: ln, First: first}

		if first {
			refRecOffs = append(refRecOffs, i)
			refOffs = append(refOffs, cumsz)
			if nrefs > 0 {
				refLens = append(refLens, cumlen)
			}
			cumlen = 0
			nrefs++
		}
		cumsz += ln
		cumlen += off + ln
	}
	refRecOffs = append(refRecOffs, uint32(len(recs)))
	refOffs = append(refOffs, cumsz)
	refLens = append(refLens, cumlen)

	r.recs = recs
	r.refRecOffs = refRecOffs
	r.refOffs = refOffs
	r.refLens = refLens
	r.nrefs = nrefs
	r.bufSz = cumsz
	return order, nil
}

// readPayload reads exactly ceil(bufSz/4) bytes of 2-bit-packed bases.
func (r *Reference) readPayload(in io.Reader, _ binary.ByteOrder) error {
	nBytes := (r.bufSz + 3) >> 2
	buf := make([]byte, nBytes)
	if _, err := io.ReadFull(in, buf); err != nil {
		return ErrBrokenFile
	}
	// there should be nothing left
	var extra [1]byte
	if n, _ := in.Read(extra[:]); n != 0 {
		return ErrBrokenFile
	}
	r.buf = buf
	return nil
}

// WriteTo serializes recs and the unambiguous base codes (each in
// 0..3, in reference order) to path+StructureExt and path+PayloadExt,
// in little-endian byte order with sentinel 1.
func WriteTo(path string, recs []RefRecord, bases []uint8) error {
	sf, err := xopen.Wopen(path + StructureExt)
	if err != nil {
		return err
	}
	defer sf.Close()

	order := binary.LittleEndian
	var head [4]byte
	order.PutUint32(head[:], 1)
	if _, err := sf.Write(head[:]); err != nil {
		return err
	}
	order.PutUint32(head[:], uint32(len(recs)))
	if _, err := sf.Write(head[:]); err != nil {
		return err
	}
	var rec [12]byte
	for _, rc := range recs {
		order.PutUint32(rec[0:4], rc.Off)
		order.PutUint32(rec[4:8], rc.Len)
		if rc.First {
			order.PutUint32(rec[8:12], 1)
		} else {
			order.PutUint32(rec[8:12], 0)
		}
		if _, err := sf.Write(rec[:]); err != nil {
			return err
		}
	}

	pf, err := xopen.Wopen(path + PayloadExt)
	if err != nil {
		return err
	}
	defer pf.Close()

	nBytes := (len(bases) + 3) / 4
	buf := make([]byte, nBytes)
	for p, c := range bases {
		encodeBase(buf, uint32(p), c)
	}
	_, err = pf.Write(buf)
	return err
}

// EncodeSequences packs a set of reference sequences (each a slice of
// base codes, 0..3 for A/C/G/T and Ambiguous for N-like positions)
// into the RefRecord list and the concatenated unambiguous base-code
// stream consumed by WriteTo. Consecutive ambiguous and consecutive
// unambiguous runs are merged per spec.md §3's record model.
func EncodeSequences(seqs [][]uint8) (recs []RefRecord, bases []uint8) {
	for _, seq := range seqs {
		first := true
		i := 0
		for i < len(seq) {
			var ambig uint32
			for i < len(seq) && seq[i] == Ambiguous {
				ambig++
				i++
			}
			start := i
			for i < len(seq) && seq[i] != Ambiguous {
				i++
			}
			ln := uint32(i - start)
			if ln == 0 && !first {
				// Trailing ambiguous run with no further unambiguous
				// stretch to carry its Off into: drop it, so refLens
				// excludes trailing ambiguous characters of the final
				// stretch per spec.md §3.
				break
			}
			recs = append(recs, RefRecord{Off: ambig, Len: ln, First: first})
			first = false
			bases = append(bases, seq[start:i]...)
		}
		if len(seq) == 0 {
			recs = append(recs, RefRecord{Off: 0, Len: 0, First: true})
		}
	}
	return
}
