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

// Package reference implements the bit-packed reference oracle: a
// read-only, random-access view of a DNA reference whose ambiguous
// (non-ACGT) stretches are recorded out-of-band so the bulk of the
// sequence can be stored at 2 bits per base.
package reference

// RefRecord describes one unambiguous stretch of one reference
// sequence.
type RefRecord struct {
	Off   uint32 // leading ambiguous bases before this stretch
	Len   uint32 // unambiguous bases in this stretch
	First bool   // true iff this record opens a new reference sequence
}

// Reference is a read-only, bit-packed view over one or more DNA
// reference sequences. The zero value is not usable; construct one
// with Construct.
type Reference struct {
	recs       []RefRecord
	refRecOffs []uint32 // per-ref: index into recs of its first record (+ sentinel)
	refOffs    []uint32 // per-ref: starting packed-base offset into buf
	refLens    []uint32 // per-ref: total length, excluding trailing ambiguous run

	buf   []byte // 2-bit-packed unambiguous bases, 4 per byte
	bufSz uint32 // number of packed bases represented by buf

	nrefs  uint32
	loaded bool
}

// Ambiguous is the sentinel base value returned for non-ACGT and
// out-of-range positions.
const Ambiguous = 4

// Loaded reports whether the reference was constructed successfully.
// A Reference for which the backing files could not be opened is
// "not loaded" rather than an error -- see Construct.
func (r *Reference) Loaded() bool {
	return r != nil && r.loaded
}

// NumRefs returns the number of reference sequences.
func (r *Reference) NumRefs() uint32 {
	return r.nrefs
}

// ApproxLen returns the length of reference sequence t, excluding any
// trailing run of ambiguous bases in its final stretch. Panics if t >=
// NumRefs().
func (r *Reference) ApproxLen(t uint32) uint32 {
	return r.refLens[t]
}

// GetBase returns the base at offset toff of reference t: one of
// {0,1,2,3} for A/C/G/T, or Ambiguous for N-like or out-of-range
// positions.
func (r *Reference) GetBase(t, toff uint32) uint8 {
	reci := r.refRecOffs[t]
	recf := r.refRecOffs[t+1]
	bufOff := r.refOffs[t]
	var off uint32
	for i := reci; i < recf; i++ {
		rec := r.recs[i]
		off += rec.Off
		if toff < off {
			return Ambiguous
		}
		recEnd := off + rec.Len
		if toff < recEnd {
			bufOff += toff - off
			return decodeBase(r.buf, bufOff)
		}
		bufOff += rec.Len
		off = recEnd
	}
	return Ambiguous
}

// GetStretch writes exactly count bases, starting at offset toff of
// reference t, into dest. dest must have length >= count. Equivalent
// to count successive GetBase calls but performed in one walk.
func (r *Reference) GetStretch(dest []byte, t, toff, count uint32) {
	reci := r.refRecOffs[t]
	recf := r.refRecOffs[t+1]
	bufOff := r.refOffs[t]
	var off, cur uint32
	remaining := count
	for i := reci; i < recf; i++ {
		rec := r.recs[i]
		off += rec.Off
		for toff < off && remaining > 0 {
			dest[cur] = Ambiguous
			cur++
			remaining--
			toff++
		}
		if remaining == 0 {
			return
		}
		if toff >= off+rec.Len {
			bufOff += rec.Len
			off += rec.Len
			continue
		}
		bufOff += toff - off
		off += rec.Len
		for toff < off && remaining > 0 {
			dest[cur] = decodeBase(r.buf, bufOff)
			cur++
			bufOff++
			toff++
			remaining--
		}
		if remaining == 0 {
			return
		}
	}
	for ; remaining > 0; remaining-- {
		dest[cur] = Ambiguous
		cur++
	}
}

// BaseCode maps an ASCII base letter (either case) to its 0..3 code,
// or Ambiguous for anything other than A/C/G/T.
func BaseCode(b byte) uint8 {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return Ambiguous
	}
}

// BaseLetter is the inverse of BaseCode for the four unambiguous
// codes; it panics for Ambiguous or any other value.
func BaseLetter(c uint8) byte {
	switch c {
	case 0:
		return 'A'
	case 1:
		return 'C'
	case 2:
		return 'G'
	case 3:
		return 'T'
	default:
		panic("reference: BaseLetter called with an ambiguous or invalid code")
	}
}

// decodeBase extracts the 2-bit base at packed offset p from buf.
func decodeBase(buf []byte, p uint32) uint8 {
	return (buf[p>>2] >> ((p & 3) << 1)) & 3
}

// encodeBase packs base code c (0..3) into buf at packed offset p.
func encodeBase(buf []byte, p uint32, c uint8) {
	shift := (p & 3) << 1
	buf[p>>2] = (buf[p>>2] &^ (3 << shift)) | ((c & 3) << shift)
}
