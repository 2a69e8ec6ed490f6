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

package sink

import (
	"github.com/qualign/qualign/qualign/backtrack"
	"github.com/rdleal/intervalst/interval"
)

// RowLocator translates a BWT row into the (reference index, offset)
// pair it was drawn from. *fmindex.BWTIndex satisfies this.
type RowLocator interface {
	RowToRef(row uint32) (ref, offset uint32)
}

func cmpUint32(x, y uint32) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// DedupSink wraps another Sink and rejects any hit whose reference
// span overlaps a previously accepted hit on the same reference
// sequence, using one interval search tree per reference.
type DedupSink struct {
	inner   backtrack.Sink
	locator RowLocator
	trees   map[uint32]*interval.SearchTree[struct{}, uint32]
}

// NewDedupSink builds a DedupSink delegating accepted, non-overlapping
// hits to inner.
func NewDedupSink(inner backtrack.Sink, locator RowLocator) *DedupSink {
	return &DedupSink{
		inner:   inner,
		locator: locator,
		trees:   make(map[uint32]*interval.SearchTree[struct{}, uint32]),
	}
}

// ReportChaseOne implements backtrack.Sink.
func (d *DedupSink) ReportChaseOne(name string, query []uint8, qual []byte, hit backtrack.Hit) bool {
	ref, offset := d.locator.RowToRef(hit.Row)
	tree, ok := d.trees[ref]
	if !ok {
		tree = interval.NewSearchTree[struct{}, uint32](cmpUint32)
		d.trees[ref] = tree
	}

	lo, hi := offset, offset+hit.Qlen
	if _, found := tree.AnyIntersection(lo, hi); found {
		return false
	}
	if !d.inner.ReportChaseOne(name, query, qual, hit) {
		return false
	}
	tree.Insert(lo, hi, struct{}{})
	return true
}
