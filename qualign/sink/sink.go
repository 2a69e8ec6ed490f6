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

// Package sink provides hit collectors satisfying the backtracker's
// Sink contract: a plain Collector for tests and simple callers, and
// a DedupSink that rejects a hit overlapping one already accepted on
// the same reference.
package sink

import (
	"sync"

	"github.com/qualign/qualign/qualign/backtrack"
)

// Accepted is one hit a Collector kept, alongside the read name.
type Accepted struct {
	Name string
	Hit  backtrack.Hit
}

// Collector accepts every hit offered to it and records it in Hits.
// It is the simplest possible Sink, useful for tests and for the
// qualign CLI's single-best-hit reporting mode.
type Collector struct {
	Hits []Accepted
}

// ReportChaseOne implements backtrack.Sink.
func (c *Collector) ReportChaseOne(name string, query []uint8, qual []byte, hit backtrack.Hit) bool {
	c.Hits = append(c.Hits, Accepted{Name: name, Hit: hit})
	return true
}

// Synchronized wraps another Sink with a mutex so a single instance
// (e.g. a DedupSink's per-reference interval trees) can be shared
// safely across a worker-per-goroutine alignment pool.
type Synchronized struct {
	mu    sync.Mutex
	inner backtrack.Sink
}

// NewSynchronized wraps inner for concurrent use.
func NewSynchronized(inner backtrack.Sink) *Synchronized {
	return &Synchronized{inner: inner}
}

// ReportChaseOne implements backtrack.Sink.
func (s *Synchronized) ReportChaseOne(name string, query []uint8, qual []byte, hit backtrack.Hit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ReportChaseOne(name, query, qual, hit)
}
