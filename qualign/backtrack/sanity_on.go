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

//go:build qualign_sanity

package backtrack

import "fmt"

// checkSanity re-derives found independently via bt.sanityChecker
// against bt.sanityRefs and panics on disagreement. Compiled only
// under the qualign_sanity build tag, matching
// original_source/ebwt_search_backtrack.h's _os-gated confirmHit /
// confirmNoHit calls.
func (bt *Backtracker) checkSanity(found bool) {
	if bt.sanityChecker == nil || bt.sanityRefs == nil {
		return
	}
	expect := bt.sanityChecker(bt.sanityRefs, bt.query.Bases, bt.query.Qual, bt.policy, bt.query.Muts)
	if expect != found {
		panic(fmt.Sprintf("backtrack: sanity disagreement for %q: backtracker found=%v, oracle found=%v", bt.query.Name, found, expect))
	}
}
