// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import "eliasnaur.com/memlimit/memlimit"

// verifyRanges checks that ranges are in increasing address order and do
// not overlap.
func verifyRanges(ranges []memlimit.Range) error {
	for i := 0; i < len(ranges)-1; i++ {
		r1 := ranges[i]
		r2 := ranges[i+1]
		if r1.Base > r2.Base || r1.Overlaps(r2) {
			return &OrderError{Prev: r1, Next: r2}
		}
	}
	return nil
}
