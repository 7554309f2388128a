// SPDX-License-Identifier: Unlicense OR MIT

package memlimit

import (
	"fmt"
	"math"
	"math/bits"
)

// Range is the half-open byte range [Base, Base+Size).
type Range struct {
	Base uint64
	Size uint64
}

// clamp trims r so that it ends at or below 2^64.
func (r Range) clamp() Range {
	if r.Base != 0 && r.Size > -r.Base {
		r.Size = -r.Base
	}
	return r
}

// Empty reports whether r contains no bytes.
func (r Range) Empty() bool {
	return r.Size == 0
}

// last returns the address of the final byte of a non-empty range.
// Unlike Base+Size it cannot overflow for a range that touches the top
// of the address space.
func (r Range) last() uint64 {
	r = r.clamp()
	return r.Base + (r.Size - 1)
}

// End returns Base+Size. The second result is false if the end is 2^64,
// which is not representable.
func (r Range) End() (uint64, bool) {
	r = r.clamp()
	if r.Size == 0 {
		return r.Base, true
	}
	l := r.last()
	if l == math.MaxUint64 {
		return 0, false
	}
	return l + 1, true
}

// Contains reports whether addr lies within r.
func (r Range) Contains(addr uint64) bool {
	return !r.Empty() && r.Base <= addr && addr <= r.last()
}

// ContainsRange reports whether all of o lies within r. The empty range
// is contained in every range.
func (r Range) ContainsRange(o Range) bool {
	if o.Empty() {
		return true
	}
	return r.Contains(o.Base) && r.Contains(o.last())
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return !Intersect(r, o).Empty()
}

// Intersect returns the bytes common to a and b.
func Intersect(a, b Range) Range {
	if a.Empty() || b.Empty() {
		return Range{}
	}
	lo := a.Base
	if b.Base > lo {
		lo = b.Base
	}
	hi := a.last()
	if bl := b.last(); bl < hi {
		hi = bl
	}
	if lo > hi {
		return Range{}
	}
	return Range{Base: lo, Size: hi - lo + 1}
}

// Subtract removes cut from r, returning the remnants below and above
// cut. Either remnant may be empty.
func Subtract(r, cut Range) (below, above Range) {
	in := Intersect(r, cut)
	if in.Empty() {
		return r.clamp(), Range{}
	}
	below = Range{Base: r.Base, Size: in.Base - r.Base}
	if il, rl := in.last(), r.last(); il < rl {
		above = Range{Base: il + 1, Size: rl - il}
	}
	return below, above
}

// Adjacent reports whether b starts at the byte directly following a.
func Adjacent(a, b Range) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	l := a.last()
	return l != math.MaxUint64 && l+1 == b.Base
}

// Coalesce merges byte-adjacent neighbours of the address-ordered,
// non-overlapping ranges in place and drops empty ranges. It returns the
// merged prefix of rs.
func Coalesce(rs []Range) []Range {
	n := 0
	for _, r := range rs {
		if r.Empty() {
			continue
		}
		if n > 0 && Adjacent(rs[n-1], r) {
			rs[n-1].Size += r.Size
			continue
		}
		rs[n] = r
		n++
	}
	return rs[:n]
}

func (r Range) String() string {
	return fmt.Sprintf("[%#x, +%#x)", r.Base, r.Size)
}

// Total returns the sum of the range sizes, with each range clamped to
// end at 2^64. The sum saturates at math.MaxUint64.
func Total(rs []Range) uint64 {
	var sum uint64
	for _, r := range rs {
		var carry uint64
		sum, carry = bits.Add64(sum, r.clamp().Size, 0)
		if carry != 0 {
			return math.MaxUint64
		}
	}
	return sum
}
