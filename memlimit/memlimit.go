// SPDX-License-Identifier: Unlicense OR MIT

// Package memlimit reduces a physical memory map to a byte budget while
// keeping the loaded kernel and ramdisk images intact.
//
// A Context is created once per boot and fed every map entry in
// increasing address order. Carving allocates nothing, so it is usable
// before any memory allocator exists.
package memlimit

import "math/bits"

// limitError is an error type usable before the heap is available.
type limitError string

// ErrCapacity is returned by Carve when the kept bytes of an entry do not
// fit in the output ranges provided.
const ErrCapacity = limitError("memlimit: output ranges exceed capacity")

// maxPieces bounds the kept pieces of a single entry: at most two
// mandatory pieces and three free remnants around them.
const maxPieces = 5

// Context carries the limiter state across the entries of one memory map.
// Use New to create one; the zero Context keeps nothing.
type Context struct {
	// FoundKernel and FoundRamdisk are set once a carved entry
	// intersects the respective region. Both must be set after the
	// whole map has been carved.
	FoundKernel  bool
	FoundRamdisk bool

	kernel    Range
	ramdisk   Range
	budget    uint64
	mandatory uint64
	// free is the number of non-mandatory bytes still admissible.
	free uint64
}

// New returns a context for carving a memory map down to budget bytes. A
// budget smaller than the mandatory regions admits only the mandatory
// regions.
func New(kernel, ramdisk Range, budget uint64) Context {
	c := Context{
		kernel:  kernel.clamp(),
		ramdisk: ramdisk.clamp(),
		budget:  budget,
	}
	c.mandatory = mandatoryTotal(c.kernel, c.ramdisk)
	if budget > c.mandatory {
		c.free = budget - c.mandatory
	}
	return c
}

// Kernel returns the kernel image region. It is kept in full regardless
// of the budget.
func (c *Context) Kernel() Range {
	return c.kernel
}

// Ramdisk returns the ramdisk image region. It is kept in full regardless
// of the budget.
func (c *Context) Ramdisk() Range {
	return c.ramdisk
}

// Budget returns the requested total of kept bytes.
func (c *Context) Budget() uint64 {
	return c.budget
}

func mandatoryTotal(kernel, ramdisk Range) uint64 {
	overlap := Intersect(kernel, ramdisk).Size
	sum, carry := bits.Add64(kernel.Size, ramdisk.Size-overlap, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

// Mandatory returns the number of bytes covered by the kernel and ramdisk
// regions.
func (c *Context) Mandatory() uint64 {
	return c.mandatory
}

// FreeRemaining returns the number of non-mandatory bytes that may still
// be kept.
func (c *Context) FreeRemaining() uint64 {
	return c.free
}

// Found reports whether both mandatory regions have been seen.
func (c *Context) Found() bool {
	return c.FoundKernel && c.FoundRamdisk
}

// Carve decides which bytes of entry to keep and writes them to out as
// address-ordered, non-adjacent ranges, returning the number written.
//
// Mandatory bytes are always kept. Free bytes are admitted from the low
// end of each free remnant, in address order, until the budget runs out.
// Since the budget is a running counter, which free bytes are kept depends
// on the order entries are carved in; entries must be carved in
// increasing address order.
//
// If the kept bytes need more than len(out) ranges Carve returns
// ErrCapacity, writes nothing and admits no free bytes. The found flags
// are updated regardless.
func (c *Context) Carve(entry Range, out []Range) (int, error) {
	entry = entry.clamp()
	if entry.Empty() {
		return 0, nil
	}

	var mand [2]Range
	nmand := 0
	if k := Intersect(entry, c.kernel); !k.Empty() {
		c.FoundKernel = true
		mand[nmand] = k
		nmand++
	}
	if r := Intersect(entry, c.ramdisk); !r.Empty() {
		c.FoundRamdisk = true
		mand[nmand] = r
		nmand++
	}
	if nmand == 2 {
		if mand[1].Base < mand[0].Base {
			mand[0], mand[1] = mand[1], mand[0]
		}
		if mand[0].Overlaps(mand[1]) {
			last := mand[0].last()
			if l := mand[1].last(); l > last {
				last = l
			}
			mand[0].Size = last - mand[0].Base + 1
			nmand = 1
		}
	}

	var kept [maxPieces]Range
	n := 0
	free := c.free
	rest := entry
	for _, m := range mand[:nmand] {
		below, above := Subtract(rest, m)
		n, free = admit(&kept, n, below, free)
		kept[n] = m
		n++
		rest = above
	}
	n, free = admit(&kept, n, rest, free)

	pieces := Coalesce(kept[:n])
	if len(pieces) > len(out) {
		return 0, ErrCapacity
	}
	copy(out, pieces)
	c.free = free
	return len(pieces), nil
}

// admit stages the low end of the free remnant r, up to free bytes.
func admit(kept *[maxPieces]Range, n int, r Range, free uint64) (int, uint64) {
	if r.Empty() || free == 0 {
		return n, free
	}
	size := min(r.Size, free)
	kept[n] = Range{Base: r.Base, Size: size}
	return n + 1, free - size
}

func (e limitError) Error() string {
	return string(e)
}
