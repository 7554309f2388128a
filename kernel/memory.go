// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"io"
	"log/slog"

	"eliasnaur.com/memlimit/memlimit"
)

// DefaultCapacity is the number of output ranges available per memory
// map entry.
const DefaultCapacity = 2

// Options control how the memory limit is applied.
type Options struct {
	// Capacity is the number of output ranges available per entry.
	// Zero means DefaultCapacity.
	Capacity int
	// PageSize, if non-zero, is the alignment the kernel and ramdisk
	// images are widened to before limiting. It must be a power of two.
	PageSize uint64
	// Log receives the limiter's progress. Nil disables logging.
	Log *slog.Logger
}

// Result is the physical memory map left after limiting.
type Result struct {
	// Ranges are the usable ranges, in increasing address order.
	Ranges []memlimit.Range
	// Kernel and Ramdisk are the mandatory regions after alignment.
	Kernel  memlimit.Range
	Ramdisk memlimit.Range
	// Total is the number of bytes in Ranges.
	Total uint64
	// Mandatory is the number of bytes covered by Kernel and Ramdisk.
	Mandatory uint64
	// Dropped is the number of usable bytes left out of Ranges.
	Dropped uint64
	// Limited reports whether a memory limit was in effect.
	Limited bool
}

// AlignImage widens r to page boundaries. The page size must be zero or a
// power of two; zero leaves r unchanged.
func AlignImage(r memlimit.Range, pageSize uint64) memlimit.Range {
	if pageSize == 0 || r.Empty() {
		return r
	}
	base := r.Base &^ (pageSize - 1)
	end, ok := r.End()
	if !ok || end > ^uint64(0)-(pageSize-1) {
		// Extends to the top of the address space.
		size := -base
		if size == 0 {
			size = ^uint64(0)
		}
		return memlimit.Range{Base: base, Size: size}
	}
	end = (end + pageSize - 1) &^ (pageSize - 1)
	return memlimit.Range{Base: base, Size: end - base}
}

// ApplyMemoryLimit reduces the usable physical memory ranges to the limit
// of opts, keeping the kernel and ramdisk images. The entries must be in
// increasing address order and must not overlap. Both images must lie
// within the entries.
func ApplyMemoryLimit(opts BootOptions, kernelImage, ramdisk memlimit.Range, entries []memlimit.Range, o Options) (Result, error) {
	if p := o.PageSize; p&(p-1) != 0 {
		return Result{}, ErrPageSize
	}
	if err := verifyRanges(entries); err != nil {
		return Result{}, err
	}
	log := o.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	capacity := o.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	kernelImage = AlignImage(kernelImage, o.PageSize)
	ramdisk = AlignImage(ramdisk, o.PageSize)

	var res Result
	if opts.MemoryLimit == 0 {
		var foundKernel, foundRamdisk bool
		res, foundKernel, foundRamdisk = passThrough(kernelImage, ramdisk, entries)
		if !foundKernel {
			return Result{}, ErrKernelNotFound
		}
		if !foundRamdisk {
			return Result{}, ErrRamdiskNotFound
		}
	} else {
		ctx := memlimit.New(kernelImage, ramdisk, opts.MemoryLimit)
		log.Info("memory limit", "limit", opts.MemoryLimit, "kernel", kernelImage, "ramdisk", ramdisk, "mandatory", ctx.Mandatory())
		if opts.MemoryLimit < ctx.Mandatory() {
			log.Warn("memory limit below kernel and ramdisk size; limit raised", "limit", opts.MemoryLimit, "mandatory", ctx.Mandatory())
		}
		out := make([]memlimit.Range, capacity)
		for _, e := range entries {
			n, err := ctx.Carve(e, out)
			if err != nil {
				return Result{}, &CarveError{Entry: e, Err: err}
			}
			if opts.Debug {
				log.Debug("memory limit entry", "entry", e, "kept", out[:n], "free", ctx.FreeRemaining())
			}
			res.Ranges = append(res.Ranges, out[:n]...)
		}
		if !ctx.FoundKernel {
			return Result{}, ErrKernelNotFound
		}
		if !ctx.FoundRamdisk {
			return Result{}, ErrRamdiskNotFound
		}
		res.Kernel = kernelImage
		res.Ramdisk = ramdisk
		res.Mandatory = ctx.Mandatory()
		res.Limited = true
	}

	// Entries that touch each other produce touching output.
	res.Ranges = memlimit.Coalesce(res.Ranges)
	if err := verifyRanges(res.Ranges); err != nil {
		return Result{}, err
	}
	res.Total = memlimit.Total(res.Ranges)
	res.Dropped = memlimit.Total(entries) - res.Total
	log.Info("physical memory", "ranges", len(res.Ranges), "total", res.Total, "dropped", res.Dropped)
	return res, nil
}

// passThrough keeps every entry.
func passThrough(kernelImage, ramdisk memlimit.Range, entries []memlimit.Range) (res Result, foundKernel, foundRamdisk bool) {
	ctx := memlimit.New(kernelImage, ramdisk, 0)
	res = Result{
		Kernel:    kernelImage,
		Ramdisk:   ramdisk,
		Mandatory: ctx.Mandatory(),
	}
	for _, e := range entries {
		foundKernel = foundKernel || e.Overlaps(kernelImage)
		foundRamdisk = foundRamdisk || e.Overlaps(ramdisk)
		if !e.Empty() {
			res.Ranges = append(res.Ranges, e)
		}
	}
	return res, foundKernel, foundRamdisk
}
