// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"fmt"

	"eliasnaur.com/memlimit/memlimit"
)

// kernError is an error type usable in kernel code.
type kernError string

const (
	ErrKernelNotFound  = kernError("kernel: kernel image not in physical memory map")
	ErrRamdiskNotFound = kernError("kernel: ramdisk image not in physical memory map")
	ErrPageSize        = kernError("kernel: page size is not a power of two")
)

// OrderError reports two memory ranges that are out of address order or
// overlap.
type OrderError struct {
	Prev, Next memlimit.Range
}

// CarveError reports a memory map entry the limiter could not represent
// in the output ranges available.
type CarveError struct {
	Entry memlimit.Range
	Err   error
}

func (e *OrderError) Error() string {
	if e.Prev.Overlaps(e.Next) {
		return fmt.Sprintf("kernel: overlapping memory ranges %s and %s", e.Prev.String(), e.Next.String())
	}
	return fmt.Sprintf("kernel: memory range %s follows %s", e.Next.String(), e.Prev.String())
}

func (e *CarveError) Error() string {
	return fmt.Sprintf("kernel: memory limit: entry %s: %v", e.Entry.String(), e.Err)
}

func (e *CarveError) Unwrap() error {
	return e.Err
}

func (k kernError) Error() string {
	return string(k)
}
