// SPDX-License-Identifier: Unlicense OR MIT

// Package efi decodes the memory map handed over by UEFI firmware.
package efi

import (
	"encoding/binary"
	"fmt"
	"sort"

	"eliasnaur.com/memlimit/memlimit"
)

// PageSize is the unit of NumberOfPages.
const PageSize = 1 << 12

const _EFI_MEMORY_RUNTIME = 0x8000000000000000

// DescriptorSize is the size of a version 1 EFI_MEMORY_DESCRIPTOR.
// Firmware may report a larger stride.
const DescriptorSize = 40

type MemoryType uint32

const (
	ReservedMemoryType      MemoryType = 0
	LoaderCode              MemoryType = 1
	LoaderData              MemoryType = 2
	BootServicesCode        MemoryType = 3
	BootServicesData        MemoryType = 4
	RuntimeServicesCode     MemoryType = 5
	RuntimeServicesData     MemoryType = 6
	ConventionalMemory      MemoryType = 7
	UnusableMemory          MemoryType = 8
	ACPIReclaimMemory       MemoryType = 9
	ACPIMemoryNVS           MemoryType = 10
	MemoryMappedIO          MemoryType = 11
	MemoryMappedIOPortSpace MemoryType = 12
	PalCode                 MemoryType = 13
	PersistentMemory        MemoryType = 14
)

var typeNames = [...]string{
	"reserved",
	"loader code",
	"loader data",
	"boot services code",
	"boot services data",
	"runtime services code",
	"runtime services data",
	"conventional",
	"unusable",
	"ACPI reclaim",
	"ACPI NVS",
	"MMIO",
	"MMIO port space",
	"PAL code",
	"persistent",
}

// Descriptor is a version 1 EFI_MEMORY_DESCRIPTOR.
type Descriptor struct {
	Type          MemoryType
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// Map is a memory map as returned by GetMemoryMap: descriptors laid out
// Stride bytes apart.
type Map struct {
	Data   []byte
	Stride int
}

type efiError string

const (
	ErrStride = efiError("efi: descriptor stride too small")
	ErrLength = efiError("efi: memory map is not a whole number of descriptors")
)

// OverlapError is returned for usable descriptors sharing memory.
type OverlapError struct {
	A, B memlimit.Range
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("efi: overlapping memory descriptors [%#x, +%#x) and [%#x, +%#x)", e.A.Base, e.A.Size, e.B.Base, e.B.Size)
}

// Validate checks the map layout.
func (m Map) Validate() error {
	if m.Stride < DescriptorSize {
		return ErrStride
	}
	if len(m.Data)%m.Stride != 0 {
		return ErrLength
	}
	return nil
}

func (m Map) Len() int {
	if m.Stride <= 0 {
		return 0
	}
	return len(m.Data) / m.Stride
}

// Entry decodes descriptor i. The map must be valid.
func (m Map) Entry(i int) Descriptor {
	b := m.Data[i*m.Stride : i*m.Stride+DescriptorSize]
	bo := binary.LittleEndian
	return Descriptor{
		Type:          MemoryType(bo.Uint32(b[0:])),
		PhysicalStart: bo.Uint64(b[8:]),
		VirtualStart:  bo.Uint64(b[16:]),
		NumberOfPages: bo.Uint64(b[24:]),
		Attribute:     bo.Uint64(b[32:]),
	}
}

// Append encodes d at the end of the map. Stride must be at least
// DescriptorSize.
func (m *Map) Append(d Descriptor) {
	b := make([]byte, m.Stride)
	bo := binary.LittleEndian
	bo.PutUint32(b[0:], uint32(d.Type))
	bo.PutUint64(b[8:], d.PhysicalStart)
	bo.PutUint64(b[16:], d.VirtualStart)
	bo.PutUint64(b[24:], d.NumberOfPages)
	bo.PutUint64(b[32:], d.Attribute)
	m.Data = append(m.Data, b...)
}

// IsRuntime reports whether the memory region is used for the UEFI
// runtime.
func (d Descriptor) IsRuntime() bool {
	return d.Attribute&_EFI_MEMORY_RUNTIME != 0
}

// IsUsable reports whether the memory region is available to the kernel
// once boot services have exited.
func (d Descriptor) IsUsable() bool {
	if d.IsRuntime() {
		return false
	}
	switch d.Type {
	case LoaderCode, LoaderData, BootServicesCode, BootServicesData, ConventionalMemory:
		return true
	default:
		return false
	}
}

// Range returns the physical memory described by d, truncated at the
// top of the address space.
func (d Descriptor) Range() memlimit.Range {
	size := d.NumberOfPages * PageSize
	if d.NumberOfPages > ^uint64(0)/PageSize {
		size = ^uint64(0)
	}
	if d.PhysicalStart != 0 && size > -d.PhysicalStart {
		size = -d.PhysicalStart
	}
	return memlimit.Range{Base: d.PhysicalStart, Size: size}
}

// UsableRanges returns the usable memory of m in increasing address
// order, with byte-adjacent descriptors merged.
func UsableRanges(m Map) ([]memlimit.Range, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var rs []memlimit.Range
	for i := 0; i < m.Len(); i++ {
		d := m.Entry(i)
		if !d.IsUsable() || d.NumberOfPages == 0 {
			continue
		}
		rs = append(rs, d.Range())
	}
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Base < rs[j].Base
	})
	for i := 1; i < len(rs); i++ {
		if rs[i-1].Overlaps(rs[i]) {
			return nil, &OverlapError{A: rs[i-1], B: rs[i]}
		}
	}
	return memlimit.Coalesce(rs), nil
}

func (t MemoryType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type %d", uint32(t))
}

func (e efiError) Error() string {
	return string(e)
}
