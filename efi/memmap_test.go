// SPDX-License-Identifier: Unlicense OR MIT

package efi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eliasnaur.com/memlimit/memlimit"
)

// Descriptor stride reported by OVMF.
const ovmfStride = 48

func newMap(stride int, descs ...Descriptor) Map {
	m := Map{Stride: stride}
	for _, d := range descs {
		m.Append(d)
	}
	return m
}

func TestEntry(t *testing.T) {
	assert := assert.New(t)

	want := Descriptor{
		Type:          RuntimeServicesData,
		PhysicalStart: 0x7f000000,
		VirtualStart:  0xffff80007f000000,
		NumberOfPages: 16,
		Attribute:     _EFI_MEMORY_RUNTIME | 0xf,
	}
	m := newMap(ovmfStride, Descriptor{Type: ConventionalMemory, NumberOfPages: 1}, want)
	assert.NoError(m.Validate())
	assert.Equal(2, m.Len())
	assert.Equal(want, m.Entry(1))
	assert.True(m.Entry(1).IsRuntime())
	assert.False(m.Entry(1).IsUsable())
	assert.True(m.Entry(0).IsUsable())
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	assert.ErrorIs(Map{Stride: 24}.Validate(), ErrStride)
	m := newMap(DescriptorSize, Descriptor{})
	m.Data = m.Data[:DescriptorSize-1]
	assert.ErrorIs(m.Validate(), ErrLength)

	_, err := UsableRanges(m)
	assert.ErrorIs(err, ErrLength)
}

func TestUsableRanges(t *testing.T) {
	m := newMap(ovmfStride,
		Descriptor{Type: ConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x100},
		Descriptor{Type: BootServicesData, PhysicalStart: 0x0, NumberOfPages: 0x58},
		Descriptor{Type: ReservedMemoryType, PhysicalStart: 0x58000, NumberOfPages: 1},
		Descriptor{Type: LoaderCode, PhysicalStart: 0x59000, NumberOfPages: 0x45},
		Descriptor{Type: LoaderData, PhysicalStart: 0x200000, NumberOfPages: 0x10},
		Descriptor{Type: RuntimeServicesCode, PhysicalStart: 0x300000, NumberOfPages: 0x10},
		Descriptor{Type: ConventionalMemory, PhysicalStart: 0x400000, NumberOfPages: 0x10, Attribute: _EFI_MEMORY_RUNTIME},
		Descriptor{Type: ConventionalMemory, PhysicalStart: 0x100000000, NumberOfPages: 0},
		Descriptor{Type: ACPIReclaimMemory, PhysicalStart: 0x500000, NumberOfPages: 0x10},
	)
	rs, err := UsableRanges(m)
	require.NoError(t, err)
	assert.Equal(t, []memlimit.Range{
		{Base: 0, Size: 0x58000},
		{Base: 0x59000, Size: 0x45000},
		{Base: 0x100000, Size: 0x110000},
	}, rs)
}

func TestUsableRangesOverlap(t *testing.T) {
	m := newMap(DescriptorSize,
		Descriptor{Type: ConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x100},
		Descriptor{Type: LoaderData, PhysicalStart: 0x180000, NumberOfPages: 0x10},
	)
	_, err := UsableRanges(m)
	var oerr *OverlapError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, memlimit.Range{Base: 0x100000, Size: 0x100000}, oerr.A)
}

func TestDescriptorRange(t *testing.T) {
	assert := assert.New(t)

	d := Descriptor{Type: ConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x10}
	assert.Equal(memlimit.Range{Base: 0x100000, Size: 0x10000}, d.Range())

	d = Descriptor{Type: ConventionalMemory, PhysicalStart: 0xffffffff00000000, NumberOfPages: 0x200000}
	assert.Equal(memlimit.Range{Base: 0xffffffff00000000, Size: 0x100000000}, d.Range())

	d = Descriptor{Type: ConventionalMemory, PhysicalStart: 0xffffffff00000000, NumberOfPages: 1 << 60}
	assert.Equal(memlimit.Range{Base: 0xffffffff00000000, Size: 0x100000000}, d.Range())
}

func TestMemoryTypeString(t *testing.T) {
	assert.Equal(t, "conventional", ConventionalMemory.String())
	assert.Equal(t, "type 42", MemoryType(42).String())
}
