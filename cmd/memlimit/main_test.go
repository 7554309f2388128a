// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eliasnaur.com/memlimit/efi"
	"eliasnaur.com/memlimit/memlimit"
)

const nucMap = `# Intel NUC, EFI memory map
0x0         0x58000
0x59000     0x45000
0x100000    0x85d8b000
0x85eb6000  0x4375000   # trailing comment
0x8b2ff000  0x1000

0x100000000 0x36f000000
`

func nucConfig(t *testing.T) *Config {
	path := filepath.Join(t.TempDir(), "nuc.txt")
	require.NoError(t, os.WriteFile(path, []byte(nucMap), 0o644))

	c := newConfig()
	c.Map.File = path
	c.Kernel.Base = "0x100000"
	c.Kernel.Size = "0x400000"
	c.Ramdisk.Base = "0x818e4000"
	c.Ramdisk.Size = "4194304"
	return c
}

func TestRunText(t *testing.T) {
	c := nucConfig(t)
	c.Limit.MB = 128

	var out strings.Builder
	require.NoError(t, run(c, &out))
	assert.Contains(t, out.String(), "memory limit: 128 MiB\n")
	assert.Contains(t, out.String(), "kept: 128 MiB")
	assert.Contains(t, out.String(), "usable (4 ranges")
}

func TestRunCmdline(t *testing.T) {
	c := nucConfig(t)
	c.Limit.MB = 128
	c.Limit.Cmdline = "console=ttyS0 kernel.memory-limit-mb=64"

	var out strings.Builder
	require.NoError(t, run(c, &out))
	assert.Contains(t, out.String(), "kept: 64 MiB")
}

func TestRunUnlimited(t *testing.T) {
	c := nucConfig(t)

	var out strings.Builder
	require.NoError(t, run(c, &out))
	assert.Contains(t, out.String(), "memory limit: none\n")
	assert.Contains(t, out.String(), "dropped: 0 bytes")
}

func TestRunEFI(t *testing.T) {
	m := efi.Map{Stride: 48}
	m.Append(efi.Descriptor{Type: efi.ConventionalMemory, PhysicalStart: 0, NumberOfPages: 0x10000})
	m.Append(efi.Descriptor{Type: efi.RuntimeServicesData, PhysicalStart: 0x10000000, NumberOfPages: 0x10})
	m.Append(efi.Descriptor{Type: efi.LoaderData, PhysicalStart: 0x10010000, NumberOfPages: 0x10000})
	path := filepath.Join(t.TempDir(), "memmap.bin")
	require.NoError(t, os.WriteFile(path, m.Data, 0o644))

	c := newConfig()
	c.Map.File = path
	c.Map.Format = FormatEFI
	c.Map.DescriptorSize = 48
	c.Kernel.Base = "0x100000"
	c.Kernel.Size = "0x400000"
	c.Ramdisk.Base = "0x10020000"
	c.Ramdisk.Size = "0x100000"
	c.Limit.MB = 32

	var out strings.Builder
	require.NoError(t, run(c, &out))
	assert.Contains(t, out.String(), "kept: 32 MiB")
	assert.Contains(t, out.String(), "firmware (2 ranges, 512 MiB)")
}

func TestRunErrors(t *testing.T) {
	c := nucConfig(t)
	c.Kernel.Size = ""
	err := run(c, new(strings.Builder))
	assert.ErrorContains(t, err, "kernel.size not set")

	c = nucConfig(t)
	c.Map.Format = "xml"
	err = run(c, new(strings.Builder))
	assert.ErrorContains(t, err, `unknown memory map format "xml"`)

	c = nucConfig(t)
	c.Ramdisk.Base = "0x90000000"
	c.Limit.MB = 64
	err = run(c, new(strings.Builder))
	assert.ErrorContains(t, err, "ramdisk image not in physical memory map")

	c = nucConfig(t)
	c.Limit.PageSize = 3000
	err = run(c, new(strings.Builder))
	assert.ErrorContains(t, err, "not a power of two")

	c = newConfig()
	err = run(c, new(strings.Builder))
	assert.ErrorContains(t, err, "no memory map file given")
}

func TestReadTextMap(t *testing.T) {
	ranges, err := readTextMap(strings.NewReader(nucMap))
	require.NoError(t, err)
	assert.Len(t, ranges, 6)
	assert.Equal(t, memlimit.Range{Base: 0x85eb6000, Size: 0x4375000}, ranges[3])

	_, err = readTextMap(strings.NewReader("0x1000\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = readTextMap(strings.NewReader("\n0x1000 0xzz\n"))
	assert.ErrorContains(t, err, "line 2: size")
}
