// SPDX-License-Identifier: Unlicense OR MIT

//go:build unix

package efi

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenFile maps a dump of a memory map read-only. The returned function
// releases the mapping; the Map must not be used after calling it.
func OpenFile(path string, stride int) (Map, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return Map{}, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Map{}, nil, err
	}
	size := info.Size()
	if size == 0 {
		return Map{Stride: stride}, func() error { return nil }, nil
	}
	if size > int64(^uint(0)>>1) {
		return Map{}, nil, fmt.Errorf("efi: %s: memory map too large (%d bytes)", path, size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return Map{}, nil, fmt.Errorf("efi: %s: %w", path, err)
	}
	release := func() error {
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			return nil
		}
		return err
	}
	return Map{Data: data, Stride: stride}, release, nil
}
