// SPDX-License-Identifier: Unlicense OR MIT

//go:build !unix

package efi

import "os"

// OpenFile reads a dump of a memory map.
func OpenFile(path string, stride int) (Map, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, nil, err
	}
	return Map{Data: data, Stride: stride}, func() error { return nil }, nil
}
