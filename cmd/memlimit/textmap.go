// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"eliasnaur.com/memlimit/memlimit"
)

// readTextMap parses a memory map of "base size" lines. Numbers may be
// decimal or 0x-prefixed hexadecimal; # starts a comment.
func readTextMap(r io.Reader) ([]memlimit.Range, error) {
	var ranges []memlimit.Range
	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		text, _, _ := strings.Cut(s.Text(), "#")
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("memory map line %d: want base and size, got %q", line, text)
		}
		base, err := strconv.ParseUint(fields[0], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("memory map line %d: base: %w", line, err)
		}
		size, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("memory map line %d: size: %w", line, err)
		}
		ranges = append(ranges, memlimit.Range{Base: base, Size: size})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return ranges, nil
}
