// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"fmt"
	"strconv"
	"strings"
)

const mb = 1 << 20

// Boot command line options.
const (
	optMemoryLimitMB    = "kernel.memory-limit-mb"
	optMemoryLimitDebug = "kernel.memory-limit-dbg"
)

// BootOptions are the memory limit settings of the boot command line.
type BootOptions struct {
	// MemoryLimit is the limit in bytes. Zero disables limiting and
	// every usable range is kept.
	MemoryLimit uint64
	// Debug enables per-entry logging of the limiter.
	Debug bool
}

// OptionError reports a malformed boot option.
type OptionError struct {
	Key, Value string
	Err        error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("kernel: boot option %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// ParseCmdline extracts the memory limit options from a boot command
// line of whitespace separated key=value pairs. Unknown options are
// ignored; the last occurrence of an option wins.
func ParseCmdline(cmdline string) (BootOptions, error) {
	var opts BootOptions
	for _, field := range strings.Fields(cmdline) {
		key, value, hasValue := strings.Cut(field, "=")
		switch key {
		case optMemoryLimitMB:
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return BootOptions{}, &OptionError{Key: key, Value: value, Err: err}
			}
			if n > ^uint64(0)/mb {
				return BootOptions{}, &OptionError{Key: key, Value: value, Err: strconv.ErrRange}
			}
			opts.MemoryLimit = n * mb
		case optMemoryLimitDebug:
			if !hasValue {
				opts.Debug = true
				continue
			}
			switch value {
			case "", "1", "true", "on":
				opts.Debug = true
			case "0", "false", "off":
				opts.Debug = false
			default:
				return BootOptions{}, &OptionError{Key: key, Value: value, Err: strconv.ErrSyntax}
			}
		}
	}
	return opts, nil
}
