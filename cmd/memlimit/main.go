// SPDX-License-Identifier: Unlicense OR MIT

// Command memlimit applies a boot-time memory limit to a recorded
// physical memory map and prints the memory the kernel would be left
// with.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"import.name/confi"
	"import.name/pan"

	"eliasnaur.com/memlimit/efi"
	"eliasnaur.com/memlimit/internal/logging"
	"eliasnaur.com/memlimit/internal/report"
	"eliasnaur.com/memlimit/kernel"
	"eliasnaur.com/memlimit/memlimit"
)

const (
	FormatText = "text"
	FormatEFI  = "efi"
)

type Config struct {
	Map struct {
		File           string
		Format         string
		DescriptorSize int
	}

	Kernel struct {
		Base string
		Size string
	}

	Ramdisk struct {
		Base string
		Size string
	}

	Limit struct {
		MB       int
		Cmdline  string
		PageSize int
	}

	Output struct {
		Capacity int
	}

	Log struct {
		Journal bool
		Verbose bool
	}
}

var z = new(pan.Zone)

func must[T any](x T, err error) T {
	z.Check(err)
	return x
}

func newConfig() *Config {
	c := new(Config)
	c.Map.Format = FormatText
	c.Map.DescriptorSize = efi.DescriptorSize
	c.Limit.PageSize = efi.PageSize
	c.Output.Capacity = kernel.DefaultCapacity
	return c
}

func main() {
	log.SetFlags(0)

	c := newConfig()
	flag.Var(confi.FileReader(c), "f", "read a configuration file")
	flag.Var(confi.Assigner(c), "o", "set a configuration option (path.to.key=value)")
	flag.Usage = confi.FlagUsage(nil, c)
	flag.Parse()

	switch flag.NArg() {
	case 0:
	case 1:
		c.Map.File = flag.Arg(0)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err := run(c, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(c *Config, w io.Writer) (err error) {
	err = z.Recover(func() {
		logger := must(logging.Init(c.Log.Journal, c.Log.Verbose))

		if c.Map.File == "" {
			z.Check(errors.New("no memory map file given"))
		}
		kernelImage := memlimit.Range{
			Base: mustParseUint("kernel.base", c.Kernel.Base, false),
			Size: mustParseUint("kernel.size", c.Kernel.Size, true),
		}
		ramdisk := memlimit.Range{
			Base: mustParseUint("ramdisk.base", c.Ramdisk.Base, false),
			Size: mustParseUint("ramdisk.size", c.Ramdisk.Size, true),
		}
		if c.Limit.MB < 0 || c.Limit.PageSize < 0 {
			z.Check(errors.New("negative memory limit or page size"))
		}
		if p := c.Limit.PageSize; p&(p-1) != 0 {
			z.Check(fmt.Errorf("page size %d is not a power of two", p))
		}

		opts := kernel.BootOptions{MemoryLimit: uint64(c.Limit.MB) << 20}
		if c.Limit.Cmdline != "" {
			opts = must(kernel.ParseCmdline(c.Limit.Cmdline))
		}
		if c.Log.Verbose {
			opts.Debug = true
		}

		entries := mustLoadMap(c)
		res := must(kernel.ApplyMemoryLimit(opts, kernelImage, ramdisk, entries, kernel.Options{
			Capacity: c.Output.Capacity,
			PageSize: uint64(c.Limit.PageSize),
			Log:      logger,
		}))

		p := report.New()
		p.Map(w, "firmware", entries)
		p.Map(w, "usable", res.Ranges)
		p.Summary(w, res, opts.MemoryLimit)
	})
	return
}

func mustLoadMap(c *Config) []memlimit.Range {
	switch c.Map.Format {
	case FormatText:
		f := must(os.Open(c.Map.File))
		defer f.Close()
		return must(readTextMap(f))

	case FormatEFI:
		m, release, err := efi.OpenFile(c.Map.File, c.Map.DescriptorSize)
		z.Check(err)
		defer release()
		return must(efi.UsableRanges(m))

	default:
		z.Check(fmt.Errorf("unknown memory map format %q", c.Map.Format))
		return nil
	}
}

func mustParseUint(key, s string, required bool) uint64 {
	if s == "" {
		if required {
			z.Check(fmt.Errorf("%s not set", key))
		}
		return 0
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		z.Check(fmt.Errorf("%s: %w", key, err))
	}
	return n
}
