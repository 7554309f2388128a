// SPDX-License-Identifier: Unlicense OR MIT

// Package report prints memory maps for people.
package report

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"eliasnaur.com/memlimit/kernel"
	"eliasnaur.com/memlimit/memlimit"
)

const (
	kib = 1 << 10
	mib = 1 << 20
	gib = 1 << 30
)

type Printer struct {
	p *message.Printer
}

// New returns a printer for the user's locale.
func New() *Printer {
	locales, err := locale.GetLocales()
	if err != nil {
		slog.Debug("locale detection failed", "error", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	return &Printer{message.NewPrinter(message.MatchLanguage(locales...))}
}

func NewLanguage(tag language.Tag) *Printer {
	return &Printer{message.NewPrinter(tag)}
}

// Bytes formats n in the largest binary unit dividing it.
func (p *Printer) Bytes(n uint64) string {
	switch {
	case n >= gib && n%gib == 0:
		return p.p.Sprintf("%d GiB", n/gib)
	case n >= mib && n%mib == 0:
		return p.p.Sprintf("%d MiB", n/mib)
	case n >= kib && n%kib == 0:
		return p.p.Sprintf("%d KiB", n/kib)
	default:
		return p.p.Sprintf("%d bytes", n)
	}
}

// Map prints one line per range.
func (p *Printer) Map(w io.Writer, title string, ranges []memlimit.Range) {
	p.p.Fprintf(w, "%s (%d ranges, %s):\n", title, len(ranges), p.Bytes(memlimit.Total(ranges)))
	for _, r := range ranges {
		p.p.Fprintf(w, "\t[%s - %s) %s\n", addr(r.Base), end(r), p.Bytes(r.Size))
	}
}

// Summary prints the totals of a limiting pass.
func (p *Printer) Summary(w io.Writer, res kernel.Result, limit uint64) {
	p.p.Fprintf(w, "kernel:  %s %s\n", rangeString(res.Kernel), p.Bytes(res.Kernel.Size))
	p.p.Fprintf(w, "ramdisk: %s %s\n", rangeString(res.Ramdisk), p.Bytes(res.Ramdisk.Size))
	if !res.Limited {
		p.p.Fprintf(w, "memory limit: none\n")
	} else {
		p.p.Fprintf(w, "memory limit: %s\n", p.Bytes(limit))
		if limit < res.Mandatory {
			p.p.Fprintf(w, "memory limit raised to fit kernel and ramdisk: %s\n", p.Bytes(res.Mandatory))
		}
	}
	p.p.Fprintf(w, "kept: %s, dropped: %s\n", p.Bytes(res.Total), p.Bytes(res.Dropped))
}

func addr(a uint64) string {
	return fmt.Sprintf("0x%016x", a)
}

func end(r memlimit.Range) string {
	e, ok := r.End()
	if !ok {
		return "0x10000000000000000"
	}
	return addr(e)
}

func rangeString(r memlimit.Range) string {
	return fmt.Sprintf("[%s - %s)", addr(r.Base), end(r))
}
