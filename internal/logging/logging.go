// SPDX-License-Identifier: Unlicense OR MIT

package logging

import (
	"context"
	"log/slog"
	"time"

	"import.name/sjournal"
)

// Init returns some kind of logger on error. Verbose enables debug
// messages.
func Init(journal, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if !journal {
		slog.SetLogLoggerLevel(level)
		return slog.Default(), nil
	}

	opts := &sjournal.HandlerOptions{
		Delimiter:  sjournal.ColonDelimiter,
		TimeFormat: time.RFC3339Nano,
	}

	h, err := sjournal.NewHandler(opts)
	if err != nil {
		return slog.Default(), err
	}

	log := slog.New(levelHandler{h, level})

	slog.SetDefault(log)
	slog.SetLogLoggerLevel(level)

	return log, nil
}

// levelHandler drops records below a minimum level.
type levelHandler struct {
	slog.Handler
	level slog.Level
}

func (h levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level && h.Handler.Enabled(ctx, l)
}

func (h levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelHandler{h.Handler.WithAttrs(attrs), h.level}
}

func (h levelHandler) WithGroup(name string) slog.Handler {
	return levelHandler{h.Handler.WithGroup(name), h.level}
}
