// Package logging wires the process-wide slog logger: a colored console
// stream for the operator and a plain text file that keeps the full
// debug record of the run.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// teeHandler forwards each record to every handler that accepts its
// level.
type teeHandler struct {
	handlers []slog.Handler
}

func tee(handlers ...slog.Handler) *teeHandler {
	return &teeHandler{handlers: handlers}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if e := handler.Handle(ctx, r); e != nil {
				err = e
			}
		}
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return tee(handlers...)
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return tee(handlers...)
}

// Setup installs the default logger. The console stream on stderr shows
// INFO and up (WARN and up when quiet); the log file, when logPath is
// non-empty, records everything down to DEBUG. The returned file is nil
// when no file handler was configured and must be closed by the caller
// otherwise.
func Setup(logPath string, quiet bool) (*os.File, error) {
	consoleLevel := slog.LevelInfo
	if quiet {
		consoleLevel = slog.LevelWarn
	}

	console := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: timeFormat,
		NoColor:    quiet || !isatty.IsTerminal(os.Stderr.Fd()),
	})

	if logPath == "" {
		slog.SetDefault(slog.New(console))
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(tee(console, fileHandler)))
	return file, nil
}
