// Package sync drives one transfer end to end: enumerate the local
// side, mirror its directories into the catalog, then settle every file
// into exactly one of OK, SKIPPED or FAILED.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mirrorlake/catapult/internal/inspect"
	"github.com/mirrorlake/catapult/pkg/catalog"
)

// ErrEmptySource reports a transfer specification that matched nothing.
var ErrEmptySource = errors.New("source matched no directories or files")

// Syncer runs transfers against one catalog. Files are processed
// strictly one at a time: each is fully settled, verification included,
// before the next begins.
type Syncer struct {
	catalog   catalog.Client
	inspector inspect.Inspector
}

func New(client catalog.Client, inspector inspect.Inspector) *Syncer {
	return &Syncer{
		catalog:   client,
		inspector: inspector,
	}
}

// Run enumerates spec, mirrors its directories, and processes every file
// in enumeration order, accumulating outcomes into report. The returned
// error is non-nil only when the whole run aborted; per-file failures
// surface through the report instead.
func (s *Syncer) Run(ctx context.Context, spec *TransferSpec, report *Report) error {
	dirs, files, err := spec.Enumerate()
	if err != nil {
		return fmt.Errorf("enumerate source: %w", err)
	}
	if len(dirs) == 0 && len(files) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySource, spec.Source)
	}

	slog.Info("session start",
		"source", spec.Source,
		"kind", spec.Kind,
		"root", spec.Root,
		"target", spec.TargetRoot,
		"dirs", len(dirs),
		"files", len(files),
	)

	if err := s.mirrorDirs(ctx, spec, dirs); err != nil {
		return err
	}
	report.TotalDirs = len(dirs)

	for _, relPath := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}
		report.Add(s.syncFile(ctx, spec, relPath))
	}

	return nil
}
