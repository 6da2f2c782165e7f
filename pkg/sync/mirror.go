package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mirrorlake/catapult/pkg/catalog"
)

// mirrorDirs makes the target root and every relative directory exist in
// the catalog before any file moves. Collection failures abort the whole
// run: a missing collection would otherwise surface as a confusing
// failure on every file beneath it.
func (s *Syncer) mirrorDirs(ctx context.Context, spec *TransferSpec, dirs []string) error {
	err := s.catalog.CreateCollection(ctx, spec.TargetRoot, true)
	if err != nil && !errors.Is(err, catalog.ErrCollectionExists) {
		return fmt.Errorf("create target root %s: %w", spec.TargetRoot, err)
	}

	if len(dirs) == 0 {
		return nil
	}

	// One batch query up front beats one existence probe per directory.
	existing, err := s.catalog.ListCollections(ctx, spec.TargetRoot)
	if err != nil {
		return fmt.Errorf("list collections under %s: %w", spec.TargetRoot, err)
	}

	for _, rel := range dirs {
		full := spec.TargetRoot + "/" + rel
		if existing.Contains(full) {
			slog.Debug("collection exists", "collection", full)
			continue
		}

		err := s.catalog.CreateCollection(ctx, full, false)
		if errors.Is(err, catalog.ErrCollectionExists) {
			// Appeared since the batch query; same end state.
			slog.Debug("collection exists", "collection", full)
			continue
		}
		if err != nil {
			return fmt.Errorf("create collection %s: %w", full, err)
		}
		slog.Info("created collection", "collection", full)
	}

	return nil
}
