package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mirrorlake/catapult/internal/inspect"
	"github.com/mirrorlake/catapult/pkg/catalog"
)

// syncFile runs one file through the decision pipeline and returns its
// classification. Per-file problems never escape as errors; they land in
// a FAILED outcome and the run moves on to the next file.
func (s *Syncer) syncFile(ctx context.Context, spec *TransferSpec, relPath string) Outcome {
	collection, name := spec.objectLocation(relPath)
	objectPath := collection + "/" + name
	localPath := spec.localPath(relPath)

	fail := func(reason string, err error) Outcome {
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		slog.Error("sync", "status", StatusFailed, "path", relPath, "reason", reason)
		return Outcome{RelPath: relPath, Status: StatusFailed, Reason: reason}
	}

	size, err := s.inspector.StatSize(localPath)
	if err != nil {
		return fail("local stat", err)
	}

	replicas, err := s.catalog.StatObject(ctx, collection, name)
	if err != nil {
		return fail("query object metadata", err)
	}

	distinct := catalog.DistinctReplicas(replicas)
	if len(distinct) > 1 {
		slog.Warn("replica mismatch", "path", relPath, "object", objectPath,
			"replicas", len(replicas), "distinct", len(distinct))
		if err := s.catalog.RemoveObject(ctx, objectPath); err != nil {
			return fail("remove mismatched replicas", err)
		}
		slog.Info("removed mismatched replicas", "object", objectPath)
		distinct = nil
	}

	checksum, err := s.inspector.Checksum(localPath)
	if err != nil {
		return fail("local checksum", err)
	}

	if len(distinct) == 1 && identical(distinct[0], checksum, size) {
		slog.Info("sync", "status", StatusSkipped, "path", relPath, "size", size)
		return Outcome{RelPath: relPath, Status: StatusSkipped, Reason: "remote copy identical", Size: size}
	}

	err = s.catalog.PutObject(ctx, &catalog.PutRequest{
		LocalPath: localPath,
		Path:      objectPath,
		Size:      size,
		Checksum:  checksum,
		Overwrite: true,
		ResumeID:  inspect.TransferID(checksum),
	})
	if err != nil {
		return fail("transfer", err)
	}

	if size == 0 {
		// Nothing to checksum on either side.
		slog.Info("sync", "status", StatusOK, "path", relPath, "size", 0)
		return Outcome{RelPath: relPath, Status: StatusOK, Reason: "zero-size file transferred"}
	}

	replicas, err = s.catalog.StatObject(ctx, collection, name)
	if err != nil {
		return fail("verify: query object metadata", err)
	}
	distinct = catalog.DistinctReplicas(replicas)
	switch {
	case len(distinct) == 0:
		return fail("verify: object absent after transfer", nil)
	case len(distinct) > 1:
		return fail("verify: replica mismatch after transfer", nil)
	}

	remote := distinct[0]
	if remote.Size != size {
		return fail(fmt.Sprintf("verify: size mismatch (local %d, remote %d)", size, remote.Size), nil)
	}
	if remote.Checksum != checksum {
		return fail("verify: checksum mismatch", nil)
	}

	slog.Info("sync", "status", StatusOK, "path", relPath, "size", size)
	return Outcome{RelPath: relPath, Status: StatusOK, Reason: "transferred and verified", Size: size}
}

// identical reports whether the remote replica provably matches the
// local file. An empty checksum on either side is unverifiable and never
// justifies a skip.
func identical(replica catalog.Replica, checksum string, size int64) bool {
	return checksum != "" && replica.Checksum == checksum && replica.Size == size
}
