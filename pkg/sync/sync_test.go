package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlake/catapult/internal/inspect"
	"github.com/mirrorlake/catapult/pkg/catalog"
)

func buildSourceTree(t *testing.T, entries map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range entries {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRunTransfersAndSkips(t *testing.T) {
	// x.txt is new; y.txt already has an identical remote counterpart.
	root := buildSourceTree(t, map[string]string{
		"x.txt": "hi",
		"y.txt": "bye",
	})
	ySum, err := inspect.FS{}.Checksum(filepath.Join(root, "y.txt"))
	require.NoError(t, err)

	cat := newFakeCatalog()
	cat.objects["/zone/data/y.txt"] = []catalog.Replica{{Checksum: ySum, Size: 3}}

	report := NewReport("")
	err = New(cat, inspect.FS{}).Run(context.Background(), dirSpec(root), report)
	require.NoError(t, err)

	require.Len(t, report.OK, 1)
	assert.Equal(t, "x.txt", report.OK[0].RelPath)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "y.txt", report.Skipped[0].RelPath)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 2, report.TotalFiles())
	assert.Equal(t, int64(2), report.BytesSent)
}

func TestRunIdempotence(t *testing.T) {
	root := buildSourceTree(t, map[string]string{
		"a/f1.txt": "hello world",
		"b.txt":    "data b",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "c"), 0o755))

	cat := newFakeCatalog()
	s := New(cat, inspect.FS{})

	first := NewReport("")
	require.NoError(t, s.Run(context.Background(), dirSpec(root), first))
	assert.Len(t, first.OK, 2)
	assert.Equal(t, 2, first.TotalDirs)
	assert.Equal(t, int64(17), first.BytesSent)

	// Unchanged tree, already-synced catalog: everything skips.
	second := NewReport("")
	require.NoError(t, s.Run(context.Background(), dirSpec(root), second))
	assert.Empty(t, second.OK)
	assert.Empty(t, second.Failed)
	assert.Len(t, second.Skipped, 2)
	assert.Equal(t, int64(0), second.BytesSent)
	assert.Equal(t, 2, second.TotalFiles())
}

func TestRunMirrorsDirectoriesFirst(t *testing.T) {
	root := buildSourceTree(t, map[string]string{
		"a/b/deep.txt": "x",
	})

	cat := newFakeCatalog()
	report := NewReport("")
	require.NoError(t, New(cat, inspect.FS{}).Run(context.Background(), dirSpec(root), report))

	assert.Equal(t, []string{"/zone/data", "/zone/data/a", "/zone/data/a/b"}, cat.createCalls)
	assert.Equal(t, 2, report.TotalDirs)
	assert.Len(t, report.OK, 1)
}

func TestRunEmptyDirectoryStillMirrored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "only-dirs", "nested"), 0o755))

	cat := newFakeCatalog()
	report := NewReport("")
	require.NoError(t, New(cat, inspect.FS{}).Run(context.Background(), dirSpec(root), report))

	assert.Equal(t, 2, report.TotalDirs)
	assert.Equal(t, 0, report.TotalFiles())
	assert.True(t, cat.collections.Contains("/zone/data/only-dirs/nested"))
}

func TestRunEmptySource(t *testing.T) {
	cat := newFakeCatalog()
	err := New(cat, inspect.FS{}).Run(context.Background(), dirSpec(t.TempDir()), NewReport(""))

	assert.ErrorIs(t, err, ErrEmptySource)
	assert.Empty(t, cat.createCalls)
}

func TestRunMirrorFailureAborts(t *testing.T) {
	root := buildSourceTree(t, map[string]string{
		"sub/f.txt": "content",
	})

	cat := newFakeCatalog()
	cat.createErr = func(path string, recursive bool) error {
		if !recursive {
			return errors.New("quota exceeded")
		}
		return nil
	}

	report := NewReport("")
	err := New(cat, inspect.FS{}).Run(context.Background(), dirSpec(root), report)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create collection")
	assert.Equal(t, 0, report.TotalFiles())
	assert.Empty(t, cat.putCalls)
}

func TestRunPerFileFailuresDoNotAbort(t *testing.T) {
	root := buildSourceTree(t, map[string]string{
		"a-bad.txt":  "broken",
		"b-good.txt": "fine",
	})

	cat := newFakeCatalog()
	insp := &fakeInspector{
		statErr: map[string]error{"a-bad.txt": errors.New("permission denied")},
	}

	report := NewReport("")
	err := New(cat, insp).Run(context.Background(), dirSpec(root), report)

	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "a-bad.txt", report.Failed[0].RelPath)
	require.Len(t, report.OK, 1)
	assert.Equal(t, "b-good.txt", report.OK[0].RelPath)
	assert.Equal(t, 2, report.TotalFiles())
}

func TestRunInterrupted(t *testing.T) {
	root := buildSourceTree(t, map[string]string{"f.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewReport("")
	err := New(newFakeCatalog(), inspect.FS{}).Run(ctx, dirSpec(root), report)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.Equal(t, 0, report.TotalFiles())
}

func TestRunDryRunLeavesBackendUntouched(t *testing.T) {
	root := buildSourceTree(t, map[string]string{
		"sub/x.txt": "hello world",
		"y.txt":     "bye",
	})

	inner := newFakeCatalog()
	s := New(catalog.DryRun(inner), inspect.Simulated{})

	report := NewReport("")
	require.NoError(t, s.Run(context.Background(), dirSpec(root), report))

	// Every file counts as a would-be transfer; nothing reached the
	// backend.
	assert.Len(t, report.OK, 2)
	assert.Empty(t, report.Failed)
	assert.Empty(t, inner.putCalls)
	assert.Empty(t, inner.removeCalls)
	assert.Empty(t, inner.createCalls)
}

func TestRunDryRunRepairsWithoutTouchingBackend(t *testing.T) {
	root := buildSourceTree(t, map[string]string{"x.txt": "hello world"})

	inner := newFakeCatalog()
	inner.objects["/zone/data/x.txt"] = []catalog.Replica{
		{Checksum: "aaa", Size: 1},
		{Checksum: "bbb", Size: 2},
	}

	report := NewReport("")
	require.NoError(t, New(catalog.DryRun(inner), inspect.Simulated{}).
		Run(context.Background(), dirSpec(root), report))

	require.Len(t, report.OK, 1)
	assert.Empty(t, inner.removeCalls)
	// The backend still holds the mismatched replicas.
	assert.Len(t, inner.objects["/zone/data/x.txt"], 2)
}
