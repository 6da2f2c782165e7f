package sync

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mirrorlake/catapult/internal/walker"
)

// SourceKind tells how a transfer source was classified.
type SourceKind string

const (
	SourceDir  SourceKind = "directory"
	SourceFile SourceKind = "file"
	SourceGlob SourceKind = "glob"
)

// TransferSpec pins down one run: where files come from and the
// collection tree they land under. Resolved once, immutable afterwards.
type TransferSpec struct {
	Source     string // as given on the command line
	Root       string // absolute local root the relative paths hang off
	Kind       SourceKind
	TargetRoot string // collection absorbing the tree
	Excludes   []string

	pattern string // glob remainder relative to Root, glob mode only
	file    string // base name, single-file mode only
}

// ResolveSource classifies source and anchors its local root. An
// existing directory syncs recursively, an existing regular file syncs
// alone, and anything else is treated as a glob pattern anchored at its
// deepest non-magic parent directory.
func ResolveSource(source, targetRoot string, excludes []string) (*TransferSpec, error) {
	targetRoot = strings.TrimRight(targetRoot, "/")
	if targetRoot == "" {
		return nil, fmt.Errorf("target root must not be empty")
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve source %s: %w", source, err)
	}

	spec := &TransferSpec{
		Source:     source,
		TargetRoot: targetRoot,
		Excludes:   excludes,
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		spec.Kind = SourceDir
		spec.Root = abs
		return spec, nil

	case err == nil && info.Mode().IsRegular():
		spec.Kind = SourceFile
		spec.Root = filepath.Dir(abs)
		spec.file = filepath.Base(abs)
		return spec, nil

	case err == nil:
		return nil, fmt.Errorf("source is not a directory or regular file: %s", abs)
	}

	base, pattern := doublestar.SplitPattern(filepath.ToSlash(abs))
	if !strings.ContainsAny(pattern, "*?[{") {
		// No wildcards, so this was a plain path that does not exist.
		return nil, fmt.Errorf("source not found: %s", source)
	}
	baseInfo, err := os.Stat(filepath.FromSlash(base))
	if err != nil {
		return nil, fmt.Errorf("glob parent directory: %w", err)
	}
	if !baseInfo.IsDir() {
		return nil, fmt.Errorf("glob parent is not a directory: %s", base)
	}

	spec.Kind = SourceGlob
	spec.Root = filepath.FromSlash(base)
	spec.pattern = pattern
	return spec, nil
}

// Enumerate produces the directory and file work lists, slash-separated
// and relative to Root, in lexical order. Re-enumeration rewalks the
// filesystem. Glob mode lists no directories: matches land in
// collections assumed to exist.
func (s *TransferSpec) Enumerate() (dirs, files []string, err error) {
	switch s.Kind {
	case SourceDir:
		w, err := walker.New(s.Root, s.Excludes)
		if err != nil {
			return nil, nil, err
		}
		return w.Walk()

	case SourceFile:
		return nil, []string{s.file}, nil

	case SourceGlob:
		files, err := walker.Glob(s.Root, s.pattern, s.Excludes)
		if err != nil {
			return nil, nil, err
		}
		return nil, files, nil

	default:
		return nil, nil, fmt.Errorf("unknown source kind: %q", s.Kind)
	}
}

// objectLocation maps a relative file path to its remote collection and
// object name. The mapping depends only on the path and the target root,
// never on processing order.
func (s *TransferSpec) objectLocation(relPath string) (collection, name string) {
	name = path.Base(relPath)
	relDir := path.Dir(relPath)
	if relDir == "." {
		return s.TargetRoot, name
	}
	return s.TargetRoot + "/" + relDir, name
}

// localPath maps a relative file path back to the local filesystem.
func (s *TransferSpec) localPath(relPath string) string {
	return filepath.Join(s.Root, filepath.FromSlash(relPath))
}
