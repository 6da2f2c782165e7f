// Package walker enumerates the local side of a transfer: descendant
// directories and regular files relative to a source root, in lexical
// order, with exclude-pattern pruning.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mirrorlake/catapult/pkg/fnmatch"
)

// Walker walks a source directory tree.
type Walker struct {
	root     string
	excludes []string
}

// New creates a Walker rooted at an existing directory.
func New(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	if err := checkPatterns(excludes); err != nil {
		return nil, err
	}

	return &Walker{
		root:     absRoot,
		excludes: excludes,
	}, nil
}

// Root returns the resolved absolute source root.
func (w *Walker) Root() string {
	return w.root
}

// Walk returns every descendant directory and regular file as
// slash-separated paths relative to the root. The root itself is not
// listed. An excluded directory is pruned together with its subtree.
func (w *Walker) Walk() (dirs, files []string, err error) {
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == w.root {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return fmt.Errorf("get relative path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			// A "dir/*" pattern should prune dir itself, so test with a
			// trailing slash as well.
			if isExcluded(relPath, w.excludes) || isExcluded(relPath+"/", w.excludes) {
				return fs.SkipDir
			}
			dirs = append(dirs, relPath)
			return nil
		}

		// Symlinks, sockets and devices are not transferable content.
		if !d.Type().IsRegular() {
			return nil
		}
		if isExcluded(relPath, w.excludes) {
			return nil
		}

		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk directory: %w", err)
	}

	return dirs, files, nil
}

// Glob enumerates regular files under root matching pattern, relative to
// root, in lexical order. Patterns use doublestar syntax, so "**" spans
// directory levels.
func Glob(root, pattern string, excludes []string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}
	if err := checkPatterns(excludes); err != nil {
		return nil, err
	}

	var files []string
	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if isExcluded(path, excludes) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expand glob: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// checkPatterns compiles every exclude pattern so a malformed one is
// rejected before any enumeration begins.
func checkPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := fnmatch.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func isExcluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		// Patterns were validated up front; Match cannot fail here.
		if matched, _ := fnmatch.Match(pattern, path); matched {
			return true
		}
	}
	return false
}
