// Package runlock serializes transfer runs that share a state
// directory. Restart files for resumed transfers live there, and two
// concurrent runs would corrupt each other's state.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFile = "catapult.lock"

// ErrLocked reports that another run already holds the state directory.
var ErrLocked = errors.New("another run already holds the state directory")

// Lock is a held state-directory lock.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the state-directory lock without blocking, creating the
// directory if needed.
func Acquire(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	fl := flock.New(filepath.Join(stateDir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock state directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, stateDir)
	}

	return &Lock{flock: fl}, nil
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock state directory: %w", err)
	}
	return os.Remove(l.flock.Path())
}
