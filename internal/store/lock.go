package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the writer lock created in the data directory.
const LockFileName = ".geosearch.lock"

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = fmt.Errorf("data directory is locked by another geosearch process")

// DirLock is a cross-process exclusive lock on a data directory. Commands
// that write records or indexes hold it so two writers never interleave.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for dir. Nothing is acquired yet.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, LockFileName)
	return &DirLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the lock is acquired.
func (l *DirLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without blocking, returning ErrLocked when
// another process holds it.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return ErrLocked
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe on an unlocked DirLock.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// IsLocked reports whether this DirLock holds the lock.
func (l *DirLock) IsLocked() bool {
	return l.locked
}
