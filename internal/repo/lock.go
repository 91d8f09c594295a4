package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FileLock is a coarse repository lock: one mutating operation at a
// time. The lock file holds the owning pid for diagnostics.
type FileLock struct {
	path string
	held bool
}

// NewFileLock prepares a lock at path without acquiring it.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Acquire takes the lock. Fails if another process holds it.
func (l *FileLock) Acquire() error {
	if l.held {
		return fmt.Errorf("lock %s already held by this process", l.path)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			owner := "unknown"
			if data, readErr := os.ReadFile(l.path); readErr == nil && len(data) > 0 {
				owner = string(data)
			}
			return fmt.Errorf("repository is locked by pid %s; remove %s if that process is gone", owner, l.path)
		}
		return fmt.Errorf("acquiring lock: %w", err)
	}

	_, writeErr := f.WriteString(strconv.Itoa(os.Getpid()))
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(l.path)
		if writeErr != nil {
			return fmt.Errorf("writing lock: %w", writeErr)
		}
		return fmt.Errorf("writing lock: %w", closeErr)
	}

	l.held = true
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}
