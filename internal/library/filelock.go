package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	lockPollInitial = 10 * time.Millisecond
	lockPollMax     = 500 * time.Millisecond
)

var (
	// ErrLockTimeout indicates the lock acquisition timed out
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrLockWouldBlock indicates the lock is held by another process
	ErrLockWouldBlock = errors.New("lock is held by another process")
)

// FileLock is an exclusive flock(2) lock on a file in the base directory.
// It elects the process that fetches and indexes pages; the kernel releases
// it when the holder exits.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock at path. The file is created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking. It returns false,
// nil when another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	err := l.attempt()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrLockWouldBlock):
		return false, nil
	default:
		return false, err
	}
}

// Lock blocks until the lock is acquired or timeout expires.
func (l *FileLock) Lock(timeout time.Duration) error {
	return l.LockWithContext(context.Background(), timeout)
}

// LockWithContext blocks until the lock is acquired, timeout expires or ctx
// is done. Polling backs off exponentially.
func (l *FileLock) LockWithContext(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	poll := lockPollInitial
	for {
		err := l.attempt()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLockWouldBlock) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrLockTimeout
		case <-time.After(poll):
			poll = min(poll*2, lockPollMax)
		}
	}
}

// attempt opens the lock file and tries a non-blocking flock. On any
// failure the file is closed again.
func (l *FileLock) attempt() error {
	if l.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrLockWouldBlock
		}
		return fmt.Errorf("flock failed: %w", err)
	}

	l.file = file
	return nil
}

// Unlock releases the lock. It is a no-op when the lock is not held.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// IsLocked returns true if this instance holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.file != nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}
