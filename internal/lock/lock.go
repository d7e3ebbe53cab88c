// Package lock provides the cross-process exclusive lock guarding a queue
// directory.
//
// The lock is an OS advisory lock held on a zero-length file. OS locks are
// owned by the open file description, so a FileLock also carries an in-process
// mutex: goroutines sharing one FileLock are serialized by the mutex, and
// separate FileLocks (in this or another process) are serialized by the OS.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the lock file name inside the queue directory.
const FileName = ".lock"

// DefaultPollInterval is the retry interval used by LockContext when none is
// given.
const DefaultPollInterval = 10 * time.Millisecond

var (
	// ErrLocked is returned by TryLock when another holder owns the lock.
	ErrLocked = errors.New("queue lock held by another holder")

	// ErrTimeout is returned by LockContext when the context ends before the
	// lock is acquired.
	ErrTimeout = errors.New("timed out waiting for queue lock")

	// ErrClosed is returned when using a FileLock after Close.
	ErrClosed = errors.New("lock file closed")
)

// FileLock is an exclusive lock on <dir>/.lock.
type FileLock struct {
	path string
	poll time.Duration

	// mu serializes holders within this process; the OS lock on f
	// serializes against every other open description of the file.
	mu     sync.Mutex
	f      *os.File
	closed bool
}

// Open creates the lock file in dir if needed and opens it. It does not
// acquire the lock. pollInterval tunes LockContext; zero selects
// DefaultPollInterval.
func Open(dir string, pollInterval time.Duration) (*FileLock, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	return &FileLock{path: path, poll: pollInterval, f: f}, nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Lock blocks until the lock is acquired.
func (l *FileLock) Lock() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if err := lockFile(l.f); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// TryLock acquires the lock without blocking, returning ErrLocked if it is
// held elsewhere.
func (l *FileLock) TryLock() error {
	if !l.mu.TryLock() {
		return ErrLocked
	}
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	ok, err := tryLockFile(l.f)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		l.mu.Unlock()
		return ErrLocked
	}
	return nil
}

// LockContext polls TryLock until it succeeds or ctx is done. A context that
// ends first yields an error wrapping both ErrTimeout and ctx.Err().
func (l *FileLock) LockContext(ctx context.Context) error {
	if ctx.Done() == nil {
		return l.Lock()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		err := l.TryLock()
		if !errors.Is(err, ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock. It must only be called by the current holder.
func (l *FileLock) Unlock() error {
	defer l.mu.Unlock()
	if err := unlockFile(l.f); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Close closes the lock file. The lock file itself is left on disk.
func (l *FileLock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.f.Close()
}
