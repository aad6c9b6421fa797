package scheduler

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// LockContentionError means another scheduler instance already owns the
// sensor. Fatal: the caller exits non-zero immediately instead of queueing.
type LockContentionError struct {
	Path string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("scheduler already running: lock %s is held by another process", e.Path)
}

// LockGuard holds exclusive ownership of the physical sensor for the lifetime
// of one scheduler process. Release must run on every exit path.
type LockGuard struct {
	Token string
	path  string
	file  *os.File
}

// AcquireExclusive takes a non-blocking exclusive flock on the lock file. If
// the lock is already held it fails fast with LockContentionError.
func AcquireExclusive(path string) (*LockGuard, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, &LockContentionError{Path: path}
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	token := uuid.New().String()
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d %s\n", os.Getpid(), token)
	_ = f.Sync()

	return &LockGuard{Token: token, path: path, file: f}, nil
}

// Release drops the lock and closes the file. Safe to call once per guard.
func (g *LockGuard) Release() error {
	if g.file == nil {
		return nil
	}
	err := unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	if closeErr := g.file.Close(); err == nil {
		err = closeErr
	}
	g.file = nil
	return err
}
