package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// PIDLock is a single-instance lock implemented via a lock file + flock(2).
// The kernel takes one next to its connection file so two kernels never race
// for the same sockets; the file records which kernel owns the connection.
// Keep the lock alive by keeping the file descriptor open.
type PIDLock struct {
	path string
	f    *os.File
}

// AcquirePIDLock acquires an exclusive non-blocking lock at lockPath and
// writes the current PID and the owning kernel's ID into the file. The
// returned handle must be released.
func AcquirePIDLock(lockPath, kernelID string) (*PIDLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	release := func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}

	if err := f.Truncate(0); err != nil {
		release()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		release()
		return nil, fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d %s\n", os.Getpid(), kernelID); err != nil {
		release()
		return nil, fmt.Errorf("write lock owner: %w", err)
	}
	if err := f.Sync(); err != nil {
		release()
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &PIDLock{path: lockPath, f: f}, nil
}

// ReadOwner reports the PID and kernel ID recorded in a lock file, without
// taking the lock. Used for diagnostics when acquisition fails.
func ReadOwner(lockPath string) (pid int, kernelID string, err error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, "", fmt.Errorf("read lock file: %w", err)
	}
	if _, err := fmt.Sscanf(string(data), "%d %s", &pid, &kernelID); err != nil {
		return 0, "", fmt.Errorf("parse lock file %s: %w", lockPath, err)
	}
	return pid, kernelID, nil
}

func (l *PIDLock) Path() string { return l.path }

func (l *PIDLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
