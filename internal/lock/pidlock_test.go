package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connection.json.pid")

	l, err := AcquirePIDLock(path, "kernel-a")
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}

	pid, kernelID, err := ReadOwner(path)
	if err != nil {
		t.Fatalf("ReadOwner: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("owner pid = %d, want %d", pid, os.Getpid())
	}
	if kernelID != "kernel-a" {
		t.Errorf("owner kernel = %q, want kernel-a", kernelID)
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	// Release is idempotent.
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connection.json.pid")

	l1, err := AcquirePIDLock(path, "kernel-a")
	if err != nil {
		t.Fatalf("first AcquirePIDLock: %v", err)
	}
	defer l1.Release()

	if _, err := AcquirePIDLock(path, "kernel-b"); err == nil {
		t.Error("second AcquirePIDLock succeeded, want lock contention error")
	}

	// The loser can still see who holds the connection.
	_, kernelID, err := ReadOwner(path)
	if err != nil {
		t.Fatalf("ReadOwner: %v", err)
	}
	if kernelID != "kernel-a" {
		t.Errorf("owner kernel = %q, want kernel-a", kernelID)
	}
}

func TestAcquireEmptyPath(t *testing.T) {
	if _, err := AcquirePIDLock("", "kernel-a"); err == nil {
		t.Error("AcquirePIDLock with empty path did not fail")
	}
}

func TestReadOwnerMissingFile(t *testing.T) {
	if _, _, err := ReadOwner(filepath.Join(t.TempDir(), "absent.pid")); err == nil {
		t.Error("ReadOwner on missing file did not fail")
	}
}
