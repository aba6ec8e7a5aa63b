package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeds.pid")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading pid file: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("pid file contents %q not an integer: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid file = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireFailsWhenAlreadyHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeds.pid")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer l.Release()

	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire() error = nil, want an error (lock already held)")
	}
}

func TestReleaseAllowsReacquisition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeds.pid")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("re-Acquire() error = %v", err)
	}
	l2.Release()
}
