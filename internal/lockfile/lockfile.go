// Package lockfile guards a running daemon's PID file with an
// exclusive, non-blocking file lock so two instances never run
// against the same configuration at once.
package lockfile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

// Lock is an acquired exclusive lock on a PID file. The file holds
// the current process's PID for operator inspection; the lock itself,
// not the PID text, is what prevents a second instance from starting.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes an exclusive, non-blocking lock on path and writes
// the current PID into it. It returns an error if another live
// process already holds the lock.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring pid lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance already holds %s", path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("writing pid file %s: %w", path, err)
	}

	return &Lock{fl: fl, path: path}, nil
}

// Release unlocks the PID file and removes it.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing pid lock %s: %w", l.path, err)
	}
	_ = os.Remove(l.path)
	return nil
}
