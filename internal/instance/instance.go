// Package instance keeps a single station process running per state
// directory. The guard is an OS file lock (flock, or LockFileEx on
// Windows) held for the life of the process; a PID file next to it names
// the holder for error messages.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is matched by *RunningError.
var ErrAlreadyRunning = errors.New("another station instance is running")

// RunningError names the process that holds the lock. PID is 0 when the
// holder could not be read.
type RunningError struct {
	PID  int
	Path string
}

func (e *RunningError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("another station instance is running (lock %s)", e.Path)
	}
	return fmt.Sprintf("another station instance is running (PID %d, lock %s)", e.PID, e.Path)
}

func (e *RunningError) Is(target error) bool {
	return target == ErrAlreadyRunning
}

// Lock is a held instance lock.
type Lock struct {
	path string
	file *flock.Flock
}

// LockPath returns the file that carries the OS lock for the PID file path.
func LockPath(path string) string {
	return path + ".lock"
}

// Acquire takes the instance lock for the PID file at path. A PID file
// left by a crashed process is overwritten: the OS drops the file lock
// when its holder exits.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(LockPath(path))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, &RunningError{PID: readPID(path), Path: path}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &Lock{path: path, file: fl}, nil
}

// Release drops the lock. The PID file is removed if it still names this
// process. Calling Release again is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	if readPID(l.path) == os.Getpid() {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove pid file: %w", err)
		}
	}
	err := l.file.Unlock()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}

// Path returns the PID file location.
func (l *Lock) Path() string {
	return l.path
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
