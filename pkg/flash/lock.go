package flash

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// lockTimeout is the timeout for acquiring an image file lock.
const lockTimeout = 5 * time.Second

const lockFilePerms = 0o644

// Lock errors.
var (
	errLockTimeout  = errors.New("lock timeout")
	errLockFileOpen = errors.New("failed to open lock file")
)

// fileLock represents an advisory lock on an image file.
type fileLock struct {
	file *os.File
}

// acquireLock tries to acquire an exclusive lock on path's sibling .lock
// file, retrying until lockTimeout.
func acquireLock(path string) (*fileLock, error) {
	lockPath := path + ".lock"

	file, openErr := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockFilePerms) //nolint:gosec // path is from caller
	if openErr != nil {
		return nil, fmt.Errorf("%w: %w", errLockFileOpen, openErr)
	}

	deadline := time.Now().Add(lockTimeout)

	const retryInterval = 10 * time.Millisecond

	for {
		flockErr := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if flockErr == nil {
			return &fileLock{file: file}, nil
		}

		if time.Now().After(deadline) {
			_ = file.Close()

			return nil, fmt.Errorf("%w: %s", errLockTimeout, path)
		}

		time.Sleep(retryInterval)
	}
}

// release releases the lock.
func (l *fileLock) release() {
	if l.file != nil {
		_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
		_ = l.file.Close()
	}
}

// writeFileAtomic replaces path's contents via write-to-temp + rename.
func writeFileAtomic(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}

	return nil
}
