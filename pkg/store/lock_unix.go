//go:build unix

package store

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an exclusive advisory lock on an open log file. flock locks belong to
// the open file description, so a second open of the same path conflicts even inside
// one process.
type fileLock struct {
	file *os.File
}

func lockFile(file *os.File) (*fileLock, error) {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, file.Name())
		}
		return nil, fmt.Errorf("lock %s: %w", file.Name(), err)
	}
	return &fileLock{file: file}, nil
}

func (l *fileLock) release() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}
