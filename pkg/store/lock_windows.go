//go:build windows

package store

import (
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/windows"
)

// fileLock is an exclusive lock over the whole byte range of an open log file.
type fileLock struct {
	file *os.File
}

func lockFile(file *os.File) (*fileLock, error) {
	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(file.Fd()), flags, 0, math.MaxUint32, math.MaxUint32, ol); err != nil {
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, file.Name())
		}
		return nil, fmt.Errorf("lock %s: %w", file.Name(), err)
	}
	return &fileLock{file: file}, nil
}

func (l *fileLock) release() error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, math.MaxUint32, math.MaxUint32, ol)
}
