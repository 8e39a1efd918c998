package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const lockFileName = "flows.lock"

// FileLock provides cross-process mutual exclusion over the flow state file
// using flock(2), so a running scheduler and a CLI reader never see a torn
// write.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock on dir/flows.lock.
func NewFileLock(dir string) *FileLock {
	return &FileLock{path: filepath.Join(dir, lockFileName)}
}

// Lock blocks until the exclusive lock is held.
func (fl *FileLock) Lock() error {
	return fl.lock(syscall.LOCK_EX)
}

// RLock blocks until a shared lock is held.
func (fl *FileLock) RLock() error {
	return fl.lock(syscall.LOCK_SH)
}

func (fl *FileLock) lock(how int) error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: %w", err)
	}
	fl.file = f
	return nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}
	defer func() { fl.file = nil }()

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		return fmt.Errorf("funlock: %w", err)
	}
	return fl.file.Close()
}
