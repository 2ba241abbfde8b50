// Package flock provides advisory locks over lock files through flock(2). A
// lock file records the PID of the process owning it, so that locks left
// behind by processes that are gone can be detected and taken over.
// Advisory locks are only honoured by processes that also take them.
package flock

// Exported methods hold the internal mutex. Unexported ones expect it to be
// held by the caller.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
)

var (
	AlreadyLockedErr = fmt.Errorf("flock is already locked")
	NotLockedErr     = fmt.Errorf("flock is not locked")
	ClosedErr        = fmt.Errorf("underlying file descriptor has already been closed")
	CannotLockErr    = fmt.Errorf("could not obtain lock")
)

// ownerSize is the length of the little-endian PID stored in lock files.
const ownerSize = 8

type Flock interface {
	// Lock attempts to lock the file without blocking.
	// Returns AlreadyLockedErr if the lock has already been acquired, ClosedErr
	// in case Close has already been called on this instance, or CannotLockErr
	// in case another descriptor holds the lock.
	Lock() error

	// Unlock releases the lock acquired by calling Lock. Returns NotLockedErr
	// in case the lock is not currently held, or ClosedErr in case Close has
	// already been called on this instance.
	Unlock() error

	// Close releases the lock when held, and closes the underlying file
	// descriptor. The instance cannot be used afterwards.
	Close() error

	// Remove closes the instance and removes the lock file.
	Remove() error

	// Owner returns the PID recorded in the lock file. ok is false when no
	// owner was recorded yet.
	Owner() (pid int, ok bool, err error)

	// SetOwner records pid as the owner of the lock file. The lock must be
	// held.
	SetOwner(pid int) error
}

// New returns a new Flock instance for a file at a given path, creating the
// file when required. The file is not locked until Lock is called.
func New(path string) (Flock, error) {
	oldMask := syscall.Umask(0)
	defer syscall.Umask(oldMask)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &flock{file: f, name: path}, nil
}

type flock struct {
	mu     sync.Mutex
	file   *os.File
	locked bool
	closed bool
	name   string
}

func (f *flock) Lock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.closed:
		return ClosedErr
	case f.locked:
		return AlreadyLockedErr
	}

	if err := syscall.Flock(int(f.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return errors.Join(CannotLockErr, err)
	}
	f.locked = true
	return nil
}

func (f *flock) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.closed:
		return ClosedErr
	case !f.locked:
		return NotLockedErr
	}
	return f.unlock()
}

func (f *flock) unlock() error {
	if f.closed || !f.locked {
		return nil
	}
	if err := syscall.Flock(int(f.file.Fd()), syscall.LOCK_UN); err != nil {
		return err
	}
	f.locked = false
	return nil
}

func (f *flock) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.close()
}

func (f *flock) close() error {
	if f.closed {
		return ClosedErr
	}
	if err := f.unlock(); err != nil {
		return err
	}
	if err := f.file.Close(); err != nil {
		return err
	}
	f.closed = true
	return nil
}

func (f *flock) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.close(); err != nil && !errors.Is(err, ClosedErr) {
		return err
	}
	if err := os.Remove(f.name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *flock) Owner() (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, false, ClosedErr
	}

	data := make([]byte, ownerSize)
	n, err := f.file.ReadAt(data, 0)
	switch {
	case n == 0 && (err == nil || err == io.EOF):
		return 0, false, nil
	case n < ownerSize:
		if err == nil || err == io.EOF {
			err = fmt.Errorf("lock file holds %d bytes, expected %d", n, ownerSize)
		}
		return 0, false, err
	}
	return int(binary.LittleEndian.Uint64(data)), true, nil
}

func (f *flock) SetOwner(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.closed:
		return ClosedErr
	case !f.locked:
		return NotLockedErr
	}

	data := binary.LittleEndian.AppendUint64(nil, uint64(pid))
	if _, err := f.file.WriteAt(data, 0); err != nil {
		return err
	}
	if err := f.file.Truncate(ownerSize); err != nil {
		return err
	}
	return f.file.Sync()
}
