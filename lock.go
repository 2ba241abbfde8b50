package btrieve

import (
	errs "errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/heyvito/btrieve/internal/flock"
	"github.com/heyvito/btrieve/internal/procutils"
)

const lockFileName = "BTRIEVE.LCK"

// dirLock guards a data directory against concurrent use by other processes.
// The lock file holds the PID of its owner, so that a lock left behind by a
// process that is gone can be taken over.
type dirLock struct {
	flock flock.Flock
}

// acquireDirLock locks dir. Returns the PID of another process holding the
// lock, or -1 in case the lock was obtained.
func acquireDirLock(dir string) (*dirLock, int, error) {
	f, err := flock.New(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, -1, err
	}
	l := &dirLock{flock: f}
	if err = f.Lock(); err != nil {
		_ = f.Close()
		return nil, -1, err
	}
	pid, err := l.checkOwner()
	if err != nil || pid != -1 {
		_ = f.Close()
		return nil, pid, err
	}
	return l, -1, nil
}

func (l *dirLock) fail(err error) (int, error) {
	if unlockErr := l.flock.Unlock(); unlockErr != nil {
		return -1, errs.Join(err, unlockErr)
	}
	return -1, err
}

func (l *dirLock) checkOwner() (int, error) {
	pid, ok, err := l.flock.Owner()
	if err != nil {
		return l.fail(fmt.Errorf("failed reading lock file: %w", err))
	}
	if !ok || pid == os.Getpid() {
		return l.claim()
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil && errs.Is(err, process.ErrorProcessNotRunning) {
		return l.claim()
	} else if err != nil {
		return l.fail(fmt.Errorf("failed querying pid %d: %w", pid, err))
	}

	running, err := proc.IsRunning()
	if err != nil {
		return l.fail(fmt.Errorf("failed querying pid %d status: %w", pid, err))
	}
	if !running {
		return l.claim()
	}

	cmd, err := proc.CmdlineSlice()
	if err != nil && !errs.Is(err, syscall.EINVAL) {
		return l.fail(fmt.Errorf("failed querying pid %d cmdline: %w", pid, err))
	}

	// An empty command line usually means a zombie process.
	if len(cmd) == 0 {
		defunct, err := procutils.IsDefunct(pid)
		if err != nil {
			return l.fail(fmt.Errorf("failed querying pid %d state: %w", pid, err))
		}
		if defunct {
			return l.claim()
		}
		return l.fail(fmt.Errorf("lock is being held by a possible zombie process %d with no zombie flag set", pid))
	}

	currentExec, err := os.Executable()
	if err != nil {
		return l.fail(fmt.Errorf("failed querying current executable path: %w", err))
	}

	// Another process running our executable owns the directory. Anything
	// else is a recycled PID.
	if cmd[0] == currentExec {
		return pid, nil
	}
	return l.claim()
}

func (l *dirLock) claim() (int, error) {
	if err := l.flock.SetOwner(os.Getpid()); err != nil {
		return l.fail(fmt.Errorf("failed writing current pid to lockfile: %w", err))
	}
	return -1, nil
}

func (l *dirLock) release() error { return l.flock.Remove() }
