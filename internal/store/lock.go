package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"recall/internal/errs"
)

// lockPollInterval is how often a blocked lock acquisition retries while
// waiting for the configured busy timeout to expire.
const lockPollInterval = 25 * time.Millisecond

// DefaultBusyTimeout is used when a caller does not configure one.
const DefaultBusyTimeout = 5 * time.Second

// FileLock is the store's single-writer/multi-reader advisory lock
// (spec.md 4.1, 5). One FileLock instance corresponds to one store file;
// the lock file itself lives in the OS temp directory, keyed by the
// store path, so it survives independently of the store file.
//
// Grounded on internal/embed/lock.go's FileLock wrapper around
// github.com/gofrs/flock, extended with shared (reader) locking, a
// bounded busy-timeout retry loop, and best-effort pid recording for
// stale-lock diagnosis (spec.md 5: "the next process recognizes [a
// stale lock] by verifying the owning process is no longer alive" —
// the OS-level flock is already released automatically on process
// death; the recorded pid lets `doctor` and operators confirm why).
type FileLock struct {
	path   string
	fl     *flock.Flock
	locked bool
	shared bool
}

// lockPathFor returns the deterministic lock file path for a store file,
// placed in the system temp directory per spec.md 4.1.
func lockPathFor(storePath string) string {
	abs, err := filepath.Abs(storePath)
	if err != nil {
		abs = storePath
	}
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("recall-%x.lock", sum[:8])
	return filepath.Join(os.TempDir(), name)
}

// NewFileLock creates a lock for the store at storePath.
func NewFileLock(storePath string) *FileLock {
	path := lockPathFor(storePath)
	return &FileLock{path: path, fl: flock.New(path)}
}

// Path returns the lock file's path.
func (l *FileLock) Path() string { return l.path }

// AcquireExclusive blocks (subject to ctx and busyTimeout) until an
// exclusive (writer) lock is held, or returns errs.KindLockBusy.
func (l *FileLock) AcquireExclusive(ctx context.Context, busyTimeout time.Duration) error {
	err := l.acquire(ctx, busyTimeout, func() (bool, error) { return l.fl.TryLock() })
	if err != nil {
		return err
	}
	l.locked = true
	l.shared = false
	l.writePid()
	return nil
}

// AcquireShared blocks (subject to ctx and busyTimeout) until a shared
// (reader) lock is held, or returns errs.KindLockBusy.
func (l *FileLock) AcquireShared(ctx context.Context, busyTimeout time.Duration) error {
	err := l.acquire(ctx, busyTimeout, func() (bool, error) { return l.fl.TryRLock() })
	if err != nil {
		return err
	}
	l.locked = true
	l.shared = true
	return nil
}

func (l *FileLock) acquire(ctx context.Context, busyTimeout time.Duration, tryOnce func() (bool, error)) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errs.IO("failed to create lock directory", err)
	}

	deadline := time.Now().Add(busyTimeout)
	for {
		ok, err := tryOnce()
		if err != nil {
			return errs.IO("failed to acquire store lock", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.New(errs.KindLockBusy, "store lock not acquired within busy timeout").
				WithDetail("lock_path", l.path)
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindLockBusy, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// Release releases the lock, clearing any recorded pid.
func (l *FileLock) Release() error {
	if !l.locked {
		return nil
	}
	if !l.shared {
		_ = os.Remove(l.path)
	}
	l.locked = false
	if err := l.fl.Unlock(); err != nil {
		return errs.IO("failed to release store lock", err)
	}
	return nil
}

// IsLocked reports whether this instance currently holds the lock.
func (l *FileLock) IsLocked() bool { return l.locked }

func (l *FileLock) writePid() {
	_ = os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// OwningPID reads the pid recorded by the current exclusive lock holder,
// if any. Used by `doctor` to report on a held or stale lock.
func OwningPID(lockPath string) (int, bool) {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// ProcessAlive reports whether pid refers to a live process. Best-effort:
// on POSIX, FindProcess always succeeds, so liveness is determined by
// signaling it with signal 0.
func ProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
