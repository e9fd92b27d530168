package runlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrHeld indicates the lock is held by another live process.
var ErrHeld = errors.New("run lock held by another process")

// Holder describes the process that owns the lock.
type Holder struct {
	PID         int       `json:"pid"`
	Hostname    string    `json:"hostname"`
	RunID       string    `json:"run_id"`
	AcquiredAt  time.Time `json:"acquired_at"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
}

// Lock is a single-writer run lock backed by flock plus a holder info file.
type Lock struct {
	path     string
	infoPath string
	fl       *flock.Flock
	holder   Holder
}

// New creates a lock at the given path. The holder info file sits next to it.
func New(path string) *Lock {
	return &Lock{
		path:     path,
		infoPath: path + ".info",
		fl:       flock.New(path),
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock for the given run, failing with ErrHeld when
// another live process owns it. A holder whose process is gone or whose
// heartbeat is older than staleAfter is treated as dead and displaced.
func (l *Lock) Acquire(ctx context.Context, runID string, staleAfter time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		holder, readErr := l.ReadHolder()
		if readErr == nil && holder != nil && holderAlive(holder, staleAfter) {
			return fmt.Errorf("%w: pid %d on %s since %s", ErrHeld, holder.PID, holder.Hostname, holder.AcquiredAt.Format(time.RFC3339))
		}
		// The flock call itself failed while the recorded holder looks
		// dead. flock releases on process exit, so retry once.
		ok, err = l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return ErrHeld
		}
	}

	hostname, _ := os.Hostname()
	l.holder = Holder{
		PID:         os.Getpid(),
		Hostname:    hostname,
		RunID:       runID,
		AcquiredAt:  time.Now().UTC(),
		HeartbeatAt: time.Now().UTC(),
	}
	if err := l.writeHolder(); err != nil {
		_ = l.fl.Unlock()
		return err
	}
	return nil
}

// Heartbeat refreshes the holder info file timestamp.
func (l *Lock) Heartbeat() error {
	l.holder.HeartbeatAt = time.Now().UTC()
	return l.writeHolder()
}

// KeepAlive refreshes the heartbeat on the given interval until the context
// is cancelled. It is meant to run in its own goroutine for the duration of
// a pipeline run.
func (l *Lock) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.Heartbeat()
		}
	}
}

// Release drops the lock and removes the holder info file.
func (l *Lock) Release() error {
	if err := os.Remove(l.infoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove holder info: %w", err)
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// ReadHolder returns the recorded holder, or nil when no info file exists.
func (l *Lock) ReadHolder() (*Holder, error) {
	data, err := os.ReadFile(l.infoPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read holder info: %w", err)
	}
	var holder Holder
	if err := json.Unmarshal(data, &holder); err != nil {
		return nil, fmt.Errorf("parse holder info: %w", err)
	}
	return &holder, nil
}

func (l *Lock) writeHolder() error {
	data, err := json.Marshal(l.holder)
	if err != nil {
		return fmt.Errorf("encode holder info: %w", err)
	}
	if err := os.WriteFile(l.infoPath, data, 0o644); err != nil {
		return fmt.Errorf("write holder info: %w", err)
	}
	return nil
}

// holderAlive reports whether the recorded holder still looks like a live
// owner: its process answers signal 0 and its heartbeat is recent enough.
func holderAlive(holder *Holder, staleAfter time.Duration) bool {
	if holder.PID <= 0 {
		return false
	}
	if err := unix.Kill(holder.PID, 0); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return false
		}
		// EPERM means the process exists but belongs to another user.
	}
	if staleAfter > 0 && !holder.HeartbeatAt.IsZero() && time.Since(holder.HeartbeatAt) > staleAfter {
		return false
	}
	return true
}
