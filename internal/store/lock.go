package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/amishk599/skillradar/internal/model"
)

// RunLock serializes pipeline runs that share a baseline, across processes.
type RunLock struct {
	fl      *flock.Flock
	timeout time.Duration
}

// NewRunLock returns a lock backed by the file at path. Lock waits at most
// timeout for a competing run to finish; zero means try once.
func NewRunLock(path string, timeout time.Duration) *RunLock {
	return &RunLock{fl: flock.New(path), timeout: timeout}
}

// Lock acquires the exclusive lock, returning model.ErrLocked if another run
// still holds it after the timeout.
func (l *RunLock) Lock(ctx context.Context) error {
	if l.timeout <= 0 {
		ok, err := l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring run lock %s: %w", l.fl.Path(), err)
		}
		if !ok {
			return model.ErrLocked
		}
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	ok, err := l.fl.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return model.ErrLocked
		}
		return fmt.Errorf("acquiring run lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return model.ErrLocked
	}
	return nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	return l.fl.Unlock()
}
