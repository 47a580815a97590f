package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a run lock.
type UnlockFunc func(ctx context.Context) error

// RunLocker serializes work on one run across engine replicas sharing a store.
// The session manager holds the lock for a whole step, from loading the
// checkpoint to saving the next one.
type RunLocker interface {
	// Lock blocks until the lock on runID is held or ctx is done.
	// The lock expires after ttl if the holder dies before calling the UnlockFunc.
	Lock(ctx context.Context, runID string, ttl time.Duration) (UnlockFunc, error)
}

// RunLockerFunc adapts a function to the RunLocker interface.
type RunLockerFunc func(ctx context.Context, runID string, ttl time.Duration) (UnlockFunc, error)

// Lock calls f.
func (f RunLockerFunc) Lock(ctx context.Context, runID string, ttl time.Duration) (UnlockFunc, error) {
	return f(ctx, runID, ttl)
}
