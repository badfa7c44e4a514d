// Package lock provides named, leased mutual exclusion backed by a shared
// lock service, and Guard, which wraps a call so it only runs while the
// lease is held.
package lock

import (
	"context"
	"errors"
	"time"
)

// DefaultMessage is the human readable text carried by a BusyError when the
// caller did not supply one.
const DefaultMessage = "operation too frequent, please try again later"

var (
	// ErrTooBusy reports that a guarded call could not obtain its lease
	// within the wait budget. Match it with errors.Is; the concrete value is
	// a *BusyError.
	ErrTooBusy = errors.New("too busy")

	// ErrNotAcquired is returned by Locker.TryAcquire when the key stayed
	// held by another owner for the whole wait budget.
	ErrNotAcquired = errors.New("lock: not acquired")

	// ErrLeaseLost is returned by Locker.Release when the lease had already
	// expired or been taken over by another owner.
	ErrLeaseLost = errors.New("lock: lease no longer owned")
)

// BusyError is the contention error surfaced by Guard.
type BusyError struct {
	Key     string
	Message string
}

func (e *BusyError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrTooBusy) hold for any *BusyError.
func (e *BusyError) Is(target error) bool { return target == ErrTooBusy }

// Handle is an acquired lease. It is a coordination token only.
type Handle struct {
	Key   string
	Token string
	// Lease is the TTL set on the key. With watchdog renewal it is the
	// renewal window rather than a hard bound.
	Lease time.Duration

	watchdog bool
	stop     context.CancelFunc
	done     chan struct{}
}

// Locker is the shared lock service boundary.
//
// TryAcquire makes one attempt when wait is zero and otherwise retries until
// wait elapses, returning ErrNotAcquired on timeout. A lease <= 0 asks for a
// watchdog-renewed lease that lives until Release. Any other error means the
// lock service itself failed.
type Locker interface {
	TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (*Handle, error)
	Release(ctx context.Context, h *Handle) error
}
