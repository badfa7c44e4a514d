package lock

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var lockAcquire = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lock_acquire_total",
		Help: "Guarded lock acquisitions by result (acquired, busy, error).",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(lockAcquire)
}

// Options configures one guarded call.
type Options struct {
	// Wait is the acquisition budget. Zero means a single non-blocking try.
	Wait time.Duration
	// Lease is the lease TTL. Zero or negative selects watchdog renewal.
	Lease time.Duration
	// Message is returned to the caller on contention.
	Message string
	// Log receives release failures. Nil disables them.
	Log *zerolog.Logger
}

// Guard runs fn while holding the lease on key and releases it afterwards,
// whatever fn returned. The key must be fully resolved by the caller.
//
// Contention yields a *BusyError (errors.Is(err, ErrTooBusy)). A failing
// lock service is returned as is and fn does not run.
func Guard[T any](ctx context.Context, l Locker, key string, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	h, err := l.TryAcquire(ctx, key, opts.Wait, opts.Lease)
	switch {
	case errors.Is(err, ErrNotAcquired):
		lockAcquire.WithLabelValues("busy").Inc()
		msg := opts.Message
		if msg == "" {
			msg = DefaultMessage
		}
		return zero, &BusyError{Key: key, Message: msg}
	case err != nil:
		lockAcquire.WithLabelValues("error").Inc()
		return zero, err
	}
	lockAcquire.WithLabelValues("acquired").Inc()

	defer func() {
		// release must outlive a cancelled request context
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if rerr := l.Release(rctx, h); rerr != nil && opts.Log != nil {
			opts.Log.Warn().Err(rerr).Str("key", key).Msg("lock release")
		}
	}()

	return fn(ctx)
}

// Do is Guard for calls without a result value.
func Do(ctx context.Context, l Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	_, err := Guard(ctx, l, key, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
