package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Compare-and-delete: only the owner token may remove the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Compare-and-extend for the watchdog.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

const (
	defaultRetryInterval = 50 * time.Millisecond
	defaultWatchdogLease = 30 * time.Second
)

// RedisLocker implements Locker with SET NX PX leases and owner tokens.
type RedisLocker struct {
	rdb           redis.UniversalClient
	log           zerolog.Logger
	retryInterval time.Duration
	watchdogLease time.Duration
}

// RedisOption customizes a RedisLocker.
type RedisOption func(*RedisLocker)

// WithRetryInterval sets the pause between attempts while waiting.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithWatchdogLease sets the TTL used for watchdog-renewed leases.
func WithWatchdogLease(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.watchdogLease = d
		}
	}
}

// NewRedisLocker returns a Locker over rdb.
func NewRedisLocker(rdb redis.UniversalClient, log zerolog.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		rdb:           rdb,
		log:           log.With().Str("component", "lock").Logger(),
		retryInterval: defaultRetryInterval,
		watchdogLease: defaultWatchdogLease,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (*Handle, error) {
	watchdog := lease <= 0
	ttl := lease
	if watchdog {
		ttl = l.watchdogLease
	}
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %q: %w", key, err)
		}
		if ok {
			h := &Handle{Key: key, Token: token, Lease: ttl, watchdog: watchdog}
			if watchdog {
				l.startWatchdog(h)
			}
			return h, nil
		}

		remaining := time.Until(deadline)
		if wait <= 0 || remaining <= 0 {
			return nil, ErrNotAcquired
		}
		pause := l.retryInterval
		if pause > remaining {
			pause = remaining
		}
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *RedisLocker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	if h.stop != nil {
		h.stop()
		<-h.done
	}
	n, err := releaseScript.Run(ctx, l.rdb, []string{h.Key}, h.Token).Int64()
	if err != nil {
		return fmt.Errorf("lock: release %q: %w", h.Key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// startWatchdog extends the lease every third of its TTL until Release
// stops it or the key is found to belong to someone else.
func (l *RedisLocker) startWatchdog(h *Handle) {
	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	h.done = make(chan struct{})

	every := h.Lease / 3
	if every <= 0 {
		every = time.Millisecond
	}
	go func() {
		defer close(h.done)
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				n, err := renewScript.Run(ctx, l.rdb, []string{h.Key}, h.Token, h.Lease.Milliseconds()).Int64()
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					l.log.Warn().Err(err).Str("key", h.Key).Msg("lease renewal failed")
					continue
				}
				if n == 0 {
					l.log.Warn().Str("key", h.Key).Msg("lease lost, watchdog stopping")
					return
				}
			}
		}
	}()
}
