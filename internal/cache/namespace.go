package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Tombstone is the stored payload for a key confirmed absent in storage.
// It is not valid JSON, so it can never collide with an encoded value.
const Tombstone = "__absent__"

// sharedLoadTimeout bounds a load shared by concurrent misses. The load runs
// detached from any single caller's cancellation.
const sharedLoadTimeout = 10 * time.Second

var (
	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by namespace and result (hit, negative, miss, error).",
		},
		[]string{"namespace", "result"},
	)
	cacheLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_storage_loads_total",
			Help: "Storage reads performed on cache misses.",
		},
		[]string{"namespace"},
	)
)

func init() {
	prometheus.MustRegister(cacheRequests, cacheLoads)
}

// TTL is the expiry policy of a namespace. Values live Base plus a random
// share of Jitter; tombstones live Negative.
type TTL struct {
	Base     time.Duration
	Jitter   time.Duration
	Negative time.Duration
}

// Validate checks that tombstones expire before any value can.
func (t TTL) Validate() error {
	if t.Base <= 0 {
		return errors.New("cache: base TTL must be positive")
	}
	if t.Jitter < 0 {
		return errors.New("cache: jitter must not be negative")
	}
	if t.Negative <= 0 || t.Negative >= t.Base {
		return fmt.Errorf("cache: negative TTL %s must be in (0, %s)", t.Negative, t.Base)
	}
	return nil
}

// LoadFunc reads one entity from storage. found=false means confirmed absent.
type LoadFunc[K comparable, V any] func(ctx context.Context, id K) (v V, found bool, err error)

// LoadManyFunc reads a batch from storage, returning only ids that exist.
type LoadManyFunc[K comparable, V any] func(ctx context.Context, ids []K) (map[K]V, error)

// Namespace is a typed cache-aside view over a Store.
type Namespace[K comparable, V any] struct {
	name   string
	prefix string
	store  Store
	ttl    TTL
	log    zerolog.Logger
	group  singleflight.Group
}

// NewNamespace builds a namespace. Keys are prefix + fmt.Sprint(id).
func NewNamespace[K comparable, V any](name, prefix string, store Store, ttl TTL, log zerolog.Logger) (*Namespace[K, V], error) {
	if err := ttl.Validate(); err != nil {
		return nil, fmt.Errorf("namespace %s: %w", name, err)
	}
	return &Namespace[K, V]{
		name:   name,
		prefix: prefix,
		store:  store,
		ttl:    ttl,
		log:    log.With().Str("namespace", name).Logger(),
	}, nil
}

// Name returns the metrics/logging label of the namespace.
func (n *Namespace[K, V]) Name() string { return n.name }

// Key returns the store key for id.
func (n *Namespace[K, V]) Key(id K) string { return n.prefix + fmt.Sprint(id) }

// Get returns the cached value for id, reading through to load on a miss.
//
// A tombstone answers "absent" without calling load. A failing store is
// bypassed: the value comes from load and write-back errors are only logged.
// Concurrent misses for the same key share one load.
func (n *Namespace[K, V]) Get(ctx context.Context, id K, load LoadFunc[K, V]) (V, bool, error) {
	var zero V
	key := n.Key(id)

	raw, hit, err := n.store.Get(ctx, key)
	switch {
	case err != nil:
		cacheRequests.WithLabelValues(n.name, "error").Inc()
		n.log.Warn().Err(err).Str("key", key).Msg("cache read failed, reading storage")
	case hit && string(raw) == Tombstone:
		cacheRequests.WithLabelValues(n.name, "negative").Inc()
		return zero, false, nil
	case hit:
		var v V
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			cacheRequests.WithLabelValues(n.name, "hit").Inc()
			return v, true, nil
		}
		n.log.Warn().Str("key", key).Msg("undecodable cache entry, reloading")
		cacheRequests.WithLabelValues(n.name, "miss").Inc()
	default:
		cacheRequests.WithLabelValues(n.name, "miss").Inc()
	}

	type result struct {
		v     V
		found bool
	}
	ch := n.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		cacheLoads.WithLabelValues(n.name).Inc()
		v, found, lerr := load(lctx, id)
		if lerr != nil {
			return nil, lerr
		}
		n.fill(lctx, key, v, found)
		return result{v: v, found: found}, nil
	})
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result)
		return r.v, r.found, nil
	}
}

// GetMany resolves ids with one multi-key read and one batch load for the
// misses. The result holds only ids that exist.
func (n *Namespace[K, V]) GetMany(ctx context.Context, ids []K, loadMany LoadManyFunc[K, V]) (map[K]V, error) {
	out := make(map[K]V, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	uniq := make([]K, 0, len(ids))
	seen := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	keys := make([]string, len(uniq))
	for i, id := range uniq {
		keys[i] = n.Key(id)
	}

	slots, err := n.store.MGet(ctx, keys)
	if err != nil {
		cacheRequests.WithLabelValues(n.name, "error").Add(float64(len(uniq)))
		n.log.Warn().Err(err).Int("keys", len(keys)).Msg("cache batch read failed, reading storage")
		slots = make([][]byte, len(keys))
	}

	var misses []K
	for i, id := range uniq {
		raw := slots[i]
		switch {
		case raw == nil:
		case string(raw) == Tombstone:
			cacheRequests.WithLabelValues(n.name, "negative").Inc()
			continue
		default:
			var v V
			if json.Unmarshal(raw, &v) == nil {
				cacheRequests.WithLabelValues(n.name, "hit").Inc()
				out[id] = v
				continue
			}
		}
		if err == nil {
			cacheRequests.WithLabelValues(n.name, "miss").Inc()
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	cacheLoads.WithLabelValues(n.name).Inc()
	loaded, err := loadMany(ctx, misses)
	if err != nil {
		return nil, err
	}

	kv := make(map[string][]byte, len(misses))
	ttls := make(map[string]time.Duration, len(misses))
	for _, id := range misses {
		key := n.Key(id)
		v, ok := loaded[id]
		if !ok {
			kv[key] = []byte(Tombstone)
			ttls[key] = n.ttl.Negative
			continue
		}
		out[id] = v
		b, merr := json.Marshal(v)
		if merr != nil {
			n.log.Warn().Err(merr).Str("key", key).Msg("cache encode failed")
			continue
		}
		kv[key] = b
		ttls[key] = n.positiveTTL()
	}
	n.fillMany(ctx, kv, ttls)
	return out, nil
}

// Invalidate deletes the entries for ids. Absent keys are ignored.
func (n *Namespace[K, V]) Invalidate(ctx context.Context, ids ...K) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = n.Key(id)
	}
	return n.store.Del(ctx, keys...)
}

func (n *Namespace[K, V]) fill(ctx context.Context, key string, v V, found bool) {
	var (
		b   []byte
		ttl time.Duration
	)
	if found {
		enc, err := json.Marshal(v)
		if err != nil {
			n.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
			return
		}
		b, ttl = enc, n.positiveTTL()
	} else {
		b, ttl = []byte(Tombstone), n.ttl.Negative
	}
	if err := n.store.Set(ctx, key, b, ttl); err != nil {
		n.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// fillMany writes the batch and then applies per-key expiry. A key that
// cannot be given a TTL is deleted so it never outlives its policy.
func (n *Namespace[K, V]) fillMany(ctx context.Context, kv map[string][]byte, ttls map[string]time.Duration) {
	if len(kv) == 0 {
		return
	}
	if err := n.store.MSet(ctx, kv); err != nil {
		n.log.Warn().Err(err).Int("keys", len(kv)).Msg("cache batch write failed")
		return
	}
	for key, ttl := range ttls {
		if err := n.store.Expire(ctx, key, ttl); err != nil {
			n.log.Warn().Err(err).Str("key", key).Msg("cache expire failed")
			_ = n.store.Del(ctx, key)
		}
	}
}

func (n *Namespace[K, V]) positiveTTL() time.Duration {
	if n.ttl.Jitter <= 0 {
		return n.ttl.Base
	}
	return n.ttl.Base + time.Duration(rand.Int64N(int64(n.ttl.Jitter)))
}
