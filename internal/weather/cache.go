package weather

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/crop-advisory/internal/metrics"
	"github.com/i474232898/crop-advisory/internal/store"
)

// fetchTimeout bounds a single upstream call made on behalf of the cache.
const fetchTimeout = 30 * time.Second

// Cache fronts a single upstream Provider with a TTL cache keyed by
// coordinates. Concurrent misses for the same key share one upstream call.
type Cache struct {
	provider Provider
	entries  *store.MemoryStore[Snapshot]
	flight   singleflight.Group
}

// NewCache creates a new Cache.
func NewCache(provider Provider, entries *store.MemoryStore[Snapshot]) *Cache {
	return &Cache{
		provider: provider,
		entries:  entries,
	}
}

// GetWeather returns the cached snapshot for coords, fetching it from the
// provider on a miss. Failures are returned as *FetchError and never cached.
func (c *Cache) GetWeather(ctx context.Context, coords Coordinates) (Snapshot, error) {
	key := coords.Key()

	if snap, ok := c.entries.Get(key); ok {
		metrics.WeatherCacheLookups.WithLabelValues("hit").Inc()
		return snap, nil
	}
	metrics.WeatherCacheLookups.WithLabelValues("miss").Inc()

	return c.fetch(ctx, key, coords)
}

// Refresh fetches coords from the provider regardless of cache state and
// overwrites the entry on success.
func (c *Cache) Refresh(ctx context.Context, coords Coordinates) (Snapshot, error) {
	return c.fetch(ctx, coords.Key(), coords)
}

// fetch runs one upstream call per key. The call is detached from the caller's
// cancellation so a caller that gives up does not fail the others waiting on
// it; each caller still stops waiting when its own ctx ends.
func (c *Cache) fetch(ctx context.Context, key string, coords Coordinates) (Snapshot, error) {
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		snap, err := c.provider.Fetch(fetchCtx, coords)
		if err != nil {
			fe := asFetchError(c.provider.Name(), err)
			metrics.UpstreamRequests.WithLabelValues(c.provider.Name(), fe.Kind.String()).Inc()
			return nil, fe
		}
		metrics.UpstreamRequests.WithLabelValues(c.provider.Name(), "ok").Inc()

		if snap.FetchedAt.IsZero() {
			snap.FetchedAt = time.Now().UTC()
		}
		snap.Coordinates = coords
		c.entries.Set(key, snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, &FetchError{Provider: c.provider.Name(), Kind: KindUpstream, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			log.Printf("ERROR: weather fetch for %s failed: %v", key, res.Err)
			return Snapshot{}, res.Err
		}
		if res.Shared {
			log.Printf("DEBUG: weather fetch for %s shared with a concurrent request", key)
		}
		return res.Val.(Snapshot), nil
	}
}
