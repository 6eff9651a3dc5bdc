package cache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dunamismax/imagekit/internal/domain"
)

// Stats is the /stats/cache response: the backend's occupancy plus
// the hit/miss counts this process has observed since it started.
type Stats struct {
	Entries int64 `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache wraps a Backend with single-flight coordination so that
// concurrent misses for the same key produce at most one call to
// Produce. Readers awaiting an in-flight producer observe its result
// rather than racing a redundant fetch/encode.
type Cache struct {
	backend Backend
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps backend with single-flight coordination.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

func (c *Cache) Get(ctx context.Context, key string) (Artifact, bool, error) {
	artifact, ok, err := c.backend.Get(ctx, key)
	if err == nil {
		if ok {
			c.hits.Add(1)
		} else {
			c.misses.Add(1)
		}
	}
	return artifact, ok, err
}

// Stats combines the backend's occupancy snapshot with this process's
// accumulated hit/miss counts.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	backendStats, err := c.backend.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Entries: backendStats.Entries,
		Bytes:   backendStats.Bytes,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

func (c *Cache) Put(ctx context.Context, key string, data []byte, format domain.Format) error {
	return c.backend.Put(ctx, key, data, format)
}

// Produce implements the cache-miss path: on a miss for key, fn runs
// at most once among concurrent callers; all callers for that key
// observe fn's single result, satisfying the at-most-one-producer
// guarantee. A failing producer is not retained, so a later call may
// retry.
func (c *Cache) Produce(ctx context.Context, key string, fn func() (Artifact, error)) (Artifact, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		artifact, err := fn()
		if err != nil {
			return Artifact{}, err
		}
		if err := c.backend.Put(ctx, key, artifact.Bytes, artifact.Format); err != nil {
			return Artifact{}, err
		}
		return artifact, nil
	})
	if err != nil {
		return Artifact{}, err
	}
	return v.(Artifact), nil
}
