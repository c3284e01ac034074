// Package jobroles caches the backend's role taxonomy and supplies a local
// fallback when it cannot be fetched.
package jobroles

import (
	"context"
	"slices"
	"sync"

	"resumewizard/internal/errors"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the role list from its source of truth
type FetchFunc func(ctx context.Context, token string) ([]string, error)

// Cache is a single-slot cache with at most one fetch in flight. A value
// stays until Invalidate is called; failures are never stored.
type Cache struct {
	fetch  FetchFunc
	logger *errors.Logger

	group singleflight.Group

	mu     sync.RWMutex
	roles  []string
	cached bool
	// generation counts invalidations; a fetch started before one is not stored
	generation uint64
}

// NewCache creates an empty cache
func NewCache(fetch FetchFunc, logger *errors.Logger) *Cache {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Cache{fetch: fetch, logger: logger}
}

// Get returns the cached roles, fetching them on a miss. Concurrent misses
// share one fetch and receive equal slices. The first caller's token is the
// one sent upstream.
func (c *Cache) Get(ctx context.Context, token string) (roles []string, hit bool, err error) {
	if roles, ok := c.load(); ok {
		return roles, true, nil
	}

	// The shared fetch must outlive any single waiter's cancellation
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("roles", func() (any, error) {
		if roles, ok := c.load(); ok {
			return roles, nil
		}
		gen := c.currentGeneration()
		roles, err := c.fetch(shared, token)
		if err != nil {
			return nil, err
		}
		if roles == nil {
			roles = []string{}
		}
		if c.store(roles, gen) {
			c.logger.Debug("Job roles cached", "count", len(roles))
		} else {
			c.logger.Debug("Job roles invalidated during fetch, not caching")
		}
		return roles, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return slices.Clone(res.Val.([]string)), false, nil
	}
}

// Invalidate clears the slot so the next Get fetches again. A fetch already
// in flight still answers its waiters but is not cached.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.roles = nil
	c.cached = false
	c.generation++
	c.mu.Unlock()
	c.group.Forget("roles")
}

// Cached reports whether a value is held
func (c *Cache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

func (c *Cache) load() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.cached {
		return nil, false
	}
	return slices.Clone(c.roles), true
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Cache) store(roles []string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.roles = slices.Clone(roles)
	c.cached = true
	return true
}
