package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	logx "github.com/linksort/linksort-chat/pkg/logger"
)

// FetchFunc loads the authoritative value of a key from the API.
type FetchFunc func(ctx context.Context) (any, error)

// QueryCache is the process-wide cache of server state. Values are stored as
// whole JSON documents: callers replace or invalidate a key, never patch it.
type QueryCache struct {
	store Store
	group singleflight.Group
	// epoch changes on every invalidation so a fetch that started before an
	// invalidation does not write its now-stale result back.
	epoch atomic.Uint64

	mu     sync.RWMutex
	subs   map[int]func(Partition)
	nextID int
}

func New(store Store) *QueryCache {
	return &QueryCache{store: store, subs: map[int]func(Partition){}}
}

// Load decodes the cached value of key into dst and reports whether it was present.
func (c *QueryCache) Load(ctx context.Context, key string, dst any) (bool, error) {
	b, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		return false, nil
	}
	return true, nil
}

// Put replaces the value of key.
func (c *QueryCache) Put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	return c.store.Set(ctx, key, b)
}

// Fetch reads key through the cache. Concurrent misses for the same key share
// one call to fetch, which runs detached from the cancellation of any single
// caller; each caller still stops waiting when its own ctx is done.
func (c *QueryCache) Fetch(ctx context.Context, key string, dst any, fetch FetchFunc) error {
	if ok, err := c.Load(ctx, key, dst); err != nil {
		return err
	} else if ok {
		return nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		epoch := c.epoch.Load()
		val, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("marshal cache value %s: %w", key, err)
		}
		c.storeFetched(flightCtx, key, b, epoch)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dst)
	}
}

// storeFetched writes a value fetched at epoch unless an invalidation happened
// since. An invalidation that lands during the write removes the value again.
func (c *QueryCache) storeFetched(ctx context.Context, key string, b []byte, epoch uint64) {
	if c.epoch.Load() != epoch {
		return
	}
	if err := c.store.Set(ctx, key, b); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("failed to store fetched value")
		return
	}
	if c.epoch.Load() == epoch {
		return
	}
	if _, err := c.store.DeletePartition(ctx, Partition(key)); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("failed to drop stale fetched value")
	}
}

// Invalidate drops every key of the given partitions and notifies subscribers.
// All partitions are attempted even when one fails.
func (c *QueryCache) Invalidate(ctx context.Context, partitions ...Partition) error {
	if len(partitions) == 0 {
		return nil
	}
	c.epoch.Add(1)

	var errs []error
	for _, p := range partitions {
		n, err := c.store.DeletePartition(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", p, err))
			continue
		}
		logx.Debug().Str("partition", p.String()).Int("keys", n).Msg("cache partition invalidated")
		c.notify(p)
	}
	return errors.Join(errs...)
}

// Subscribe registers fn for invalidation notifications and returns a function
// that removes it. fn runs on the invalidating goroutine.
func (c *QueryCache) Subscribe(fn func(Partition)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *QueryCache) notify(p Partition) {
	c.mu.RLock()
	fns := make([]func(Partition), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(p)
	}
}
