// Package cache implements a stale-while-revalidate cache for backend
// collections.
//
// FRESHNESS:
// An entry younger than StaleAfter is served as is. An older entry is still
// served, immediately, and one background fetch replaces it. A failed
// revalidation leaves the old entry in place, so once a key has had a value
// it never goes back to "nothing to show".
//
// Only Get, Refresh and their background fetches write to the store. There is
// no Set on SWR: values enter the cache through a fetch or not at all.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/hackhub/internal/metrics"
)

// DefaultStaleAfter is how long a fetched value counts as fresh.
const DefaultStaleAfter = 5 * time.Minute

// FetchFunc loads the current value for a key from its source.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Status is what the cache knows about a key without fetching it.
type Status struct {
	Value   []byte
	Found   bool  // a value has been fetched at least once
	Stale   bool  // Found and older than StaleAfter
	Pending bool  // a fetch for the key is in flight
	Err     error // outcome of the most recent fetch, nil on success
}

// SWR is safe for concurrent use.
type SWR struct {
	store      Store
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	group singleflight.Group
	bg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]int
	errs    map[string]error
}

// New creates an SWR over store. staleAfter <= 0 means DefaultStaleAfter.
func New(store Store, staleAfter time.Duration, logger *slog.Logger) *SWR {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &SWR{
		store:      store,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
		pending:    make(map[string]int),
		errs:       make(map[string]error),
	}
}

// Get returns the value for key. On a miss it waits for the fetch, or for ctx
// to end; on a stale hit it returns the stale value and revalidates in the
// background.
func (c *SWR) Get(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	e, found := c.lookup(ctx, key)
	switch {
	case !found:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		// The shared fetch serves every waiter, so no single caller's
		// cancellation may abort it.
		ch := c.group.DoChan(key, func() (any, error) {
			return c.fetchAndStore(context.WithoutCancel(ctx), key, fetch)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}

	case c.isStale(e):
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		c.revalidate(ctx, key, fetch)
		return e.Value, nil

	default:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e.Value, nil
	}
}

// Refresh never blocks on the source. It starts a background fetch when the
// key is missing or stale and returns the status as of the call, with
// Pending set when a fetch is running.
func (c *SWR) Refresh(ctx context.Context, key string, fetch FetchFunc) Status {
	st := c.Peek(ctx, key)
	if !st.Found || st.Stale {
		c.revalidate(ctx, key, fetch)
		st.Pending = true
	}
	return st
}

// Peek reports the cached state of key without fetching.
func (c *SWR) Peek(ctx context.Context, key string) Status {
	e, found := c.lookup(ctx, key)

	c.mu.Lock()
	st := Status{
		Pending: c.pending[key] > 0,
		Err:     c.errs[key],
	}
	c.mu.Unlock()

	if found {
		st.Value = e.Value
		st.Found = true
		st.Stale = c.isStale(e)
	}
	return st
}

// Wait blocks until every background revalidation started so far is done.
func (c *SWR) Wait() {
	c.bg.Wait()
}

// revalidate fetches key in the background. Concurrent requests for the same
// key share one fetch. The fetch outlives the request that triggered it.
func (c *SWR) revalidate(ctx context.Context, key string, fetch FetchFunc) {
	bgCtx := context.WithoutCancel(ctx)
	c.markPending(key, 1)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		defer c.markPending(key, -1)

		_, err, _ := c.group.Do(key, func() (any, error) {
			return c.fetchAndStore(bgCtx, key, fetch)
		})
		if err != nil {
			metrics.CacheRevalidations.WithLabelValues("failure").Inc()
			c.logger.Warn("cache revalidation failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return
		}
		metrics.CacheRevalidations.WithLabelValues("success").Inc()
	}()
}

func (c *SWR) fetchAndStore(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	c.markPending(key, 1)
	defer c.markPending(key, -1)

	v, err := fetch(ctx)

	c.mu.Lock()
	c.errs[key] = err
	if err == nil {
		delete(c.errs, key)
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, key, Entry{Value: v, FetchedAt: c.now()}); err != nil {
		// The caller still gets the fresh value; only sharing it failed.
		c.logger.Error("cache store write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}

func (c *SWR) lookup(ctx context.Context, key string) (Entry, bool) {
	e, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache store read failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Entry{}, false
	}
	return e, found
}

func (c *SWR) isStale(e Entry) bool {
	return c.now().Sub(e.FetchedAt) >= c.staleAfter
}

func (c *SWR) markPending(key string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key] += delta
	if c.pending[key] <= 0 {
		delete(c.pending, key)
	}
}
