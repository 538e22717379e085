package schemaregistry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// CachingClient adds a caching layer to a Client. Schema ids are immutable,
// so entries never expire. Queries for ids that have already been fetched do
// not reach the underlying client again, and concurrent queries for the same
// id are coalesced into a single fetch. Failed fetches are not cached.
//
// An optional SchemaStore adds a persistent second level: it is consulted
// before the network and written back to after successful fetches, so a
// process restart does not have to re-fetch every schema.
type CachingClient struct {
	client  Client
	store   SchemaStore
	logger  zerolog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	entries map[int]*cacheEntry
}

var _ Client = (*CachingClient)(nil)

type cacheEntry struct {
	schema Schema
	err    error
	wg     sync.WaitGroup
}

// CachingOption configures a CachingClient.
type CachingOption func(*CachingClient)

// WithStore attaches a persistent second-level store. Store failures are
// logged and otherwise ignored; the registry remains the source of truth.
func WithStore(store SchemaStore) CachingOption {
	return func(c *CachingClient) { c.store = store }
}

// WithCacheLogger sets the logger used to report store failures. The default
// discards everything.
func WithCacheLogger(logger zerolog.Logger) CachingOption {
	return func(c *CachingClient) { c.logger = logger }
}

// WithCacheMetrics attaches a metrics collector for hit and miss counts.
func WithCacheMetrics(metrics *Metrics) CachingOption {
	return func(c *CachingClient) { c.metrics = metrics }
}

// NewCachingClient wraps client with an in-memory cache.
func NewCachingClient(client Client, opts ...CachingOption) *CachingClient {
	c := &CachingClient{
		client:  client,
		logger:  zerolog.Nop(),
		entries: map[int]*cacheEntry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SchemaByID implements Client. The subject hint only matters on the first
// fetch of an id; once cached, the schema is returned regardless of subject,
// which is sound because registry content per id never varies.
func (c *CachingClient) SchemaByID(ctx context.Context, id int, subject string) (Schema, error) {
	return c.getOrLoad(id, func() (Schema, error) {
		return c.load(ctx, id, subject)
	})
}

func (c *CachingClient) getOrLoad(id int, loader func() (Schema, error)) (s Schema, err error) {
	// see if it's cached
	c.mu.RLock()
	cached, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		cached.wg.Wait()
		if cached.err == nil {
			c.metrics.observeCacheHit()
		}
		return cached.schema, cached.err
	}

	// must delegate and cache the result
	c.mu.Lock()
	// double-check, in case it was added concurrently while we were upgrading lock
	cached, ok = c.entries[id]
	if ok {
		c.mu.Unlock()
		cached.wg.Wait()
		if cached.err == nil {
			c.metrics.observeCacheHit()
		}
		return cached.schema, cached.err
	}
	e := &cacheEntry{}
	e.wg.Add(1)
	c.entries[id] = e
	c.mu.Unlock()

	c.metrics.observeCacheMiss()
	defer func() {
		if err != nil {
			// don't leave broken entry in the cache
			c.mu.Lock()
			delete(c.entries, id)
			c.mu.Unlock()
		}
		e.schema, e.err = s, err
		e.wg.Done()
	}()

	return loader()
}

func (c *CachingClient) load(ctx context.Context, id int, subject string) (Schema, error) {
	if c.store != nil {
		schema, ok, err := c.store.GetSchema(ctx, id)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Int("schema_id", id).Msg("schema store lookup failed")
		case ok:
			return schema, nil
		}
	}
	schema, err := c.client.SchemaByID(ctx, id, subject)
	if err != nil {
		return Schema{}, err
	}
	if c.store != nil {
		if err := c.store.PutSchema(ctx, schema); err != nil {
			c.logger.Warn().Err(err).Int("schema_id", id).Msg("schema store write failed")
		}
	}
	return schema, nil
}
