package typename

import (
	"context"
	"sync"
)

// CachingResolver memoizes successful resolutions by schema id. Resolution
// is deterministic and ids are immutable, so entries never expire. Failed
// resolutions are not cached; a transient registry outage does not poison
// an id.
//
// Concurrent first resolutions of the same id may both reach the underlying
// resolver; they compute the same name, and the network layer below is
// expected to coalesce duplicate fetches.
type CachingResolver struct {
	resolver NameResolver

	mu    sync.RWMutex
	names map[int]string
}

var _ NameResolver = (*CachingResolver)(nil)

// NewCachingResolver wraps resolver with an id-to-name cache.
func NewCachingResolver(resolver NameResolver) *CachingResolver {
	return &CachingResolver{
		resolver: resolver,
		names:    map[int]string{},
	}
}

// Resolve implements NameResolver.
func (c *CachingResolver) Resolve(ctx context.Context, id int) (string, error) {
	c.mu.RLock()
	name, ok := c.names[id]
	c.mu.RUnlock()
	if ok {
		return name, nil
	}

	name, err := c.resolver.Resolve(ctx, id)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
	return name, nil
}

// Len returns the number of cached names.
func (c *CachingResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
