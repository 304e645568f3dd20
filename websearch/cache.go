package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hupe1980/ragmesh/logging"
)

// Cache stores serialized search results.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. A zero ttl uses the cache's default.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedOptions configure a CachedProvider.
type CachedOptions struct {
	TTL    time.Duration
	Logger logging.Logger
}

// CachedProvider is a cache-aside decorator for a Provider. Cache failures are
// logged and never fail a search.
type CachedProvider struct {
	next  Provider
	cache Cache
	opts  CachedOptions
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache Cache, optFns ...func(o *CachedOptions)) *CachedProvider {
	opts := CachedOptions{
		TTL:    time.Hour,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &CachedProvider{next: next, cache: cache, opts: opts}
}

// Search implements Provider.
func (c *CachedProvider) Search(ctx context.Context, query string) (*Result, error) {
	key := cacheKey(query)

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.opts.Logger.Warn("websearch.cache.get_failed", "error", err.Error())
	} else if ok {
		var cached Result
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			c.opts.Logger.Debug("websearch.cache.hit", "query", query)
			return &cached, nil
		}
	}

	res, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.opts.TTL); err != nil {
			c.opts.Logger.Warn("websearch.cache.set_failed", "error", err.Error())
		}
	}

	return res, nil
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return "websearch:" + hex.EncodeToString(sum[:])
}
