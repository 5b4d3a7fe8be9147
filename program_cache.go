package settings

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ProgramCache stores compiled rule programs keyed by engine and expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

func cacheKey(engine, expression string) string {
	return engine + ":" + expression
}

// TTLProgramCache is a ProgramCache whose entries expire after a fixed TTL.
type TTLProgramCache struct {
	cache *ttlcache.Cache[string, any]
}

// NewTTLProgramCache returns a cache that evicts entries ttl after their last
// write; hits do not extend it. A non-positive ttl keeps entries forever.
func NewTTLProgramCache(ttl time.Duration) *TTLProgramCache {
	opts := []ttlcache.Option[string, any]{
		ttlcache.WithDisableTouchOnHit[string, any](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, any](ttl))
	}
	return &TTLProgramCache{cache: ttlcache.New[string, any](opts...)}
}

// Get implements ProgramCache.
func (c *TTLProgramCache) Get(key string) (any, bool) {
	item := c.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// Set implements ProgramCache.
func (c *TTLProgramCache) Set(key string, value any) {
	c.cache.Set(key, value, ttlcache.DefaultTTL)
}

// Len reports the number of cached programs.
func (c *TTLProgramCache) Len() int {
	return c.cache.Len()
}
