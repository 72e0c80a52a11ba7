package rules

import "sync"

// ProgramCache stores compiled expression programs keyed by engine and
// expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryCache is a concurrency-safe ProgramCache.
type MemoryCache struct {
	entries sync.Map
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Load(key)
}

func (c *MemoryCache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.entries.Store(key, value)
}

var defaultCache = NewMemoryCache()

func cacheKey(engine, expression string) string {
	return engine + "\x00" + expression
}
