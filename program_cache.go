package opts

import "sync"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache on the set's evaluator.
func WithProgramCache(cache ProgramCache) SetOption {
	return func(cfg *setConfig) {
		cfg.programCache = cache
	}
}

// NewProgramCache returns an unbounded, concurrency-safe ProgramCache.
func NewProgramCache() ProgramCache {
	return &programCache{programs: map[string]any{}}
}

type programCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

func (c *programCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *programCache) Set(key string, value any) {
	c.mu.Lock()
	c.programs[key] = value
	c.mu.Unlock()
}
