package sampler

import "sync"

// ResponseCache maps exact prompt text to a previously returned Result.
// It is unbounded and never evicts; entries live as long as the Client.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*Result
	hits    int64
	misses  int64
}

// CacheStats reports cache size and hit/miss counts.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: make(map[string]*Result)}
}

// Get returns the cached result for prompt, if any.
func (rc *ResponseCache) Get(prompt string) (*Result, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	res, ok := rc.entries[prompt]
	if !ok {
		rc.misses++
		return nil, false
	}
	rc.hits++
	return res, true
}

// Set stores res under prompt, replacing any previous entry.
func (rc *ResponseCache) Set(prompt string, res *Result) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[prompt] = res
}

// Stats returns a snapshot of the cache counters.
func (rc *ResponseCache) Stats() CacheStats {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return CacheStats{Entries: len(rc.entries), Hits: rc.hits, Misses: rc.misses}
}

// Clear removes all entries and resets the counters.
func (rc *ResponseCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[string]*Result)
	rc.hits = 0
	rc.misses = 0
}
