package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

type cacheEntry struct {
	expiry   time.Time
	response Response
}

// responseCache keeps completions for identical requests until they expire.
// Composed messages are deterministic for the same facts, so repeats within
// the TTL skip the network.
type responseCache struct {
	entries  map[string]cacheEntry
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
	ttl      time.Duration
	mu       sync.RWMutex
}

func newResponseCache(ttl time.Duration) *responseCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go cache.cleanup()

	return cache
}

// cacheKey hashes every field that can change the completion.
func cacheKey(req Request) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%g", req.System, req.Prompt, req.MaxTokens, req.Temperature)))
	return hex.EncodeToString(sum[:])
}

func (c *responseCache) get(key string) (Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return Response{}, false
	}
	return entry.response, true
}

func (c *responseCache) set(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		response: resp,
		expiry:   c.now().Add(c.ttl),
	}
}

func (c *responseCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

func (c *responseCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *responseCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *responseCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
