package panel

import (
	"sync"
	"time"
)

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

// tokenCache maps server id to its live bearer token. The TTL is a local
// heuristic upper bound, not a contractual value from the panel; callers must
// invalidate promptly on 401 rather than trust it.
type tokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]tokenEntry
	now     func() time.Time
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{ttl: ttl, entries: map[string]tokenEntry{}, now: time.Now}
}

// get purges an expired entry lazily, then returns the live token if any.
func (c *tokenCache) get(serverID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[serverID]
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, serverID)
		return "", false
	}
	return e.token, true
}

func (c *tokenCache) put(serverID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[serverID] = tokenEntry{token: token, expiresAt: c.now().Add(c.ttl)}
}

func (c *tokenCache) invalidate(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, serverID)
}

// invalidateToken removes the entry only while it still holds the given
// token, so closing an old session cannot evict a newer token.
func (c *tokenCache) invalidateToken(serverID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[serverID]; ok && e.token == token {
		delete(c.entries, serverID)
	}
}
