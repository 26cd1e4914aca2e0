package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenCacheExpiresLazily(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := newTokenCache(time.Minute)
	c.now = func() time.Time { return now }

	c.put("s1", "tok-a")
	tok, ok := c.get("s1")
	assert.True(t, ok)
	assert.Equal(t, "tok-a", tok)

	now = now.Add(59 * time.Second)
	_, ok = c.get("s1")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.get("s1")
	assert.False(t, ok, "entries past the TTL must not be handed out")
}

func TestTokenCacheInvalidate(t *testing.T) {
	c := newTokenCache(time.Minute)
	c.put("s1", "tok-a")
	c.invalidate("s1")
	_, ok := c.get("s1")
	assert.False(t, ok)
}

func TestTokenCacheInvalidateTokenOnlyMatching(t *testing.T) {
	c := newTokenCache(time.Minute)
	c.put("s1", "tok-b")

	// A close for the older token must not evict the newer one.
	c.invalidateToken("s1", "tok-a")
	tok, ok := c.get("s1")
	assert.True(t, ok)
	assert.Equal(t, "tok-b", tok)

	c.invalidateToken("s1", "tok-b")
	_, ok = c.get("s1")
	assert.False(t, ok)
}
