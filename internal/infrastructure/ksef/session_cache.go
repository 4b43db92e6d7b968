package ksef

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// sessionTTL is the fixed lifetime of a cached session token. Sessions are
// renewed by re-opening, never extended.
const sessionTTL = 10 * time.Minute

// OpenSessionFunc performs the actual session-open exchange on a cache miss.
type OpenSessionFunc func(ctx context.Context) (string, error)

// SessionCache stores KSeF session tokens keyed by tenant identity
// (NIP plus initial token). Concurrent callers that miss on the same key are
// collapsed through singleflight so only one session is opened per key.
type SessionCache struct {
	store *gocache.Cache
	group singleflight.Group
	ttl   time.Duration
}

// NewSessionCache creates the cache. Expired entries linger until GetOrCreate
// observes them or Sweep runs; no background janitor is started.
func NewSessionCache() *SessionCache {
	return &SessionCache{
		store: gocache.New(sessionTTL, 0),
		ttl:   sessionTTL,
	}
}

// GetOrCreate returns the cached token for the tenant, or opens a new session
// via open and caches its token for the TTL. A failed open leaves no cache
// entry, so the next caller retries.
func (c *SessionCache) GetOrCreate(ctx context.Context, nip, initialToken string, open OpenSessionFunc) (string, error) {
	key := nip + ":" + initialToken

	if token, ok := c.store.Get(key); ok {
		return token.(string), nil
	}

	token, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry while we waited.
		if token, ok := c.store.Get(key); ok {
			return token, nil
		}
		token, err := open(ctx)
		if err != nil {
			return nil, err
		}
		c.store.Set(key, token, c.ttl)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Invalidate removes every entry holding the given token. Used after an
// explicit session close.
func (c *SessionCache) Invalidate(token string) {
	for key, item := range c.store.Items() {
		if stored, ok := item.Object.(string); ok && stored == token {
			c.store.Delete(key)
		}
	}
}

// Sweep drops all expired entries and returns how many were removed.
func (c *SessionCache) Sweep() int {
	before := c.store.ItemCount()
	c.store.DeleteExpired()
	return before - c.store.ItemCount()
}
