package auth

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	session Session
	expires time.Time
}

// CachingVerifier wraps another Verifier with a TTL-based in-memory cache keyed by token.
// An entry never outlives the token's own expiry.
type CachingVerifier struct {
	base Verifier
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingVerifier returns a Verifier that reuses successful verifications for ttl.
func NewCachingVerifier(base Verifier, ttl time.Duration) *CachingVerifier {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingVerifier{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// Verify returns a cached session when available, otherwise it delegates to the
// underlying verifier and stores the result. Failures are never cached.
func (c *CachingVerifier) Verify(ctx context.Context, accessToken string) (Session, error) {
	if c == nil || c.base == nil {
		return Session{}, ErrInvalidToken
	}
	if accessToken == "" {
		return Session{}, ErrNoSession
	}

	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[accessToken]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.session, nil
	}

	session, err := c.base.Verify(ctx, accessToken)
	if err != nil {
		return Session{}, err
	}

	expires := now.Add(c.ttl)
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(expires) {
		expires = session.ExpiresAt
	}

	c.mu.Lock()
	c.gcLocked(now)
	c.items[accessToken] = cacheEntry{session: session, expires: expires}
	c.mu.Unlock()

	return session, nil
}

func (c *CachingVerifier) gcLocked(now time.Time) {
	for token, entry := range c.items {
		if !now.Before(entry.expires) {
			delete(c.items, token)
		}
	}
}
