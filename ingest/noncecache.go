package ingest

import (
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
)

// NonceCache claims nonces atomically. Claim returns false when the nonce was
// already seen inside the TTL window.
type NonceCache interface {
	Claim(nonce string, ttl time.Duration) (bool, error)
}

// RedisNonceCache backs the claim with SET NX so all instances share one
// replay window.
type RedisNonceCache struct {
	Prefix string
}

func NewRedisNonceCache() *RedisNonceCache {
	return &RedisNonceCache{Prefix: "ingest:nonce:"}
}

func (c *RedisNonceCache) Claim(nonce string, ttl time.Duration) (bool, error) {
	// Without redis the nil-safe helper reports "not claimed", which would
	// surface as a replay rejection. Fail as a transient error instead so the
	// caller retries once redis is back.
	if config.GetRedisDB() == nil {
		return false, errors.New("redis is not configured")
	}
	return config.SetRedisValueNX(c.Prefix+nonce, "1", ttl)
}

// MemoryNonceCache is a single-process fallback, also used by tests. The
// clock is injectable; expired entries are purged lazily on access.
type MemoryNonceCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	Now  func() time.Time
}

func NewMemoryNonceCache() *MemoryNonceCache {
	return &MemoryNonceCache{
		seen: map[string]time.Time{},
		Now:  time.Now,
	}
}

func (c *MemoryNonceCache) Claim(nonce string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	for k, expiry := range c.seen {
		if now.After(expiry) {
			delete(c.seen, k)
		}
	}

	if expiry, ok := c.seen[nonce]; ok && now.Before(expiry) {
		return false, nil
	}
	c.seen[nonce] = now.Add(ttl)
	return true, nil
}
