package secrets

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

type cacheEntry struct {
	secret    *ports.Secret
	expiresAt time.Time
}

// cachingManager memoizes another SecretManager for ttl
type cachingManager struct {
	next    ports.SecretManager
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.Mutex
}

// WithCache wraps sm so repeated lookups within ttl skip the provider.
// A non-positive ttl returns sm unchanged.
func WithCache(sm ports.SecretManager, ttl time.Duration) ports.SecretManager {
	if ttl <= 0 {
		return sm
	}
	return &cachingManager{
		next:    sm,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
		ttl:     ttl,
	}
}

func (c *cachingManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	if ok && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.secret, nil
	}
	delete(c.entries, path)
	c.mu.Unlock()

	secret, err := c.next.GetSecret(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{secret: secret, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return secret, nil
}
