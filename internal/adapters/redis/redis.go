// Package redis backs the webhook dedupe fast path and the sweep lock.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connect opens a client and verifies it with PING. An empty addr returns a
// nil client; callers then run without the fast path.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// HealthCheck pings redis
func HealthCheck(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return fmt.Errorf("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}

// EventDeduplicator remembers processed webhook event ids for a TTL.
// It only short-circuits redelivery; the database guard stays authoritative.
type EventDeduplicator struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewEventDeduplicator creates a deduplicator. ttl should exceed the gateway's
// redelivery window (Stripe retries for up to 3 days).
func NewEventDeduplicator(rdb redis.Cmdable, ttl time.Duration) *EventDeduplicator {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &EventDeduplicator{rdb: rdb, prefix: "billing:webhook-event:", ttl: ttl}
}

func (d *EventDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (d *EventDeduplicator) MarkSeen(ctx context.Context, eventID string) error {
	if err := d.rdb.Set(ctx, d.prefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		return fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return nil
}

// unlockScript deletes the key only if this holder still owns it
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance redis lock (SET NX PX + owner-checked delete)
type Locker struct {
	rdb    redis.Cmdable
	tokens map[string]string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewLocker creates a lock client
func NewLocker(rdb redis.Cmdable, logger *zap.Logger) *Locker {
	return &Locker{rdb: rdb, tokens: make(map[string]string), logger: logger}
}

// TryLock acquires key for ttl without blocking
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Unlock releases key if this Locker still holds it
func (l *Locker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	released, err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", key, err)
	}
	if released == 0 {
		l.logger.Warn("lock expired before release", zap.String("key", key))
	}
	return nil
}

