package ports

import (
	"context"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
)

// Notifier delivers a payment receipt over one channel (email, push)
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n domain.PaymentNotification) error
}

// EventDeduplicator remembers processed webhook event ids
type EventDeduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// Locker is a best-effort distributed mutex used by background jobs
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
