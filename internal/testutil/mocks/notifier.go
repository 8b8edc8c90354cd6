package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
)

// Notifier records notifications and optionally fails or panics
type Notifier struct {
	Err        error
	PanicValue interface{}
	ChannelID  string

	received []domain.PaymentNotification
	mu       sync.Mutex
	calls    int
}

// NewNotifier creates a recording notifier for channel
func NewNotifier(channel string) *Notifier {
	return &Notifier{ChannelID: channel}
}

func (n *Notifier) Name() string { return n.ChannelID }

func (n *Notifier) Notify(_ context.Context, p domain.PaymentNotification) error {
	n.mu.Lock()
	n.calls++
	err, panicValue := n.Err, n.PanicValue
	n.mu.Unlock()

	if panicValue != nil {
		panic(panicValue)
	}
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.received = append(n.received, p)
	n.mu.Unlock()
	return nil
}

// Calls returns how many times Notify was invoked
func (n *Notifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// Received returns the successfully delivered notifications
func (n *Notifier) Received() []domain.PaymentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.PaymentNotification, len(n.received))
	copy(out, n.received)
	return out
}

// SetErr changes the failure returned by later calls
func (n *Notifier) SetErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Err = err
}

// Locker is an in-process ports.Locker
type Locker struct {
	held map[string]time.Time
	mu   sync.Mutex
}

// NewLocker creates an empty locker
func NewLocker() *Locker {
	return &Locker{held: make(map[string]time.Time)}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *Locker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Deduplicator is an in-process ports.EventDeduplicator
type Deduplicator struct {
	seen map[string]bool
	mu   sync.Mutex
}

// NewDeduplicator creates an empty deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]bool)}
}

func (d *Deduplicator) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *Deduplicator) MarkSeen(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}
