package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the timeout hierarchy, outermost first:
//
//	HTTP handler (30s)
//	  gateway call (20s)
//	    database statement (driver default)
//
// Background work has its own budgets since no client is waiting on it.
type TimeoutConfig struct {
	HTTPHandler  time.Duration // Whole request, including reconciliation
	Gateway      time.Duration // One payment gateway API call
	Notification time.Duration // One receipt delivery, all channels and retries
	Sweep        time.Duration // One notification retry sweep run
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:  30 * time.Second,
		Gateway:      20 * time.Second,
		Notification: 60 * time.Second,
		Sweep:        5 * time.Minute,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:  5 * time.Second,
		Gateway:      2 * time.Second,
		Notification: 2 * time.Second,
		Sweep:        5 * time.Second,
	}
}

// HandlerContext bounds an inbound HTTP request
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// GatewayContext bounds a single payment gateway call
func (tc *TimeoutConfig) GatewayContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Gateway)
}

// NotificationContext bounds an async receipt delivery. It is detached from
// the request that triggered it so a finished request does not cancel delivery.
func (tc *TimeoutConfig) NotificationContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), tc.Notification)
}

// SweepContext bounds one notification retry sweep
func (tc *TimeoutConfig) SweepContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Sweep)
}
