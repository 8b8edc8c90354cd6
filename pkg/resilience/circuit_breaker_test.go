package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.Now
	return cb, clock
}

var errUpstream = errors.New("upstream 503")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{MaxFailures: 3, CoolDown: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errUpstream }), errUpstream)
	}
	assert.Equal(t, BreakerOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{MaxFailures: 2, CoolDown: time.Minute})

	_ = cb.Execute(func() error { return errUpstream })
	require.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errUpstream })

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_IgnoresUncountedErrors(t *testing.T) {
	errDeclined := errors.New("card declined")
	cb, _ := newTestBreaker(BreakerConfig{
		MaxFailures: 1,
		CoolDown:    time.Minute,
		Counts:      func(err error) bool { return !errors.Is(err, errDeclined) },
	})

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errDeclined })
	}
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		cb, clock := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolDown: time.Minute})
		_ = cb.Execute(func() error { return errUpstream })
		require.Equal(t, BreakerOpen, cb.State())

		clock.Advance(time.Minute)
		assert.Equal(t, BreakerHalfOpen, cb.State())

		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, BreakerClosed, cb.State())
	})

	t.Run("failure reopens", func(t *testing.T) {
		cb, clock := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolDown: time.Minute})
		_ = cb.Execute(func() error { return errUpstream })

		clock.Advance(time.Minute)
		_ = cb.Execute(func() error { return errUpstream })

		assert.Equal(t, BreakerOpen, cb.State())
		assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
	})

	t.Run("limits concurrent probes", func(t *testing.T) {
		cb, clock := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolDown: time.Minute, HalfOpenProbes: 1})
		_ = cb.Execute(func() error { return errUpstream })
		clock.Advance(time.Minute)

		release := make(chan struct{})
		started := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- cb.Execute(func() error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, BreakerClosed, cb.State())
	})
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
