package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_ShutdownLIFO(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	var order []string
	sm.RegisterNoErr("database", func() { order = append(order, "database") })
	sm.RegisterNoErr("notifications", func() { order = append(order, "notifications") })
	sm.RegisterNoErr("http", func() { order = append(order, "http") })

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"http", "notifications", "database"}, order)

	// second call is a no-op
	require.NoError(t, sm.Shutdown())
	assert.Len(t, order, 3)
}

func TestManager_ShutdownCollectsErrors(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)
	errClose := errors.New("close failed")

	ran := false
	sm.RegisterNoErr("first", func() { ran = true })
	sm.Register("broken", func(context.Context) error { return errClose })

	err := sm.Shutdown()
	assert.ErrorIs(t, err, errClose)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, ran, "later components still shut down after a failure")
}

func TestInFlightTracker(t *testing.T) {
	tracker := NewInFlightTracker("notifications", zap.NewNop())

	var completed atomic.Int32
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		require.True(t, tracker.Go(func() {
			<-release
			completed.Add(1)
		}))
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tracker.Shutdown(ctx))

	assert.Equal(t, int32(3), completed.Load())
	assert.True(t, tracker.IsShuttingDown())
	assert.False(t, tracker.Go(func() {}), "no new work after shutdown")
}

func TestInFlightTracker_ShutdownTimeout(t *testing.T) {
	tracker := NewInFlightTracker("slow", zap.NewNop())
	block := make(chan struct{})
	defer close(block)

	require.True(t, tracker.Go(func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tracker.Shutdown(ctx), context.DeadlineExceeded)
}
