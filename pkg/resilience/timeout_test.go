package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeoutConfig_Hierarchy(t *testing.T) {
	cfg := DefaultTimeoutConfig()

	assert.Less(t, cfg.Gateway, cfg.HTTPHandler, "gateway call must finish before the handler times out")
	assert.Greater(t, cfg.Sweep, cfg.Notification)
}

func TestTimeoutConfig_Contexts(t *testing.T) {
	cfg := TestTimeoutConfig()

	t.Run("gateway deadline nested in handler", func(t *testing.T) {
		handlerCtx, cancel := cfg.HandlerContext(context.Background())
		defer cancel()
		gatewayCtx, cancel2 := cfg.GatewayContext(handlerCtx)
		defer cancel2()

		hd, ok := handlerCtx.Deadline()
		require.True(t, ok)
		gd, ok := gatewayCtx.Deadline()
		require.True(t, ok)
		assert.True(t, gd.Before(hd) || gd.Equal(hd))
	})

	t.Run("notification context is detached", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		cancel()

		ctx, cancel2 := cfg.NotificationContext()
		defer cancel2()

		assert.Error(t, parent.Err())
		assert.NoError(t, ctx.Err())
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(cfg.Notification), deadline, time.Second)
	})
}
