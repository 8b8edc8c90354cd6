package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/slot-billing/internal/services/notification"
	"github.com/kevin07696/slot-billing/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweeper_RunOnce_DeliversBacklog(t *testing.T) {
	store := newStore()
	first := createRecord(t, store, true)
	createRecord(t, store, false)
	second := createRecord(t, store, true)

	email := mocks.NewNotifier("email")
	sweeper := notification.NewSweeper(newDispatcher(store, email), store.Records(), mocks.NewLocker(), notification.SweeperConfig{}, zap.NewNop())

	delivered, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.True(t, store.Record(first).NotificationSent)
	assert.True(t, store.Record(second).NotificationSent)

	delivered, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered, "nothing left to retry")
	assert.Equal(t, 2, email.Calls())
}

func TestSweeper_RunOnce_LeavesFreshCompletionsToDispatcher(t *testing.T) {
	store := newStore()
	store.SetNow(func() time.Time { return time.Now().UTC().Add(-time.Hour) })
	stale := createRecord(t, store, true)
	store.SetNow(func() time.Time { return time.Now().UTC() })
	fresh := createRecord(t, store, true)

	email := mocks.NewNotifier("email")
	sweeper := notification.NewSweeper(newDispatcher(store, email), store.Records(), nil,
		notification.SweeperConfig{MinAge: 10 * time.Minute}, zap.NewNop())

	delivered, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.True(t, store.Record(stale).NotificationSent)
	assert.False(t, store.Record(fresh).NotificationSent)
	assert.Equal(t, 1, email.Calls())
}

func TestSweeper_RunOnce_RespectsBatchSize(t *testing.T) {
	store := newStore()
	for i := 0; i < 3; i++ {
		createRecord(t, store, true)
	}

	sweeper := notification.NewSweeper(newDispatcher(store, mocks.NewNotifier("email")), store.Records(), nil,
		notification.SweeperConfig{BatchSize: 2}, zap.NewNop())

	delivered, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	delivered, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestSweeper_RunOnce_RetriesAfterProviderRecovers(t *testing.T) {
	store := newStore()
	id := createRecord(t, store, true)
	email := mocks.NewNotifier("email")
	email.Err = errors.New("provider outage")
	sweeper := notification.NewSweeper(newDispatcher(store, email), store.Records(), nil, notification.SweeperConfig{}, zap.NewNop())

	delivered, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.False(t, store.Record(id).NotificationSent)

	email.SetErr(nil)
	delivered, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.True(t, store.Record(id).NotificationSent)
}

func TestSweeper_RunOnce_SkipsWhenLockHeld(t *testing.T) {
	store := newStore()
	id := createRecord(t, store, true)
	email := mocks.NewNotifier("email")
	locker := mocks.NewLocker()

	acquired, err := locker.TryLock(context.Background(), "billing:notification-sweep:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	sweeper := notification.NewSweeper(newDispatcher(store, email), store.Records(), locker, notification.SweeperConfig{}, zap.NewNop())

	delivered, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Zero(t, email.Calls())
	assert.False(t, store.Record(id).NotificationSent)
}

func TestSweeper_StartStop(t *testing.T) {
	store := newStore()
	sweeper := notification.NewSweeper(newDispatcher(store), store.Records(), nil,
		notification.SweeperConfig{Schedule: "@every 1h"}, zap.NewNop())

	require.NoError(t, sweeper.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sweeper.Stop(ctx))
}

func TestSweeper_Start_InvalidSchedule(t *testing.T) {
	store := newStore()
	sweeper := notification.NewSweeper(newDispatcher(store), store.Records(), nil,
		notification.SweeperConfig{Schedule: "not a schedule"}, zap.NewNop())

	assert.Error(t, sweeper.Start())
}
