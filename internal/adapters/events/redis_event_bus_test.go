package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/redis"
)

func newTestBus(t *testing.T) *RedisEventBus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	bus := NewRedisEventBus(client)
	t.Cleanup(func() {
		bus.Close()
		client.Close()
	})
	return bus
}

func receive(t *testing.T, events <-chan *entities.EvaluationEvent) *entities.EvaluationEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "channel closed before an event arrived")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisEventBus_DeliversToEverySubscriber(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetSessionChannel("session-1")
	first, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	event := entities.NewEvaluationEvent("session-1", "eval-1", "11", entities.EvaluationEventStatusChanged, entities.EvaluationStatusDraft)
	require.NoError(t, bus.Publish(ctx, channel, event))

	for _, events := range []<-chan *entities.EvaluationEvent{first, second} {
		got := receive(t, events)
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, entities.EvaluationStatusDraft, got.Status)
		assert.Equal(t, "11", got.Tooth)
	}
}

func TestRedisEventBus_SessionsAreIsolated(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.Subscribe(ctx, providers.GetSessionChannel("session-1"))
	require.NoError(t, err)

	other := entities.NewEvaluationEvent("session-2", "eval-9", "21", entities.EvaluationEventStatusChanged, entities.EvaluationStatusError)
	require.NoError(t, bus.Publish(ctx, providers.GetSessionChannel("session-2"), other))
	own := entities.NewEvaluationEvent("session-1", "", "", entities.EvaluationEventSubmitCompleted, "")
	require.NoError(t, bus.Publish(ctx, providers.GetSessionChannel("session-1"), own))

	assert.Equal(t, own.ID, receive(t, mine).ID)
}

func TestRedisEventBus_CancelClosesSubscription(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, providers.GetSessionChannel("session-1"))
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not closed")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Empty(t, bus.feeds)
}
