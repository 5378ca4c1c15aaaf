package game_test

import (
	"context"
	"testing"
	"time"

	"holdem-service/internal/model"
	"holdem-service/internal/service/game"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan game.Event) game.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return game.Event{}
}

func TestLocalNotifierFansOutPerHand(t *testing.T) {
	ctx := context.Background()
	n := game.NewLocalNotifier()

	a, cancelA := n.Subscribe(ctx, 1)
	b, cancelB := n.Subscribe(ctx, 1)
	other, cancelOther := n.Subscribe(ctx, 2)
	defer cancelB()
	defer cancelOther()

	require.NoError(t, n.Publish(ctx, game.Event{HandID: 1, Kind: game.EventAction, Stage: model.StageFlop}))
	assert.Equal(t, game.EventAction, recv(t, a).Kind)
	assert.Equal(t, game.EventAction, recv(t, b).Kind)
	select {
	case ev := <-other:
		t.Fatalf("hand 2 subscriber got %+v", ev)
	default:
	}

	cancelA()
	cancelA()
	_, ok := <-a
	assert.False(t, ok, "cancel closes the channel")
	require.NoError(t, n.Publish(ctx, game.Event{HandID: 1, Kind: game.EventTick}))
	assert.Equal(t, game.EventTick, recv(t, b).Kind)
}

func TestLocalNotifierDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	n := game.NewLocalNotifier()
	ch, cancel := n.Subscribe(ctx, 9)
	defer cancel()

	for i := 0; i < 50; i++ {
		require.NoError(t, n.Publish(ctx, game.Event{HandID: 9, Kind: game.EventAction}))
	}
	assert.LessOrEqual(t, len(ch), cap(ch))
}

func TestRedisNotifierRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	n := game.NewNotifier(rdb)
	_, isRedis := n.(*game.RedisNotifier)
	require.True(t, isRedis)

	ch, cancel := n.Subscribe(ctx, 42)
	defer cancel()

	require.NoError(t, n.Publish(ctx, game.Event{HandID: 42, TableID: 3, Kind: game.EventStreet, Stage: model.StageTurn}))
	ev := recv(t, ch)
	assert.Equal(t, int64(42), ev.HandID)
	assert.Equal(t, int64(3), ev.TableID)
	assert.Equal(t, game.EventStreet, ev.Kind)
	assert.Equal(t, model.StageTurn, ev.Stage)

	require.NoError(t, n.Publish(ctx, game.Event{HandID: 43, Kind: game.EventStreet}))
	select {
	case ev := <-ch:
		t.Fatalf("hand 42 subscriber got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewNotifierWithoutRedisIsLocal(t *testing.T) {
	_, ok := game.NewNotifier(nil).(*game.LocalNotifier)
	assert.True(t, ok)
}
