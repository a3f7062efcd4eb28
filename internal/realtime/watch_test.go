package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, sub *Subscription[T]) Snapshot[T] {
	t.Helper()
	select {
	case snapshot, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot[T]{}
}

func TestWatchDeliversInitialSnapshotAndReloads(t *testing.T) {
	feed := NewFeed(nil, nil, "", zerolog.Nop())
	var loads atomic.Int32

	sub := Watch(context.Background(), feed, MessagesTopic("c1"), func(context.Context) (int32, error) {
		return loads.Add(1), nil
	})
	defer sub.Cancel()

	first := receive(t, sub)
	require.NoError(t, first.Err)
	require.Equal(t, int32(1), first.Data)
	require.Equal(t, uint64(1), first.Version)

	feed.Publish(context.Background(), MessagesTopic("c1"))
	second := receive(t, sub)
	require.Equal(t, int32(2), second.Data)
	require.Equal(t, uint64(2), second.Version)
}

func TestWatchIgnoresOtherTopics(t *testing.T) {
	feed := NewFeed(nil, nil, "", zerolog.Nop())
	sub := Watch(context.Background(), feed, ChatsTopic("u1"), func(context.Context) (string, error) {
		return "list", nil
	})
	defer sub.Cancel()

	receive(t, sub)
	feed.Publish(context.Background(), ChatsTopic("u2"), MessagesTopic("c1"))

	select {
	case snapshot := <-sub.Snapshots():
		t.Fatalf("unexpected snapshot %+v", snapshot)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchStopsAfterLoadError(t *testing.T) {
	feed := NewFeed(nil, nil, "", zerolog.Nop())
	boom := errors.New("boom")

	sub := Watch(context.Background(), feed, MessagesTopic("c1"), func(context.Context) ([]string, error) {
		return nil, boom
	})

	snapshot := receive(t, sub)
	require.ErrorIs(t, snapshot.Err, boom)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after error")
	}
	_, ok := <-sub.Snapshots()
	require.False(t, ok)
}

func TestCancelIsIdempotentAndUnregisters(t *testing.T) {
	feed := NewFeed(nil, nil, "", zerolog.Nop())
	sub := Watch(context.Background(), feed, MessagesTopic("c1"), func(context.Context) (int, error) {
		return 1, nil
	})
	receive(t, sub)

	sub.Cancel()
	sub.Cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}

	feed.mu.RLock()
	defer feed.mu.RUnlock()
	require.Empty(t, feed.watchers)
}

func TestFeedIgnoresOwnRemoteEvents(t *testing.T) {
	feed := NewFeed(nil, nil, "", zerolog.Nop())
	signal, unregister := feed.watch(MessagesTopic("c1"))
	defer unregister()

	own, err := json.Marshal(changeEvent{Source: feed.NodeID(), Topics: []string{MessagesTopic("c1")}})
	require.NoError(t, err)
	feed.handleEvent(own)
	require.Len(t, signal, 0)

	other, err := json.Marshal(changeEvent{Source: "other-node", Topics: []string{MessagesTopic("c1")}})
	require.NoError(t, err)
	feed.handleEvent(other)
	require.Len(t, signal, 1)
}

func TestFeedFansOutAcrossNodesOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	nodeA := NewFeed(clientA, nil, "onquest", zerolog.Nop())
	nodeB := NewFeed(clientB, nil, "onquest", zerolog.Nop())
	nodeB.Start(ctx)

	var loads atomic.Int32
	sub := Watch(ctx, nodeB, ChatsTopic("u1"), func(context.Context) (int32, error) {
		return loads.Add(1), nil
	})
	defer sub.Cancel()
	receive(t, sub)

	require.Eventually(t, func() bool {
		nodeA.Publish(ctx, ChatsTopic("u1"))
		select {
		case snapshot := <-sub.Snapshots():
			return snapshot.Version >= 2
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
}
