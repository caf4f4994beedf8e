package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

func notification(target model.Tag, id int64) event.Eventer {
	return event.NewNotificationV1Event(target, &model.NotificationMessage{
		ID:       id,
		Channel:  target.String(),
		Subject:  "subject",
		Message:  "body",
		Datetime: time.Unix(1700000000, 0).UTC(),
	})
}

func register(t *testing.T, h *Hub, tags ...model.Tag) Connector {
	t.Helper()
	conn, err := h.Register(context.Background(), tags, ConnectMetadata{Transport: "test"})
	require.NoError(t, err)
	return conn
}

// drain returns the ids of every event currently queued on conn.
func drain(conn Connector) []string {
	var ids []string
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				return ids
			}
			ids = append(ids, ev.GetID())
		default:
			return ids
		}
	}
}

func TestHub_EndToEndRouting(t *testing.T) {
	h := NewHub()
	a := register(t, h, model.UserTag(1))
	b := register(t, h, model.ChannelTag("ops"))

	h.SendTo(model.UserTag(1), notification(model.UserTag(1), 1))
	assert.Equal(t, []string{"1"}, drain(a))
	assert.Empty(t, drain(b))

	h.SendTo(model.ChannelTag("ops"), notification(model.ChannelTag("ops"), 2))
	assert.Empty(t, drain(a))
	assert.Equal(t, []string{"2"}, drain(b))

	h.Broadcast(notification(model.BroadcastTag(), 3))
	assert.Equal(t, []string{"3"}, drain(a))
	assert.Equal(t, []string{"3"}, drain(b))

	assert.True(t, h.Unregister(a.GetID()))
	h.Broadcast(notification(model.BroadcastTag(), 4))
	assert.Equal(t, []string{"4"}, drain(b))
}

func TestHub_RegisterUnregisterConsistency(t *testing.T) {
	h := NewHub()
	conn := register(t, h, model.UserTag(7), model.ChannelTag("ops"), model.ChannelTag("ops"), model.BroadcastTag())

	// Duplicates collapse and Broadcast is implicit.
	assert.ElementsMatch(t, []model.Tag{model.UserTag(7), model.ChannelTag("ops")}, conn.GetTags())
	for _, tag := range conn.GetTags() {
		require.Len(t, h.Resolve(tag), 1)
		assert.True(t, h.cells[tag].has(conn.GetID()))
	}
	assert.True(t, h.IsConnected(model.ChannelTag("ops")))
	require.NoError(t, h.consistent())

	assert.True(t, h.Unregister(conn.GetID()))
	assert.False(t, h.Unregister(conn.GetID()))

	assert.Empty(t, h.cells)
	assert.Empty(t, h.subscribers)
	assert.False(t, h.IsConnected(model.UserTag(7)))
	assert.Empty(t, h.Resolve(model.BroadcastTag()))
	require.NoError(t, h.consistent())
}

func TestHub_ConsistencyDetectsOneSidedIndex(t *testing.T) {
	h := NewHub()
	conn := register(t, h, model.ChannelTag("ops"))
	require.NoError(t, h.consistent())

	h.cells[model.ChannelTag("ops")].detach(conn.GetID())
	assert.Error(t, h.consistent())
}

func TestHub_SubscribersGauge(t *testing.T) {
	h := NewHub()
	a := register(t, h, model.UserTag(1))
	register(t, h, model.ChannelTag("ops"))
	register(t, h)
	assert.Equal(t, float64(3), testutil.ToFloat64(subscribersGauge))

	h.Unregister(a.GetID())
	assert.Equal(t, float64(2), testutil.ToFloat64(subscribersGauge))

	var g errgroup.Group
	for i := range 64 {
		g.Go(func() error {
			conn, err := h.Register(context.Background(), []model.Tag{model.UserTag(int64(i))}, ConnectMetadata{})
			if err != nil {
				return err
			}
			if i%2 == 1 {
				h.Unregister(conn.GetID())
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, float64(2+32), testutil.ToFloat64(subscribersGauge))
	assert.Equal(t, float64(h.Stats().TotalSubscribers), testutil.ToFloat64(subscribersGauge))

	h.Shutdown()
	assert.Zero(t, testutil.ToFloat64(subscribersGauge))
}

func TestHub_EmptyTagSetReceivesBroadcastOnly(t *testing.T) {
	h := NewHub()
	anon := register(t, h)

	h.SendTo(model.UserTag(1), notification(model.UserTag(1), 1))
	h.Broadcast(notification(model.BroadcastTag(), 2))

	assert.Equal(t, []string{"2"}, drain(anon))
}

func TestHub_DeliverRoutesByTarget(t *testing.T) {
	h := NewHub()
	conn := register(t, h, model.ChannelTag("ops"))

	assert.Equal(t, 1, h.Deliver(notification(model.ChannelTag("ops"), 9)))
	assert.Equal(t, 1, h.Deliver(notification(model.BroadcastTag(), 10)))
	assert.Equal(t, 0, h.Deliver(event.NewConnectedEvent(conn.GetID(), nil)))

	assert.Equal(t, []string{"9", "10"}, drain(conn))
}

func TestHub_ZeroListenersIsNotAnError(t *testing.T) {
	h := NewHub()

	assert.Equal(t, 0, h.SendTo(model.ChannelTag("nobody"), notification(model.ChannelTag("nobody"), 1)))
	assert.Equal(t, uint64(1), h.Stats().Unrouted)
}

func TestHub_FullQueueDropsWithoutBlocking(t *testing.T) {
	h := NewHub(WithMailboxSize(2))
	slow := register(t, h, model.UserTag(1))
	fast := register(t, h, model.UserTag(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(1); i <= 5; i++ {
			h.SendTo(model.UserTag(1), notification(model.UserTag(1), i))
			// Keep the fast consumer empty.
			drain(fast)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full queue")
	}

	// The first events stay queued; the newest are dropped for the slow subscriber only.
	assert.Equal(t, []string{"1", "2"}, drain(slow))
	assert.Equal(t, uint64(3), slow.GetDropped())
	assert.Zero(t, fast.GetDropped())
	assert.Equal(t, uint64(3), h.Stats().Dropped)
}

func TestHub_NoWritesAfterUnregister(t *testing.T) {
	h := NewHub()
	conn := register(t, h, model.UserTag(1))
	h.Unregister(conn.GetID())

	assert.False(t, conn.Send(notification(model.UserTag(1), 1)))
	assert.Equal(t, 0, h.SendTo(model.UserTag(1), notification(model.UserTag(1), 2)))

	_, ok := <-conn.Recv()
	assert.False(t, ok, "queue must be closed")
}

func TestHub_ContextCancelUnregisters(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := h.Register(ctx, []model.Tag{model.UserTag(1)}, ConnectMetadata{})
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool {
		return !h.IsConnected(model.UserTag(1))
	}, time.Second, 5*time.Millisecond)

	_, ok := <-conn.Recv()
	assert.False(t, ok)
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub()
	a := register(t, h, model.UserTag(1))
	b := register(t, h)

	h.Shutdown()
	h.Shutdown()

	for _, conn := range []Connector{a, b} {
		_, ok := <-conn.Recv()
		assert.False(t, ok)
	}
	assert.Zero(t, h.Stats().TotalSubscribers)

	_, err := h.Register(context.Background(), nil, ConnectMetadata{})
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_Stats(t *testing.T) {
	h := NewHub()
	register(t, h, model.ChannelTag("ops"), model.UserTag(1))
	register(t, h, model.ChannelTag("ops"))

	stats := h.Stats()
	assert.Equal(t, 2, stats.TotalSubscribers)
	assert.Equal(t, 2, stats.TotalTags)
	require.Len(t, stats.Tags, 2)
	assert.Equal(t, model.TagStats{Tag: "Channel:ops", Subscribers: 2}, stats.Tags[0])
}

func TestHub_ConcurrentRegisterAndPublish(t *testing.T) {
	h := NewHub(WithMailboxSize(1024))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Both indexes must agree at every observable point, not only at the end.
	done := make(chan struct{})
	checker := make(chan error, 1)
	go func() {
		defer close(checker)
		for {
			if err := h.consistent(); err != nil {
				checker <- err
				return
			}
			select {
			case <-done:
				return
			default:
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			tags := []model.Tag{model.ChannelTag(fmt.Sprintf("g%d", i%4)), model.UserTag(int64(i % 3))}
			conn, err := h.Register(ctx, tags, ConnectMetadata{})
			if err != nil {
				return err
			}
			if i%2 == 0 {
				h.Unregister(conn.GetID())
			}
			return nil
		})
		g.Go(func() error {
			tag := model.ChannelTag(fmt.Sprintf("g%d", i%4))
			h.SendTo(tag, notification(tag, int64(i)))
			h.Broadcast(notification(model.BroadcastTag(), int64(i)))
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(done)
	require.NoError(t, <-checker)
	require.NoError(t, h.consistent())

	stats := h.Stats()
	assert.Equal(t, 16, stats.TotalSubscribers)

	// Every remaining subscriber is indexed under exactly its two tags.
	total := 0
	for _, ts := range stats.Tags {
		total += ts.Subscribers
	}
	assert.Equal(t, 32, total)
}
