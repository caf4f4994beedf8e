package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
)

func TestDeliveryService_SubscribeResolvesGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.directory.AddGroup(ctx, model.Group{Name: "ops", AdminEmail: "admin@example.com"}, "t"))
	require.NoError(t, f.directory.AddSubscriber(ctx, 7, "ops"))

	conn, err := f.delivery.Subscribe(ctx, f.bearer(t, 7), registry.ConnectMetadata{Transport: "sse"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []model.Tag{model.UserTag(7), model.ChannelTag("ops")}, conn.GetTags())
	assert.Equal(t, int64(7), conn.GetMetadata().UserID)
}

func TestDeliveryService_AnonymousGetsBroadcastOnly(t *testing.T) {
	f := newFixture(t)

	for _, bearer := range []string{"", "garbage"} {
		conn, err := f.delivery.Subscribe(context.Background(), bearer, registry.ConnectMetadata{})
		require.NoError(t, err)
		assert.Empty(t, conn.GetTags())
		assert.Zero(t, conn.GetMetadata().UserID)
		f.delivery.Unsubscribe(conn.GetID())
	}
}

func TestDeliveryService_DegradedDirectory(t *testing.T) {
	f := newFixture(t)
	membership := NewMembershipResolver(brokenDirectory{}, 16, time.Minute)
	delivery := NewDeliveryService(f.hub, f.auth, membership, discard)

	conn, err := delivery.Subscribe(context.Background(), f.bearer(t, 3), registry.ConnectMetadata{})
	require.NoError(t, err)
	assert.Equal(t, []model.Tag{model.UserTag(3)}, conn.GetTags())
}

func TestDeliveryService_UnsubscribeClosesQueue(t *testing.T) {
	f := newFixture(t)
	conn, err := f.delivery.Subscribe(context.Background(), f.bearer(t, 1), registry.ConnectMetadata{})
	require.NoError(t, err)

	f.delivery.Unsubscribe(conn.GetID())
	f.delivery.Unsubscribe(conn.GetID())

	_, ok := <-conn.Recv()
	assert.False(t, ok)
	assert.False(t, f.hub.IsConnected(model.UserTag(1)))
}

func TestMembership_CachesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resolver := NewMembershipResolver(f.directory, 16, time.Minute)
	require.NoError(t, f.directory.AddGroup(ctx, model.Group{Name: "ops", AdminEmail: "admin@example.com"}, "t"))

	tags, err := resolver.ResolveTags(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []model.Tag{model.UserTag(5)}, tags)

	require.NoError(t, f.directory.AddSubscriber(ctx, 5, "ops"))
	tags, err = resolver.ResolveTags(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, tags, 1, "cached value is served until invalidated")

	resolver.Invalidate(5)
	tags, err = resolver.ResolveTags(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []model.Tag{model.UserTag(5), model.ChannelTag("ops")}, tags)
}
