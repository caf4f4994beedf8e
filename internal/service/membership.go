package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// MembershipResolver turns a caller identity into the tags its streams listen on.
type MembershipResolver interface {
	// ResolveTags returns the user's own tag followed by one channel tag per group.
	// On a directory failure the user tag is still returned together with the error.
	ResolveTags(ctx context.Context, userID int64) ([]model.Tag, error)
	// Invalidate drops cached memberships after a subscribe/unsubscribe.
	Invalidate(userID int64)
}

type Membership struct {
	directory Directory
	cache     *expirable.LRU[int64, []string]
}

// NewMembershipResolver provides a thread-safe resolver with a short-lived LRU cache.
// The TTL bounds how stale a membership can be when it changes through another gateway instance.
func NewMembershipResolver(directory Directory, size int, ttl time.Duration) *Membership {
	return &Membership{
		directory: directory,
		cache:     expirable.NewLRU[int64, []string](size, nil, ttl),
	}
}

func NewMembershipResolverFromConfig(directory Directory, cfg *config.Config) *Membership {
	return NewMembershipResolver(directory, cfg.Notification.GroupCacheSize, cfg.Notification.GroupCacheTTL)
}

func (m *Membership) ResolveTags(ctx context.Context, userID int64) ([]model.Tag, error) {
	tags := []model.Tag{model.UserTag(userID)}

	// [HOT_PATH] Check LRU cache first to avoid a network round trip per reconnect.
	groups, ok := m.cache.Get(userID)
	if !ok {
		var err error
		groups, err = m.directory.GetGroups(ctx, userID)
		if err != nil {
			// [RESILIENCE] The caller degrades to the user tag alone.
			return tags, fmt.Errorf("resolve groups of user %d: %w", userID, err)
		}
		m.cache.Add(userID, groups)
	}

	for _, g := range groups {
		tags = append(tags, model.ChannelTag(g))
	}
	return tags, nil
}

func (m *Membership) Invalidate(userID int64) {
	m.cache.Remove(userID)
}
