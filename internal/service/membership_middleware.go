package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// MembershipMiddleware implements [DECORATOR_PATTERN] to add observability
// to tag resolution without touching business logic.
type MembershipMiddleware struct {
	Next   MembershipResolver
	Logger *slog.Logger
}

func NewMembershipMiddleware(next MembershipResolver, logger *slog.Logger) MembershipResolver {
	return &MembershipMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *MembershipMiddleware) ResolveTags(ctx context.Context, userID int64) ([]model.Tag, error) {
	start := time.Now()

	tags, err := m.Next.ResolveTags(ctx, userID)
	duration := time.Since(start)

	if err != nil {
		m.Logger.Warn("MEMBERSHIP_RESOLUTION_DEGRADED",
			"err", err,
			"user_id", userID,
			"tags", len(tags),
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("MEMBERSHIP_RESOLUTION_COMPLETED",
			"user_id", userID,
			"tags", len(tags),
			"duration_ms", duration.Milliseconds(),
		)
	}

	return tags, err
}

func (m *MembershipMiddleware) Invalidate(userID int64) {
	m.Next.Invalidate(userID)
}
