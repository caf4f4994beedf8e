package service

import (
	"context"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// Directory is the external notification service: it owns group membership and the
// message log. The gateway only calls it; it never caches anything but memberships.
type Directory interface {
	GetGroups(ctx context.Context, userID int64) ([]string, error)
	AddSubscriber(ctx context.Context, userID int64, group string) error
	RemoveSubscriber(ctx context.Context, userID int64, group string) error

	AddGroup(ctx context.Context, group model.Group, token string) error
	RemoveGroup(ctx context.Context, group model.Group) error

	// AddMessage records a message and returns the canonical id and timestamp for its envelope.
	AddMessage(ctx context.Context, channel, subject, message string) (*model.RecordedMessage, error)
	GetMessages(ctx context.Context, channels []string, offset, limit int64) (*model.NotificationLog, error)
}
