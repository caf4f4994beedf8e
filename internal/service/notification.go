package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
	"github.com/webitel/im-notification-gateway/internal/service/dto"
)

// Notifier is the publish and group management surface used by HTTP and bus handlers.
type Notifier interface {
	Send(ctx context.Context, senderToken string, req *dto.SendNotificationRequest) (*model.NotificationMessage, error)
	Log(ctx context.Context, bearer string, page int64) (*model.NotificationLog, error)

	SubscribeGroup(ctx context.Context, bearer, group string) error
	UnsubscribeGroup(ctx context.Context, bearer, group string) error

	// CreateGroup registers the group and returns its sender token.
	CreateGroup(ctx context.Context, bearer string, req *dto.AddGroupRequest) (string, error)
	RemoveGroup(ctx context.Context, bearer, group, adminEmail string) error
}

// Exporter re-publishes delivered events to the message bus.
type Exporter interface {
	Publish(ctx context.Context, ev event.Eventer) error
}

type NotificationService struct {
	hub        registry.Hubber
	auth       Auther
	directory  Directory
	membership MembershipResolver
	exporter   Exporter
	validate   *Validator
	pageSize   int64
	logger     *slog.Logger
}

func NewNotificationService(
	hub registry.Hubber,
	auth Auther,
	directory Directory,
	membership MembershipResolver,
	exporter Exporter,
	cfg *config.Config,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		hub:        hub,
		auth:       auth,
		directory:  directory,
		membership: membership,
		exporter:   exporter,
		validate:   NewValidator(),
		pageSize:   cfg.Notification.PageSize,
		logger:     logger,
	}
}

// Send records the message in the log store and fans it out to the live subscribers of
// its address. Fan-out is best effort: nobody listening is still a successful send.
func (s *NotificationService) Send(ctx context.Context, senderToken string, req *dto.SendNotificationRequest) (*model.NotificationMessage, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	grant, err := s.auth.VerifySenderToken(senderToken)
	if err != nil {
		return nil, err
	}

	target, err := model.ParseTag(req.Address)
	if err != nil {
		return nil, err
	}

	if !grant.Permits(target) {
		return nil, model.NewUnauthorized(fmt.Sprintf("sender token is not valid for %s", target), nil)
	}

	// [CANONICAL_IDENTITY] The log store assigns id and timestamp.
	recorded, err := s.directory.AddMessage(ctx, target.String(), req.Subject, req.Message)
	if err != nil {
		return nil, model.NewInternal("failed to generate message ID", err)
	}

	msg := &model.NotificationMessage{
		ID:       recorded.ID,
		Channel:  target.String(),
		Subject:  req.Subject,
		Message:  req.Message,
		Datetime: recorded.Datetime,
	}
	ev := event.NewNotificationV1Event(target, msg)

	// [LOCAL_DISPATCH] Never blocks, never fails.
	n := s.hub.Deliver(ev)

	s.logger.Info("NOTIFICATION_SENT",
		"msg_id", msg.ID,
		"target", target.String(),
		"sender", grant.AdminEmail,
		"subscribers", n,
	)

	// [GLOBAL_DISPATCH] Receipts are informational; a bus outage must not fail the publish.
	if s.exporter != nil {
		if err := s.exporter.Publish(ctx, ev); err != nil {
			s.logger.Warn("NOTIFICATION_EXPORT_FAILED", "msg_id", msg.ID, "err", err)
		}
	}

	return msg, nil
}

// Log returns one page of history for everything the caller can receive: broadcasts, plus
// its own user tag and groups when the bearer is valid.
func (s *NotificationService) Log(ctx context.Context, bearer string, page int64) (*model.NotificationLog, error) {
	if page < 0 {
		return nil, model.NewBadRequest("page must not be negative", nil)
	}

	channels := []string{model.BroadcastTag().String()}
	if identity, err := s.auth.DecodeBearer(bearer); err == nil {
		tags, err := s.membership.ResolveTags(ctx, identity.UserID)
		if err != nil {
			s.logger.Warn("LOG_MEMBERSHIP_DEGRADED", "user_id", identity.UserID, "err", err)
		}
		if len(tags) == 0 {
			tags = []model.Tag{model.UserTag(identity.UserID)}
		}
		channels = append(channels, model.TagStrings(tags)...)
	}

	logs, err := s.directory.GetMessages(ctx, channels, page*s.pageSize, s.pageSize)
	if err != nil {
		return nil, model.NewInternal("failed to get logs", err)
	}
	return logs, nil
}

func (s *NotificationService) SubscribeGroup(ctx context.Context, bearer, group string) error {
	identity, err := s.auth.DecodeBearer(bearer)
	if err != nil {
		return err
	}
	if group == "" {
		return model.NewBadRequest("group is required", nil)
	}

	if err := s.directory.AddSubscriber(ctx, identity.UserID, group); err != nil {
		return model.NewInternal("failed to subscribe to group", err)
	}
	// Streams opened from now on pick the group up; open ones keep their tag set.
	s.membership.Invalidate(identity.UserID)

	s.logger.Info("GROUP_SUBSCRIBED", "user_id", identity.UserID, "group", group)
	return nil
}

func (s *NotificationService) UnsubscribeGroup(ctx context.Context, bearer, group string) error {
	identity, err := s.auth.DecodeBearer(bearer)
	if err != nil {
		return err
	}
	if group == "" {
		return model.NewBadRequest("group is required", nil)
	}

	if err := s.directory.RemoveSubscriber(ctx, identity.UserID, group); err != nil {
		return model.NewInternal("failed to clear subscription", err)
	}
	s.membership.Invalidate(identity.UserID)

	s.logger.Info("GROUP_UNSUBSCRIBED", "user_id", identity.UserID, "group", group)
	return nil
}

func (s *NotificationService) CreateGroup(ctx context.Context, bearer string, req *dto.AddGroupRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", err
	}
	if _, err := s.auth.DecodeBearer(bearer); err != nil {
		return "", err
	}

	// [SINGLE_ISSUANCE] One sender token per group, handed out once, at creation.
	token, err := s.auth.IssueSenderToken(req.GroupName, req.AdminEmail)
	if err != nil {
		return "", err
	}

	group := model.Group{Name: req.GroupName, AdminEmail: req.AdminEmail}
	if err := s.directory.AddGroup(ctx, group, token); err != nil {
		return "", model.NewInternal("failed to add group", err)
	}

	s.logger.Info("GROUP_CREATED", "group", group.Name, "admin_email", group.AdminEmail)
	return token, nil
}

func (s *NotificationService) RemoveGroup(ctx context.Context, bearer, group, adminEmail string) error {
	if _, err := s.auth.DecodeBearer(bearer); err != nil {
		return err
	}
	if group == "" || adminEmail == "" {
		return model.NewBadRequest("group name and admin email are required", nil)
	}

	if err := s.directory.RemoveGroup(ctx, model.Group{Name: group, AdminEmail: adminEmail}); err != nil {
		return model.NewInternal("failed to remove group", err)
	}

	s.logger.Info("GROUP_REMOVED", "group", group, "admin_email", adminEmail)
	return nil
}
