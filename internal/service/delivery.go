package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR STREAM HANDLERS (SSE/WebSocket/long-poll)
type Deliverer interface {
	// Subscribe opens a subscriber for the bearer's owner. An absent or invalid bearer
	// still yields a subscriber, one that only receives broadcasts.
	Subscribe(ctx context.Context, bearer string, meta registry.ConnectMetadata) (registry.Connector, error)
	Unsubscribe(connID uuid.UUID)
}

type DeliveryService struct {
	hub        registry.Hubber
	auth       Auther
	membership MembershipResolver
	logger     *slog.Logger
}

func NewDeliveryService(hub registry.Hubber, auth Auther, membership MembershipResolver, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		hub:        hub,
		auth:       auth,
		membership: membership,
		logger:     logger,
	}
}

// [SUBSCRIBE] HANDLES CONNECTION LIFECYCLE INITIATION
func (s *DeliveryService) Subscribe(ctx context.Context, bearer string, meta registry.ConnectMetadata) (registry.Connector, error) {
	tags := s.resolveTags(ctx, bearer, &meta)

	// The connector is bound to ctx: the request ending unregisters it.
	conn, err := s.hub.Register(ctx, tags, meta)
	if err != nil {
		return nil, model.NewInternal("failed to open notification stream", err)
	}
	return conn, nil
}

// resolveTags never fails: identity and directory problems only narrow the tag set.
func (s *DeliveryService) resolveTags(ctx context.Context, bearer string, meta *registry.ConnectMetadata) []model.Tag {
	if bearer == "" {
		return nil
	}

	identity, err := s.auth.DecodeBearer(bearer)
	if err != nil {
		s.logger.Debug("[STREAM] anonymous subscriber, bearer rejected", slog.Any("err", err))
		return nil
	}
	meta.UserID = identity.UserID

	// On error the resolver still hands back the user tag.
	tags, err := s.membership.ResolveTags(ctx, identity.UserID)
	if err != nil {
		s.logger.Warn("[STREAM] directory unavailable, subscribing with user tag only",
			slog.String("user_id", userIDString(identity.UserID)),
			slog.Any("err", err),
		)
	}
	if len(tags) == 0 {
		tags = []model.Tag{model.UserTag(identity.UserID)}
	}
	return tags
}

// [UNSUBSCRIBE] TRIGGERS CLEANUP
func (s *DeliveryService) Unsubscribe(connID uuid.UUID) {
	s.hub.Unregister(connID)
}
