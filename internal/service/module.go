package service

import (
	"log/slog"

	"github.com/webitel/im-notification-gateway/config"
	"go.uber.org/fx"
)

var Module = fx.Module("service",
	fx.Provide(
		fx.Annotate(NewTokenServiceFromConfig, fx.As(new(Auther))),

		// [DECORATOR_CHAIN] Raw LRU resolver wrapped by the logging middleware.
		func(d Directory, cfg *config.Config, logger *slog.Logger) MembershipResolver {
			return NewMembershipMiddleware(NewMembershipResolverFromConfig(d, cfg), logger)
		},

		fx.Annotate(NewDeliveryService, fx.As(new(Deliverer))),
		fx.Annotate(NewNotificationService, fx.As(new(Notifier))),
	),
)
