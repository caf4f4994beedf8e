package clientdi

import (
	"context"
	"log/slog"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/infra/client/notification"
	"github.com/webitel/im-notification-gateway/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"notification_clients",

	// [CONSTRUCTOR] Provides the resilient directory client, or the in-memory one when no address is set
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (service.Directory, error) {
		if cfg.Notification.DirectoryAddress == "" {
			logger.Warn("[DIRECTORY] no directory address configured, using in-memory store")
			return notification.NewMemory(), nil
		}

		client, err := notification.NewFromConfig(cfg, logger)
		if err != nil {
			return nil, err
		}

		// [LIFECYCLE] Ensures the gRPC connection is closed gracefully on app shutdown
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		return client, nil
	}),
)
