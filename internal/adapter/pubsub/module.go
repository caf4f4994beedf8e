package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-notification-gateway/config"
	infrapubsub "github.com/webitel/im-notification-gateway/infra/pubsub"
	"github.com/webitel/im-notification-gateway/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub-adapter",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) infrapubsub.Provider {
			p := infrapubsub.NewProvider(cfg, logger)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error { return p.Close() },
			})
			return p
		},
		NewPublisherProvider,
		NewSubscriberProvider,

		func(pp *PublisherProvider, logger *slog.Logger) (EventDispatcher, error) {
			pub, err := pp.Build(EventsExchange)
			if err != nil {
				return nil, err
			}
			return NewEventDispatcher(pub, logger), nil
		},
		// [PORT_BINDING] The service layer only sees the narrow Exporter port.
		func(d EventDispatcher) service.Exporter { return d },
	),
)
