package cmd

import (
	"log/slog"

	"github.com/webitel/im-notification-gateway/config"
	clientdi "github.com/webitel/im-notification-gateway/infra/client/di"
	httpsrv "github.com/webitel/im-notification-gateway/infra/server/http"
	pubsubadapter "github.com/webitel/im-notification-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
	amqpdi "github.com/webitel/im-notification-gateway/internal/handler/amqp"
	httphandler "github.com/webitel/im-notification-gateway/internal/handler/http"
	"github.com/webitel/im-notification-gateway/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideTelemetry,
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		clientdi.Module,
		registry.Module,
		service.Module,
		pubsubadapter.Module,
		amqpdi.Module,
		httphandler.Module,
		httpsrv.Module,
	)
}
