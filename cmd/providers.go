package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.uber.org/fx"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/infra/telemetry"
)

// ProvideTelemetry installs the OTel providers before anything else is built,
// so its shutdown hook runs last and flushes what the other modules logged.
func ProvideTelemetry(lc fx.Lifecycle, cfg *config.Config) (*telemetry.Telemetry, error) {
	tel, err := telemetry.Setup(context.Background(), cfg, ServiceName, version)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: tel.Shutdown,
	})
	return tel, nil
}

// ProvideLogger builds the process logger. The level follows log.level in the config
// file without a restart.
func ProvideLogger(cfg *config.Config, tel *telemetry.Telemetry) *slog.Logger {
	level := new(slog.LevelVar)
	if l, err := config.ParseLevel(cfg.Log.Level); err == nil {
		level.Set(l)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	if tel.Enabled() {
		handler = newFanoutHandler(level, handler, otelslog.NewHandler(ServiceName,
			otelslog.WithLoggerProvider(tel.LoggerProvider),
			otelslog.WithVersion(version),
		))
	}

	logger := slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("namespace", ServiceNamespace),
	)
	slog.SetDefault(logger)

	// [HOT_RELOAD]
	cfg.OnChange(func(next *config.Config) {
		l, err := config.ParseLevel(next.Log.Level)
		if err != nil || l == level.Level() {
			return
		}
		level.Set(l)
		logger.Info("LOG_LEVEL_CHANGED", "level", l.String())
	})

	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}
