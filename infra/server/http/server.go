package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(New),
	fx.Invoke(func(*http.Server) {}),
)

// New builds the server and binds it to the fx lifecycle. The listener is opened in
// OnStart so a busy port fails startup instead of a background goroutine.
func New(lc fx.Lifecycle, cfg *config.Config, handler http.Handler, hub registry.Hubber, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("http server: listen %s: %w", srv.Addr, err)
			}

			logger.Info("[HTTP] server started", slog.String("address", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[HTTP] server stopped unexpectedly", slog.Any("err", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Streams never go idle on their own: close them first so Shutdown can drain.
			hub.Shutdown()

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			logger.Info("[HTTP] server stopping")
			return srv.Shutdown(shutdownCtx)
		},
	})

	return srv
}
