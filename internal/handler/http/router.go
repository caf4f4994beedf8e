package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
	"github.com/webitel/im-notification-gateway/internal/handler/lp"
	"github.com/webitel/im-notification-gateway/internal/handler/sse"
	"github.com/webitel/im-notification-gateway/internal/handler/web"
	"github.com/webitel/im-notification-gateway/internal/handler/ws"
)

const serverName = "im-notification-gateway"

type RouterParams struct {
	fx.In

	Config       *config.Config
	Logger       *slog.Logger
	Hub          registry.Hubber
	Notification *NotificationHandler
	SSE          *sse.SSEHandler
	WS           *ws.WSHandler
	LP           *lp.LPHandler
}

// NewRouter assembles the public HTTP surface.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: p.Config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	// Unauthenticated, so totals only.
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		web.JSON(w, http.StatusOK, p.Hub.Stats().Totals())
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/notification", func(r chi.Router) {
		r.Post("/", p.Notification.Send)
		r.Get("/log", p.Notification.Log)

		r.Get("/stream", StreamGauge("sse", p.SSE.Stream))
		r.Get("/stream/{bearer}", StreamGauge("sse", p.SSE.StreamPath))
		r.Get("/ws", StreamGauge("ws", p.WS.ServeHTTP))
		r.Get("/poll", StreamGauge("lp", p.LP.Poll))

		r.Get("/subscribe/{group}", p.Notification.SubscribeGroup)
		r.Delete("/subscribe/{group}", p.Notification.UnsubscribeGroup)

		r.Post("/group", p.Notification.CreateGroup)
		r.Delete("/group/{group_name}/{admin_email}", p.Notification.RemoveGroup)
	})

	// Span names carry the method only, so path bearers never end up in traces.
	return otelhttp.NewHandler(r, serverName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
}
