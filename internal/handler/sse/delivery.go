package sse

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	ssemarshaller "github.com/webitel/im-notification-gateway/internal/handler/marshaller/sse"
	"github.com/webitel/im-notification-gateway/internal/handler/web"
	"github.com/webitel/im-notification-gateway/internal/service"
)

const (
	transport        = "sse"
	defaultKeepAlive = 25 * time.Second
)

type SSEHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	keepAlive time.Duration
}

func NewSSEHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *SSEHandler {
	keepAlive := cfg.HTTP.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &SSEHandler{
		logger:    logger,
		deliverer: deliverer,
		keepAlive: keepAlive,
	}
}

// Stream serves GET /notification/stream with the bearer taken from the header or query.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, web.Bearer(r))
}

// StreamPath serves GET /notification/stream/{bearer}.
func (h *SSEHandler) StreamPath(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "bearer"))
}

func (h *SSEHandler) serve(w http.ResponseWriter, r *http.Request, bearer string) {
	rc := http.NewResponseController(w)

	// 1. SUBSCRIBE: the connector is bound to the request context
	conn, err := h.deliverer.Subscribe(r.Context(), bearer, web.ConnectMetadata(r, transport))
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	defer h.deliverer.Unsubscribe(conn.GetID())

	log := h.logger.With("conn_id", conn.GetID().String(), "user_id", conn.GetMetadata().UserID)

	// Streams outlive any server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug("[SSE] clearing write deadline failed", "err", err)
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// 2. HANDSHAKE
	if !h.write(w, rc, event.NewConnectedEvent(conn.GetID(), conn.GetTags())) {
		return
	}
	log.Info("[SSE] stream opened", "tags", model.TagStrings(conn.GetTags()))
	defer log.Info("[SSE] stream closed", "dropped", conn.GetDropped())

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	// 3. PUMP
	for {
		select {
		case <-r.Context().Done():
			return

		case ev, ok := <-conn.Recv():
			if !ok {
				// A departed client closes the queue too; only a live one hears about shutdown.
				if r.Context().Err() != nil {
					return
				}
				h.write(w, rc, event.NewDisconnectedEvent("server is shutting down", model.DisconnectShutdown))
				return
			}
			frame, err := ssemarshaller.MarshallFrame(ev)
			if err != nil {
				log.Warn("[SSE] skipping event that cannot be encoded", "event_id", ev.GetID(), "err", err)
				continue
			}
			if !h.flush(w, rc, frame) {
				return
			}

		case <-ticker.C:
			if err := ssemarshaller.WriteKeepAlive(w); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *SSEHandler) write(w http.ResponseWriter, rc *http.ResponseController, ev event.Eventer) bool {
	frame, err := ssemarshaller.MarshallFrame(ev)
	if err != nil {
		h.logger.Error("[SSE] system frame encoding failed", "kind", ev.GetKind().String(), "err", err)
		return false
	}
	return h.flush(w, rc, frame)
}

func (h *SSEHandler) flush(w http.ResponseWriter, rc *http.ResponseController, frame []byte) bool {
	if _, err := w.Write(frame); err != nil {
		return false
	}
	return rc.Flush() == nil
}
