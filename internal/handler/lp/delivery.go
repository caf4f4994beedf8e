package lp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	lpmarshaller "github.com/webitel/im-notification-gateway/internal/handler/marshaller/lp"
	"github.com/webitel/im-notification-gateway/internal/handler/web"
	"github.com/webitel/im-notification-gateway/internal/service"
)

const (
	transport   = "lp"
	pollTimeout = 30 * time.Second
	maxBatch    = 16
)

type LPHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	timeout   time.Duration
}

func NewLPHandler(logger *slog.Logger, deliverer service.Deliverer) *LPHandler {
	return &LPHandler{
		logger:    logger,
		deliverer: deliverer,
		timeout:   pollTimeout,
	}
}

// Poll handles the long-polling request.
// It holds the connection until an event arrives or timeout occurs. Only events published
// while the request is open are returned; history is served by the log endpoint.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Temporary Subscription.
	// The connector lives only for the duration of this HTTP request.
	conn, err := h.deliverer.Subscribe(r.Context(), web.Bearer(r), web.ConnectMetadata(r, transport))
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	defer h.deliverer.Unsubscribe(conn.GetID())

	var events []event.Eventer

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	// 2. Wait for data or timeout.
	select {
	case <-r.Context().Done():
		// Client disconnected.
		return

	case <-timer.C:
		// Standard Long-Polling timeout to prevent hanging connections.
		w.WriteHeader(http.StatusNoContent)
		return

	case ev, ok := <-conn.Recv():
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		events = append(events, ev)

		// Drain what is already queued to batch it into this response.
	drainLoop:
		for range maxBatch - 1 {
			select {
			case nextEv, ok := <-conn.Recv():
				if !ok {
					break drainLoop
				}
				events = append(events, nextEv)
			default:
				break drainLoop
			}
		}
	}

	// 3. Final transmission.
	data, err := lpmarshaller.MarshallEvents(events)
	if err != nil {
		h.logger.Error("LP_MARSHAL_FAILED", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
