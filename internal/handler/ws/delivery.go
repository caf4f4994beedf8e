package ws

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/domain/registry"
	"github.com/webitel/im-notification-gateway/internal/handler/marshaller"
	"github.com/webitel/im-notification-gateway/internal/handler/web"
	"github.com/webitel/im-notification-gateway/internal/service"
)

const (
	transport  = "ws"
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
)

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	upgrader  websocket.Upgrader
	pingEvery time.Duration
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *WSHandler {
	origins := cfg.CORS.AllowedOrigins
	pingEvery := cfg.HTTP.KeepAlive
	if pingEvery <= 0 {
		pingEvery = pingPeriod
	}

	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		pingEvery: pingEvery,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. RESOLVE IDENTITY before the upgrade, so the bearer header is still readable
	bearer := web.Bearer(r)

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	// 3. SUBSCRIBE VIA THE SAME SERVICE
	conn, err := h.deliverer.Subscribe(r.Context(), bearer, web.ConnectMetadata(r, transport))
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, model.PublicMessage(err)),
			time.Now().Add(writeWait))
		return
	}
	defer h.deliverer.Unsubscribe(conn.GetID())

	log := h.logger.With("conn_id", conn.GetID().String(), "user_id", conn.GetMetadata().UserID)
	log.Info("ws opened", "tags", model.TagStrings(conn.GetTags()))

	// The stream is server-to-client only; reading is needed to observe close frames.
	gone := make(chan struct{})
	go h.drain(ws, conn, gone)

	if !h.send(ws, event.NewConnectedEvent(conn.GetID(), conn.GetTags())) {
		return
	}

	ticker := time.NewTicker(h.pingEvery)
	defer ticker.Stop()

	// 4. MAIN WS PUMP LOOP
	for {
		select {
		case <-conn.Done():
			h.finish(ws, r, gone, log)
			return

		case ev, ok := <-conn.Recv():
			if !ok {
				h.finish(ws, r, gone, log)
				return
			}
			if !h.send(ws, ev) {
				log.Warn("ws send failed")
				return
			}

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) send(ws *websocket.Conn, ev event.Eventer) bool {
	data, err := marshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		h.logger.Error("failed to marshal ws event", "error", err)
		// Skipping a bad event keeps the stream alive.
		return true
	}

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data) == nil
}

// finish ends a stream whose connector was closed. The shutdown notice goes out only
// when the peer is still reading.
func (h *WSHandler) finish(ws *websocket.Conn, r *http.Request, gone <-chan struct{}, log *slog.Logger) {
	select {
	case <-gone:
		log.Info("ws closed", "reason", "peer")
		return
	case <-r.Context().Done():
		log.Info("ws closed", "reason", "request")
		return
	default:
	}

	h.send(ws, event.NewDisconnectedEvent("server is shutting down", model.DisconnectShutdown))
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
		time.Now().Add(writeWait))
	log.Info("ws closed", "reason", "shutdown")
}

// drain discards client frames and unsubscribes once the peer goes away.
// gone is closed before the connector, so the pump can tell the two apart.
func (h *WSHandler) drain(ws *websocket.Conn, conn registry.Connector, gone chan<- struct{}) {
	for {
		if _, _, err := ws.NextReader(); err != nil {
			close(gone)
			h.deliverer.Unsubscribe(conn.GetID())
			return
		}
	}
}
