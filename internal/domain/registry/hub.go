/*
Package registry provides the in-process tagged fan-out engine of the gateway.

Key Architectural Concepts:
  - Tag Cells: every routing tag with at least one listener is represented by a 'cell'
    holding the live subscribers registered under it. A subscriber may live in many cells.
  - Single Serialization Discipline: one RWMutex guards the combined tag->cell and
    id->subscriber maps, so the two views are never observed half-updated.
  - Non-blocking Fan-out: publishers only perform bounded, non-blocking enqueue attempts.
    A full subscriber queue drops the new event for that subscriber alone.
  - Prompt Teardown: every subscriber is bound to its request context; cancelling the
    context unregisters it without waiting for the next publish.
*/
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// ErrHubClosed is returned by Register once Shutdown has been called.
var ErrHubClosed = errors.New("registry: hub is shut down")

// Hubber defines the gateway for subscriber management and event routing.
type Hubber interface {
	// Register allocates a subscriber listening on tags and bound to ctx.
	Register(ctx context.Context, tags []model.Tag, meta ConnectMetadata) (Connector, error)
	// Unregister removes the subscriber from every tag. Idempotent.
	Unregister(connID uuid.UUID) bool
	// Resolve returns the subscribers addressed by tag; Broadcast resolves to everyone.
	Resolve(tag model.Tag) []Connector

	Broadcast(ev event.Eventer) int
	SendTo(tag model.Tag, ev event.Eventer) int
	// Deliver routes ev by its own target tag.
	Deliver(ev event.Eventer) int

	IsConnected(tag model.Tag) bool
	Stats() model.HubStats
	Shutdown()
}

// Hub implements a [TAGGED_REGISTRY] of live subscribers.
type Hub struct {
	mu sync.RWMutex

	// cells maps each tag to the subscribers listening on it.
	cells map[model.Tag]*cell
	// subscribers maps each subscriber to itself; its tag set is the reverse index.
	subscribers map[uuid.UUID]*connect

	closed    bool
	startedAt time.Time
	config    hubConfig
	logger    *slog.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
	unrouted  atomic.Uint64
}

type hubConfig struct {
	mailboxSize int
}

const DefaultMailboxSize = 256

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		cells:       make(map[model.Tag]*cell),
		subscribers: make(map[uuid.UUID]*connect),
		startedAt:   time.Now(),
		config:      hubConfig{mailboxSize: DefaultMailboxSize},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register creates the subscriber and indexes it under every owned tag.
// An empty tag set is valid: such a subscriber only receives broadcasts.
func (h *Hub) Register(ctx context.Context, tags []model.Tag, meta ConnectMetadata) (Connector, error) {
	conn := NewConnector(ctx, tags, h.config.mailboxSize, meta).(*connect)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil, ErrHubClosed
	}

	h.subscribers[conn.id] = conn
	for _, tag := range conn.tags {
		c, ok := h.cells[tag]
		if !ok {
			c = newCell(tag)
			h.cells[tag] = c
		}
		c.attach(conn)
	}
	total := len(h.subscribers)
	// Set under the lock so concurrent updates land in the order of the map changes.
	subscribersGauge.Set(float64(total))
	h.mu.Unlock()

	// [GHOST_CLEANUP]
	// Client disconnect cancels ctx; the subscriber leaves the registry right away
	// instead of lingering until a publish notices it is dead.
	context.AfterFunc(conn.ctx, func() { h.Unregister(conn.id) })

	h.logger.Debug("[HUB] subscriber registered",
		slog.String("conn_id", conn.id.String()),
		slog.Any("tags", model.TagStrings(conn.tags)),
		slog.Int("total", total),
	)

	return conn, nil
}

// Unregister performs [GRACEFUL_RECLAMATION] of a subscriber. It reports whether the
// subscriber was still registered.
func (h *Hub) Unregister(connID uuid.UUID) bool {
	h.mu.Lock()
	conn, ok := h.subscribers[connID]
	if !ok {
		h.mu.Unlock()
		return false
	}

	delete(h.subscribers, connID)
	for _, tag := range conn.tags {
		if c, ok := h.cells[tag]; ok && c.detach(connID) {
			delete(h.cells, tag)
		}
	}
	// Closing under the write lock: no publisher holds the read lock now,
	// so nothing can be enqueued after this point.
	conn.Close()
	total := len(h.subscribers)
	subscribersGauge.Set(float64(total))
	h.mu.Unlock()

	h.logger.Debug("[HUB] subscriber unregistered",
		slog.String("conn_id", connID.String()),
		slog.Uint64("dropped", conn.GetDropped()),
		slog.Int("total", total),
	)
	return true
}

func (h *Hub) Resolve(tag model.Tag) []Connector {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if tag.IsBroadcast() {
		res := make([]Connector, 0, len(h.subscribers))
		for _, conn := range h.subscribers {
			res = append(res, conn)
		}
		return res
	}

	c, ok := h.cells[tag]
	if !ok {
		return nil
	}
	res := make([]Connector, 0, c.size())
	for _, conn := range c.sessions {
		res = append(res, conn)
	}
	return res
}

// Broadcast enqueues ev to every registered subscriber regardless of its tags.
func (h *Hub) Broadcast(ev event.Eventer) int {
	h.mu.RLock()
	var sent, dropped int
	for _, conn := range h.subscribers {
		if conn.Send(ev) {
			sent++
		} else {
			dropped++
		}
	}
	h.mu.RUnlock()

	h.account(model.DeliveryBroadcast, sent, dropped)
	return sent
}

// SendTo enqueues ev to the subscribers of one tag. Zero listeners is not an error:
// the event is simply not stored anywhere.
func (h *Hub) SendTo(tag model.Tag, ev event.Eventer) int {
	if tag.IsBroadcast() {
		return h.Broadcast(ev)
	}

	h.mu.RLock()
	var sent, dropped int
	if c, ok := h.cells[tag]; ok {
		sent, dropped = c.deliver(ev)
	}
	h.mu.RUnlock()

	h.account(tag.Delivery(), sent, dropped)
	return sent
}

func (h *Hub) Deliver(ev event.Eventer) int {
	target := ev.GetTarget()
	if target.IsZero() {
		h.logger.Warn("[HUB] event without target", slog.String("event_id", ev.GetID()))
		return 0
	}
	return h.SendTo(target, ev)
}

func (h *Hub) account(kind model.Delivery, sent, dropped int) {
	label := kind.String()
	if sent > 0 {
		h.delivered.Add(uint64(sent))
		deliveredCounter.WithLabelValues(label).Add(float64(sent))
	}
	if dropped > 0 {
		h.dropped.Add(uint64(dropped))
		droppedCounter.WithLabelValues(label).Add(float64(dropped))
	}
	if sent == 0 && dropped == 0 {
		h.unrouted.Add(1)
		unroutedCounter.WithLabelValues(label).Inc()
	}
}

func (h *Hub) IsConnected(tag model.Tag) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if tag.IsBroadcast() {
		return len(h.subscribers) > 0
	}
	_, ok := h.cells[tag]
	return ok
}

func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	stats := model.HubStats{
		TotalSubscribers: len(h.subscribers),
		TotalTags:        len(h.cells),
		Tags:             make([]model.TagStats, 0, len(h.cells)),
	}
	for tag, c := range h.cells {
		stats.Tags = append(stats.Tags, model.TagStats{Tag: tag.String(), Subscribers: c.size()})
	}
	h.mu.RUnlock()

	slices.SortFunc(stats.Tags, func(a, b model.TagStats) int {
		if a.Subscribers != b.Subscribers {
			return b.Subscribers - a.Subscribers
		}
		if a.Tag < b.Tag {
			return -1
		}
		if a.Tag > b.Tag {
			return 1
		}
		return 0
	})

	stats.Delivered = h.delivered.Load()
	stats.Dropped = h.dropped.Load()
	stats.Unrouted = h.unrouted.Load()
	stats.Uptime = time.Since(h.startedAt)
	return stats
}

// Shutdown closes every live subscriber and refuses new registrations.
// Stream handlers observe their queue closing and end their responses.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	conns := h.subscribers
	h.subscribers = make(map[uuid.UUID]*connect)
	h.cells = make(map[model.Tag]*cell)
	for _, conn := range conns {
		conn.Close()
	}
	subscribersGauge.Set(0)
	h.mu.Unlock()
	h.logger.Info("[HUB] shut down", slog.Int("closed_subscribers", len(conns)))
}

// consistent checks that the tag->subscriber and subscriber->tag views agree.
func (h *Hub) consistent() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, conn := range h.subscribers {
		for _, tag := range conn.tags {
			c, ok := h.cells[tag]
			if !ok || !c.has(id) {
				return fmt.Errorf("subscriber %s owns %s but is missing from its cell", id, tag)
			}
		}
	}
	for tag, c := range h.cells {
		if c.size() == 0 {
			return fmt.Errorf("cell %s is empty", tag)
		}
		for id := range c.sessions {
			conn, ok := h.subscribers[id]
			if !ok {
				return fmt.Errorf("cell %s holds unregistered subscriber %s", tag, id)
			}
			if !slices.Contains(conn.tags, tag) {
				return fmt.Errorf("cell %s holds subscriber %s that does not own it", tag, id)
			}
		}
	}
	return nil
}
