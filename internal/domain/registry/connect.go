package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (SERVICE/TRANSPORT)
// A Connector is one live subscriber: an identity, the tags it listens on and
// a bounded outbound queue.
type Connector interface {
	GetID() uuid.UUID
	GetTags() []model.Tag
	GetMetadata() ConnectMetadata
	GetDropped() uint64

	// Send is non-blocking. It returns false when the queue is full or the connector is closed.
	Send(ev event.Eventer) bool
	// Recv is closed once the connector is closed.
	Recv() <-chan event.Eventer
	// Done is closed as soon as the connector is cancelled, before the queue is closed.
	Done() <-chan struct{}
	Close()
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Transport string
	RemoteIP  string
	UserAgent string
	UserID    int64
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	tags      []model.Tag
	metadata  ConnectMetadata
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// [SEND_GATE]
	// mu serializes Send against Close so that no write can ever hit a closed queue.
	mu     sync.Mutex
	closed bool
	sendCh chan event.Eventer

	droppedCount atomic.Uint64
}

// NewConnector builds a subscriber bound to ctx. Broadcast is never stored as an owned
// tag (broadcast reaches everyone implicitly) and duplicate tags are collapsed.
func NewConnector(ctx context.Context, tags []model.Tag, bufferSize int, meta ConnectMetadata) Connector {
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		tags:      normalizeTags(tags),
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, max(bufferSize, 1)),
	}
}

func normalizeTags(tags []model.Tag) []model.Tag {
	seen := make(map[model.Tag]struct{}, len(tags))
	res := make([]model.Tag, 0, len(tags))
	for _, t := range tags {
		if t.IsZero() || t.IsBroadcast() {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		res = append(res, t)
	}
	return res
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID             { return c.id }
func (c *connect) GetTags() []model.Tag         { return c.tags }
func (c *connect) GetMetadata() ConnectMetadata { return c.metadata }
func (c *connect) GetDropped() uint64           { return c.droppedCount.Load() }
func (c *connect) Recv() <-chan event.Eventer   { return c.sendCh }
func (c *connect) Done() <-chan struct{}        { return c.ctx.Done() }

// Send enqueues without ever blocking the publisher.
// On a full queue the NEW event is dropped for this subscriber only.
func (c *connect) Send(ev event.Eventer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.sendCh <- ev:
		return true
	default:
		// [BACKPRESSURE] Slow consumer: shed load instead of stalling the sender.
		c.droppedCount.Add(1)
		return false
	}
}

// Close terminates the session. Safe to call any number of times from any goroutine.
func (c *connect) Close() {
	// [SIGNAL_ABORT] Cancel first so a stream loop selecting on Done() wakes up immediately.
	c.cancelFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	// [UPSTREAM_NOTIFY] Closing the channel signals the stream handler (via !ok).
	close(c.sendCh)
}
