package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is a generic envelope for signals generated by the gateway itself
// (handshake, teardown). It is addressed to a single connection, never routed by the Hub.
type SystemEvent struct {
	id         string
	kind       EventKind
	occurredAt int64
	payload    any
	cached     atomic.Pointer[[]byte]
}

func (e *SystemEvent) GetID() string        { return e.id }
func (e *SystemEvent) GetKind() EventKind   { return e.kind }
func (e *SystemEvent) GetTarget() model.Tag { return model.Tag{} }
func (e *SystemEvent) GetOccurredAt() int64 { return e.occurredAt }
func (e *SystemEvent) GetPayload() any      { return e.payload }

func (e *SystemEvent) GetCached() []byte {
	if p := e.cached.Load(); p != nil {
		return *p
	}
	return nil
}

func (e *SystemEvent) SetCached(v []byte) { e.cached.Store(&v) }

// NewSystemEvent is a universal factory for creating any signal.
func NewSystemEvent(kind EventKind, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		kind:       kind,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

// NewConnectedEvent builds the handshake sent as the first frame of every stream.
func NewConnectedEvent(connID uuid.UUID, tags []model.Tag) *SystemEvent {
	return NewSystemEvent(Connected, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  connID.String(),
		ServerVersion: model.ServerVersion,
		Tags:          model.TagStrings(tags),
	})
}

// NewDisconnectedEvent builds the final frame sent when the server ends a stream.
func NewDisconnectedEvent(reason, code string) *SystemEvent {
	return NewSystemEvent(Disconnected, &model.DisconnectedPayload{
		Reason: reason,
		Code:   code,
	})
}
