package event

import "github.com/webitel/im-notification-gateway/internal/domain/model"

type EventKind int16

const (
	Connected           EventKind = iota + 1 // [SYSTEM]
	Disconnected                             // [SYSTEM]
	NotificationCreated                      // [BUSINESS]
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case NotificationCreated:
		return "NotificationCreated"
	default:
		return "Unknown"
	}
}

// Eventer defines the contract for all data packets flowing through the Hub.
//
// Implementations are immutable once handed to the Hub, except for the wire cache,
// which must tolerate concurrent SetCached calls from several stream goroutines.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetTarget() model.Tag
	GetOccurredAt() int64
	GetPayload() any
	GetCached() []byte
	SetCached([]byte)
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// If it returns an empty string, the dispatcher will skip publishing.
	GetRoutingKey() string
}
