package event

import (
	"strconv"
	"sync/atomic"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

var (
	_ Eventer    = (*NotificationV1Event)(nil)
	_ Exportable = (*NotificationV1Event)(nil)
)

// RoutingKeyNotificationSent is the topic the gateway announces delivered notifications on.
const RoutingKeyNotificationSent = "notification.sent.v1"

// NotificationV1Event wraps a recorded envelope together with the tag it was addressed to.
//
// [STRATEGY]
// The same instance is fanned out to every matching subscriber, so the marshalled
// wire form is cached once and shared by all of them.
type NotificationV1Event struct {
	message *model.NotificationMessage
	target  model.Tag
	cached  atomic.Pointer[[]byte]
}

func NewNotificationV1Event(target model.Tag, msg *model.NotificationMessage) *NotificationV1Event {
	return &NotificationV1Event{
		message: msg,
		target:  target,
	}
}

func (e *NotificationV1Event) GetID() string                        { return strconv.FormatInt(e.message.ID, 10) }
func (e *NotificationV1Event) GetKind() EventKind                   { return NotificationCreated }
func (e *NotificationV1Event) GetTarget() model.Tag                 { return e.target }
func (e *NotificationV1Event) GetOccurredAt() int64                 { return e.message.Datetime.UnixMilli() }
func (e *NotificationV1Event) GetPayload() any                      { return e.message }
func (e *NotificationV1Event) Message() *model.NotificationMessage { return e.message }
func (e *NotificationV1Event) Delivery() model.Delivery             { return e.target.Delivery() }
func (e *NotificationV1Event) GetRoutingKey() string                { return RoutingKeyNotificationSent }

func (e *NotificationV1Event) GetCached() []byte {
	if p := e.cached.Load(); p != nil {
		return *p
	}
	return nil
}

func (e *NotificationV1Event) SetCached(v []byte) { e.cached.Store(&v) }
