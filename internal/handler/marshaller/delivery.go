package marshaller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// Envelope is the wire form of a delivered notification.
type Envelope struct {
	Type     string    `json:"_type"`
	ID       int64     `json:"id"`
	Channel  string    `json:"channel"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
	Datetime time.Time `json:"datetime"`
}

// SystemFrame is the wire form of gateway generated signals.
type SystemFrame struct {
	Type    string `json:"_type"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent renders ev as JSON.
// The result is cached on the event, so a fan-out to many subscribers encodes once.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		return cached, nil
	}

	var (
		data []byte
		err  error
	)
	switch ev.GetKind() {
	case event.NotificationCreated:
		data, err = marshalNotification(ev)
	case event.Connected, event.Disconnected:
		data, err = json.Marshal(&SystemFrame{Type: ev.GetKind().String(), Payload: ev.GetPayload()})
	default:
		err = fmt.Errorf("marshaller: unsupported event kind %s", ev.GetKind())
	}
	if err != nil {
		return nil, err
	}

	ev.SetCached(data)
	return data, nil
}

func marshalNotification(ev event.Eventer) ([]byte, error) {
	msg, ok := ev.GetPayload().(*model.NotificationMessage)
	if !ok || msg == nil {
		return nil, fmt.Errorf("marshaller: event %s carries %T, want notification", ev.GetID(), ev.GetPayload())
	}

	return json.Marshal(&Envelope{
		Type:     ev.GetTarget().Delivery().String(),
		ID:       msg.ID,
		Channel:  msg.Channel,
		Subject:  msg.Subject,
		Message:  msg.Message,
		Datetime: msg.Datetime,
	})
}

// EventName is the stream-level name of ev. Notifications go out unnamed so that
// plain EventSource "message" listeners receive them.
func EventName(ev event.Eventer) string {
	switch ev.GetKind() {
	case event.Connected:
		return "connected"
	case event.Disconnected:
		return "disconnected"
	default:
		return ""
	}
}
