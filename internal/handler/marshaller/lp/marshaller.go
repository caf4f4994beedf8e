package lpmarshaller

import (
	"encoding/json"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/handler/marshaller"
)

// Response defines the top-level JSON array to support event batching.
type Response struct {
	Events []json.RawMessage `json:"events"`
}

// MarshallEvents converts a slice of domain events into a single JSON batch.
// Events that cannot be encoded are left out of the batch.
func MarshallEvents(events []event.Eventer) ([]byte, error) {
	res := Response{
		Events: make([]json.RawMessage, 0, len(events)),
	}

	for _, ev := range events {
		data, err := marshaller.MarshallDeliveryEvent(ev)
		if err != nil {
			continue
		}
		res.Events = append(res.Events, data)
	}

	return json.Marshal(res)
}
