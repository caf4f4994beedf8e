package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboundEventer defines the contract for events that are being published
// from this service to the outside world (e.g. notification sent receipts).
type OutboundEventer interface {
	GetRoutingKey() string
	ToJSON() ([]byte, error)
}

// OutboundEvent is a concrete implementation for publishing.
type OutboundEvent struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	RoutingKey string `json:"-"`
	Payload    any    `json:"payload"`
	Timestamp  int64  `json:"timestamp"`
}

const EventSource = "im-notification-gateway"

// NewOutboundEvent creates a fresh event ready for publishing.
func NewOutboundEvent(routingKey string, payload any) *OutboundEvent {
	return &OutboundEvent{
		ID:         uuid.NewString(),
		Source:     EventSource,
		RoutingKey: routingKey,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
}

func (e *OutboundEvent) GetRoutingKey() string   { return e.RoutingKey }
func (e *OutboundEvent) ToJSON() ([]byte, error) { return json.Marshal(e) }
