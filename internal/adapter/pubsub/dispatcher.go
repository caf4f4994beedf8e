package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/webitel/im-notification-gateway/internal/domain/event"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

var errNilEvent = errors.New("event dispatcher: cannot publish nil event")

// EventDispatcher announces hub events on the bus.
// It also exposes the raw publisher so the router can park poison messages with it.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		logger:    logger,
	}
}

// Publish sends ev under its routing key as a model.OutboundEvent. Only Exportable events
// with a non-empty key leave the process; everything else is a silent no-op.
func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return errNilEvent
	}

	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return nil
	}

	out := model.NewOutboundEvent(exp.GetRoutingKey(), ev.GetPayload())
	payload, err := out.ToJSON()
	if err != nil {
		return fmt.Errorf("event dispatcher: encode %s: %w", ev.GetID(), err)
	}

	// The outbound id doubles as the message id, so consumers can deduplicate on either.
	msg := message.NewMessage(out.ID, payload)
	msg.Metadata.Set("event_id", ev.GetID())
	msg.Metadata.Set("delivery", ev.GetTarget().Delivery().String())
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
	msg.SetContext(ctx)

	if err := d.publisher.Publish(out.GetRoutingKey(), msg); err != nil {
		return fmt.Errorf("event dispatcher: publish %s to %s: %w", ev.GetID(), out.GetRoutingKey(), err)
	}

	d.logger.DebugContext(ctx, "EVENT_EXPORTED", "topic", out.GetRoutingKey(), "event_id", ev.GetID())
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
