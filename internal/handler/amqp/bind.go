package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to Domain logic, handling Panic Recovery, Decoding and the
// ack/nack decision.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// A panic becomes a handler error so the message ends up in the poison queue.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = fmt.Errorf("panic while handling %s: %v", msg.UUID, r)
			}
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		if err := fn(msg.Context(), payload); err != nil {
			if isTerminal(err) {
				// ACK: retrying a rejected command cannot change the outcome.
				h.logger.Warn("COMMAND_REJECTED",
					"msg_id", msg.UUID,
					"kind", string(model.KindOf(err)),
					"err", err)
				return nil
			}
			return err // NACK: Infrastructure failure triggers Retry policy.
		}
		return nil
	}
}

// isTerminal reports whether err is a caller mistake rather than an infrastructure failure.
func isTerminal(err error) bool {
	return errors.Is(err, model.ErrInvalidAddress) ||
		errors.Is(err, model.ErrUnauthorized) ||
		errors.Is(err, model.ErrBadRequest)
}
