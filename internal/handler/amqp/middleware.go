package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const traceIDHeader = "trace_id"

type traceIDKey struct{}

// TraceIDFromContext returns the correlation id attached by TraceIDMiddleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// [TRACE_ID_MIDDLEWARE]
// Restores the publisher's W3C trace context from the metadata and keeps a plain
// correlation id for brokers and logs that know nothing about OTel.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))

		traceID := msg.Metadata.Get(traceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(traceIDHeader, traceID)
		}
		msg.SetContext(context.WithValue(ctx, traceIDKey{}, traceID))

		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// Failures are logged at warn with the topic, successes at debug.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			attrs := []any{
				"msg_id", msg.UUID,
				"topic", message.SubscribeTopicFromCtx(msg.Context()),
				"trace_id", TraceIDFromContext(msg.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.WarnContext(msg.Context(), "MESSAGE_FAILED", append(attrs, "err", err)...)
			} else {
				logger.DebugContext(msg.Context(), "MESSAGE_HANDLED", attrs...)
			}
			return msgs, err
		}
	}
}

// [RETRY_MIDDLEWARE]
// Three attempts with exponential backoff before the poison queue takes over.
func NewRetryMiddleware(logger *slog.Logger) middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      2.0,
		OnRetryHook: func(retryNum int, delay time.Duration) {
			logger.Warn("MESSAGE_RETRY", "attempt", retryNum, "delay", delay.String())
		},
	}
}
