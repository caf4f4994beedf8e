package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-notification-gateway/internal/service"
	"go.uber.org/fx"
)

const (
	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicSendNotification = "notification.send.v1"

	// ------------------- QUEUES (CONSUMERS) --------------------
	// Gateways share one queue: every command is published exactly once, by whichever
	// instance takes it.
	SendProcessorQueue = "notification-gateway.send.v1"
	SendPoisonTopic    = "notification-gateway.send.v1.poison"
)

type MessageHandler struct {
	logger     *slog.Logger
	notifier   service.Notifier
	dispatcher pubsub.EventDispatcher
	exchange   string
}

func NewMessageHandler(cfg *config.Config, logger *slog.Logger, notifier service.Notifier, dispatcher pubsub.EventDispatcher) *MessageHandler {
	return &MessageHandler{
		logger:     logger,
		notifier:   notifier,
		dispatcher: dispatcher,
		exchange:   cfg.AMQP.Exchange,
	}
}

// NewWatermillRouter creates the router and ties its run loop to the fx lifecycle.
func NewWatermillRouter(lc fx.Lifecycle, logger watermill.LoggerAdapter, slogger *slog.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("ROUTER_SETUP_FAILED: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				// The router outlives the start context; Close ends Run.
				if err := router.Run(context.Background()); err != nil {
					slogger.Error("AMQP_ROUTER_STOPPED", "err", err)
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return fmt.Errorf("AMQP_ROUTER_START_TIMEOUT: %w", ctx.Err())
			}
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), SendPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name     string
		queue    string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_SEND_NOTIFICATION", SendProcessorQueue, h.exchange, TopicSendNotification, Bind(h, h.OnSendNotificationV1)},
	}

	for _, c := range configs {
		sub, err := subProvider.Build(c.queue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		// Poison wraps Retry: a message is parked only after its retries are exhausted.
		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			poison,
			NewRetryMiddleware(h.logger).Middleware,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue", SendProcessorQueue, "exchange", h.exchange)
	return nil
}
