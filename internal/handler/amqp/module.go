package amqp

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-notification-gateway/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *MessageHandler, router *message.Router, sub *pubsub.SubscriberProvider) error {
		return h.RegisterHandlers(router, sub)
	}),
)
