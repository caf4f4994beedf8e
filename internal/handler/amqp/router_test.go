package amqp

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrapubsub "github.com/webitel/im-notification-gateway/infra/pubsub"
	"github.com/webitel/im-notification-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/service/dto"
)

type syncNotifier struct {
	stubNotifier
	mu sync.Mutex
}

func (s *syncNotifier) Send(ctx context.Context, token string, req *dto.SendNotificationRequest) (*model.NotificationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stubNotifier.Send(ctx, token, req)
}

func (s *syncNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestRegisterHandlers_ConsumesSendCommands(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	provider := infrapubsub.NewInMemoryProvider(watermill.NopLogger{})
	t.Cleanup(func() { _ = provider.Close() })

	pub, err := provider.BuildPublisher(pubsub.EventsExchange)
	require.NoError(t, err)

	notifier := &syncNotifier{}
	h := &MessageHandler{
		logger:     logger,
		notifier:   notifier,
		dispatcher: pubsub.NewEventDispatcher(pub, logger),
		exchange:   "notification.commands",
	}

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, h.RegisterHandlers(router, pubsub.NewSubscriberProvider(provider)))

	go func() { _ = router.Run(context.Background()) }()
	t.Cleanup(func() { _ = router.Close() })
	<-router.Running()

	// A rejected command is acked and never reaches the notifier; a valid one does.
	require.NoError(t, pub.Publish(TopicSendNotification,
		message.NewMessage(watermill.NewUUID(), []byte("{broken")),
		message.NewMessage(watermill.NewUUID(), []byte(validCommand)),
	))

	require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, notifier.count())
}
