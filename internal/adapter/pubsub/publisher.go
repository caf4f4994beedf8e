package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
	infrapubsub "github.com/webitel/im-notification-gateway/infra/pubsub"
)

// EventsExchange receives the events the gateway announces.
const EventsExchange = "notification.events"

type PublisherProvider struct {
	factory infrapubsub.Provider
}

func NewPublisherProvider(p infrapubsub.Provider) *PublisherProvider {
	return &PublisherProvider{factory: p}
}

func (pp *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	return pp.factory.BuildPublisher(exchange)
}

type SubscriberProvider struct {
	factory infrapubsub.Provider
}

func NewSubscriberProvider(p infrapubsub.Provider) *SubscriberProvider {
	return &SubscriberProvider{factory: p}
}

// Build declares queue on exchange, bound by routingKey.
func (sp *SubscriberProvider) Build(queue, exchange, routingKey string) (message.Subscriber, error) {
	return sp.factory.BuildSubscriber(queue, exchange, routingKey)
}
