// Package pubsub builds watermill publishers and subscribers for the configured broker:
// RabbitMQ topic exchanges when amqp.url is set, an in-process channel otherwise.
package pubsub

import (
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/webitel/im-notification-gateway/config"
)

// Provider is the factory handed to the adapter layer.
type Provider interface {
	BuildPublisher(exchange string) (message.Publisher, error)
	BuildSubscriber(queue, exchange, routingKey string) (message.Subscriber, error)
	Close() error
}

// NewProvider selects the broker from cfg.
func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) Provider {
	if cfg.AMQP.URL == "" {
		return NewInMemoryProvider(logger)
	}
	return &amqpProvider{url: cfg.AMQP.URL, logger: logger}
}

type amqpProvider struct {
	url    string
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closers []interface{ Close() error }
}

// topicConfig routes every watermill topic as a routing key on one durable topic exchange.
func (p *amqpProvider) topicConfig(exchange string, queueName amqp.QueueNameGenerator) amqp.Config {
	c := amqp.NewDurablePubSubConfig(p.url, queueName)
	c.Exchange.GenerateName = func(string) string { return exchange }
	c.Exchange.Type = "topic"
	c.Exchange.Durable = true
	c.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return c
}

func (p *amqpProvider) BuildPublisher(exchange string) (message.Publisher, error) {
	pub, err := amqp.NewPublisher(p.topicConfig(exchange, amqp.GenerateQueueNameTopicName), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp publisher for %s: %w", exchange, err)
	}
	p.track(pub)
	return pub, nil
}

func (p *amqpProvider) BuildSubscriber(queue, exchange, routingKey string) (message.Subscriber, error) {
	c := p.topicConfig(exchange, amqp.GenerateQueueNameConstant(queue))
	c.QueueBind.GenerateRoutingKey = func(string) string { return routingKey }

	sub, err := amqp.NewSubscriber(c, p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp subscriber %s on %s: %w", queue, exchange, err)
	}
	p.track(sub)
	return sub, nil
}

func (p *amqpProvider) track(c interface{ Close() error }) {
	p.mu.Lock()
	p.closers = append(p.closers, c)
	p.mu.Unlock()
}

func (p *amqpProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

// inMemoryProvider shares a single GoChannel, so what the gateway publishes it can also
// consume. Exchanges and queues collapse onto plain topics.
type inMemoryProvider struct {
	ch *gochannel.GoChannel
}

func NewInMemoryProvider(logger watermill.LoggerAdapter) Provider {
	return &inMemoryProvider{
		ch: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
	}
}

func (p *inMemoryProvider) BuildPublisher(string) (message.Publisher, error) { return p.ch, nil }

func (p *inMemoryProvider) BuildSubscriber(string, string, string) (message.Subscriber, error) {
	return p.ch, nil
}

func (p *inMemoryProvider) Close() error { return p.ch.Close() }
