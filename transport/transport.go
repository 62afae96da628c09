// Package transport defines the message bus the bundled ddsctx engine runs
// on. Each backend (channel, nats, kafka, ...) lives in its own sub-package
// and registers a Builder with the transport registry.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Bus is a publisher/subscriber pair produced by a Builder.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves. A backend that serves both roles with one value
// is closed once.
func (b Bus) Close() error {
	var errs []error
	if b.Publisher != nil {
		errs = append(errs, b.Publisher.Close())
	}
	if b.Subscriber != nil && !sameValue(b.Publisher, b.Subscriber) {
		errs = append(errs, b.Subscriber.Close())
	}
	return errors.Join(errs...)
}

func sameValue(pub message.Publisher, sub message.Subscriber) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return pub != nil && any(pub) == any(sub)
}

// Builder creates a Bus from configuration.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error)

// Config provides the values transports need without depending on the full
// config package.
type Config interface {
	// GetTransport returns the registered transport name.
	GetTransport() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS and JetStream
	GetNATSURL() string
	GetJetStreamStream() string

	// IO
	GetIOFile() string
}

// CapabilitiesProvider is implemented by buses that report their own
// capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
