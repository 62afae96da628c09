package transport

// Capabilities describes what a transport backend guarantees. The engine uses
// them to decide which DDS statuses it can derive from the bus.
type Capabilities struct {
	// SupportsOrdering indicates messages on one topic arrive in publish
	// order. Sample-lost detection from sequence gaps requires it.
	SupportsOrdering bool

	// SupportsTracing indicates message metadata survives the round trip, so
	// trace context can be propagated.
	SupportsTracing bool

	// SupportsAck indicates the transport supports explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports redelivery on nack.
	SupportsNack bool

	// SupportsPersistence indicates published messages outlive the process,
	// which is what TRANSIENT and PERSISTENT durability ask for.
	SupportsPersistence bool

	// MaxMessageSize is the largest payload in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the registered transport name.
	Name string
}

// SupportsReliableDelivery reports at-least-once delivery (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// DetectsSampleLoss reports whether gaps in writer sequence numbers can be
// trusted as lost samples.
func (c Capabilities) DetectsSampleLoss() bool {
	return c.SupportsOrdering
}

// Fits reports whether a payload of size bytes can be published.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the built-in transports.
var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	KafkaCapabilities = Capabilities{
		Name:                "kafka",
		SupportsOrdering:    true,
		SupportsTracing:     true,
		SupportsAck:         true,
		SupportsPersistence: true,
		MaxMessageSize:      1048576, // broker default message.max.bytes
	}

	RabbitMQCapabilities = Capabilities{
		Name:                "rabbitmq",
		SupportsOrdering:    true,
		SupportsTracing:     true,
		SupportsAck:         true,
		SupportsNack:        true,
		SupportsPersistence: true,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // server default max_payload
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:                "nats-jetstream",
		SupportsOrdering:    true,
		SupportsTracing:     true,
		SupportsAck:         true,
		SupportsNack:        true,
		SupportsPersistence: true,
		MaxMessageSize:      1048576,
	}

	IOCapabilities = Capabilities{
		Name:                "io",
		SupportsOrdering:    true,
		SupportsTracing:     true,
		SupportsPersistence: true,
	}
)

// GetCapabilities returns the capabilities registered for a transport name in
// the default registry.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
