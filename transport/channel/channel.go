// Package channel provides the in-memory Go channel transport. Publishes
// block until every subscriber has acknowledged, so a sample written through
// the engine is already cached by local readers when Write returns.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/ddsctx/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// DefaultOutputBuffer is the per-subscriber channel buffer.
const DefaultOutputBuffer = 64

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register()
}

// Register registers the channel transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new in-memory bus. The config carries nothing this
// transport needs.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Bus, error) {
	return New(logger), nil
}

// New returns an in-memory bus without going through the registry.
func New(logger watermill.LoggerAdapter) transport.Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pub, sub := Factory(gochannel.Config{
		OutputChannelBuffer:            DefaultOutputBuffer,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return transport.Bus{Publisher: pub, Subscriber: sub}
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
