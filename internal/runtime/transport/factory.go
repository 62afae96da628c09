// Package transport resolves the configured bus for the bundled engine.
package transport

import (
	"context"

	"github.com/drblury/ddsctx/internal/runtime/config"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/logging"
	bus "github.com/drblury/ddsctx/transport"

	// Registers every built-in transport.
	_ "github.com/drblury/ddsctx/transport/transports"
)

// Factory abstracts how ddsctx initialises the engine's message bus.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (bus.Bus, bus.Capabilities, error)
}

// DefaultFactory returns the factory backed by the transport registry.
func DefaultFactory() Factory {
	return registryFactory{registry: bus.DefaultRegistry}
}

// NewFactory returns a factory backed by registry.
func NewFactory(registry *bus.Registry) Factory {
	return registryFactory{registry: registry}
}

type registryFactory struct {
	registry *bus.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (bus.Bus, bus.Capabilities, error) {
	if conf == nil {
		return bus.Bus{}, bus.Capabilities{}, errspkg.ErrConfigRequired
	}
	if logger == nil {
		logger = logging.NewNopServiceLogger()
	}

	name := conf.GetTransport()
	b, err := f.registry.Build(ctx, conf, logging.NewWatermillAdapter(logger.With(logging.LogFields{"transport": name})))
	if err != nil {
		return bus.Bus{}, bus.Capabilities{}, err
	}

	return b, f.registry.GetCapabilities(name), nil
}
