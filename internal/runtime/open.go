package runtime

import (
	"context"
	"errors"

	"github.com/drblury/ddsctx/internal/runtime/config"
	"github.com/drblury/ddsctx/internal/runtime/engine"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/logging"
	transportpkg "github.com/drblury/ddsctx/internal/runtime/transport"
)

// OpenDependencies holds the optional collaborators of Open.
type OpenDependencies struct {
	Dependencies

	// TransportFactory builds the bus. Nil selects the transport registry.
	TransportFactory transportpkg.Factory

	// Engine overrides engine options derived from the configuration. The
	// logger and capabilities are always filled in by Open.
	Engine engine.Options
}

// Open builds the configured transport, starts the bundled engine on it and
// returns a registry that owns the engine. With metrics enabled it also
// serves /metrics and /api/entities on the configured port until Close.
func Open(ctx context.Context, conf *config.Config, log logging.ServiceLogger, deps OpenDependencies) (*Registry, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	log.Info("Opening registry", logging.LogFields{"transport": conf.Transport, "config": conf})

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	bus, caps, err := factory.Build(ctx, conf, log)
	if err != nil {
		return nil, err
	}

	opts := deps.Engine
	opts.Logger = log
	opts.Capabilities = caps
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = conf.TopicPrefix
	}
	if opts.MonitorInterval == 0 {
		opts.MonitorInterval = conf.MonitorInterval
	}
	if opts.EventBuffer == 0 {
		opts.EventBuffer = conf.EventBuffer
	}
	eng, err := engine.New(bus, opts)
	if err != nil {
		return nil, errors.Join(err, bus.Close())
	}

	regDeps := deps.Dependencies
	regDeps.OwnsRuntime = true
	regDeps.Strict = regDeps.Strict || conf.StrictRegistration
	if conf.MetricsEnabled && regDeps.Metrics == nil {
		regDeps.Metrics = NewMetrics(nil)
	}
	if err := regDeps.Metrics.Register(); err != nil {
		return nil, errors.Join(err, eng.Close())
	}

	reg, err := New(eng, log, regDeps)
	if err != nil {
		return nil, errors.Join(err, eng.Close())
	}

	if conf.MetricsEnabled && conf.MetricsPort > 0 {
		reg.RegisterHTTPHandler(conf.MetricsPort, "/metrics", reg.metricsHandler())
		reg.RegisterHTTPHandler(conf.MetricsPort, "/api/entities", reg.entitiesHandler())
		reg.startHTTPServers()
	}
	return reg, nil
}
