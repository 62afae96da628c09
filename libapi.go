package ddsctx

import (
	"context"

	"github.com/drblury/ddsctx/dds"
	runtimepkg "github.com/drblury/ddsctx/internal/runtime"
	configpkg "github.com/drblury/ddsctx/internal/runtime/config"
	"github.com/drblury/ddsctx/internal/runtime/engine"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	loggingpkg "github.com/drblury/ddsctx/internal/runtime/logging"
	transportpkg "github.com/drblury/ddsctx/internal/runtime/transport"
	newtransport "github.com/drblury/ddsctx/transport"
)

type (
	Registry         = runtimepkg.Registry
	Key              = runtimepkg.Key
	Callback         = runtimepkg.Callback
	EventCode        = runtimepkg.EventCode
	Dependencies     = runtimepkg.Dependencies
	OpenDependencies = runtimepkg.OpenDependencies
	Metrics          = runtimepkg.Metrics
	EntityInfo       = runtimepkg.EntityInfo

	Config        = configpkg.Config
	EngineOptions = engine.Options

	TransportFactory      = transportpkg.Factory
	TransportBuilder      = newtransport.Builder
	TransportCapabilities = newtransport.Capabilities

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	RuntimeError          = errspkg.RuntimeError
	NotFoundError         = errspkg.NotFoundError
	ConfigValidationError = errspkg.ConfigValidationError
)

const (
	TopicOnInconsistentTopic = runtimepkg.TopicOnInconsistentTopic

	ReaderOnDataAvailable            = runtimepkg.ReaderOnDataAvailable
	ReaderOnSubscriptionMatched      = runtimepkg.ReaderOnSubscriptionMatched
	ReaderOnSampleLost               = runtimepkg.ReaderOnSampleLost
	ReaderOnSampleRejected           = runtimepkg.ReaderOnSampleRejected
	ReaderOnLivelinessChanged        = runtimepkg.ReaderOnLivelinessChanged
	ReaderOnRequestedDeadlineMissed  = runtimepkg.ReaderOnRequestedDeadlineMissed
	ReaderOnRequestedIncompatibleQoS = runtimepkg.ReaderOnRequestedIncompatibleQoS

	WriterOnPublicationMatched     = runtimepkg.WriterOnPublicationMatched
	WriterOnLivelinessLost         = runtimepkg.WriterOnLivelinessLost
	WriterOnOfferedDeadlineMissed  = runtimepkg.WriterOnOfferedDeadlineMissed
	WriterOnOfferedIncompatibleQoS = runtimepkg.WriterOnOfferedIncompatibleQoS
)

var (
	NewMetrics     = runtimepkg.NewMetrics
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Default
	ValidateConfig = configpkg.ValidateConfig

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewZerologServiceLogger   = loggingpkg.NewZerologServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter

	RegisterTransport       = newtransport.Register
	GetCapabilities         = newtransport.GetCapabilities
	DefaultTransportFactory = transportpkg.DefaultFactory

	ErrNotFound             = errspkg.ErrNotFound
	ErrClosed               = errspkg.ErrClosed
	ErrRuntimeRequired      = errspkg.ErrRuntimeRequired
	ErrDescriptorRequired   = errspkg.ErrDescriptorRequired
	ErrRegistrationMismatch = errspkg.ErrRegistrationMismatch
	ErrInvalidSample        = errspkg.ErrInvalidSample
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
)

// New wraps an existing runtime. The registry does not close rt unless
// deps.OwnsRuntime is set.
func New(rt dds.Runtime, logger ServiceLogger, deps Dependencies) (*Registry, error) {
	return runtimepkg.New(rt, logger, deps)
}

// Open builds the configured transport and the bundled engine and returns a
// registry that owns both. Pass OpenDependencies to OpenWith for custom
// factories, metrics or engine options.
func Open(ctx context.Context, cfg *Config, logger ServiceLogger) (*Registry, error) {
	return runtimepkg.Open(ctx, cfg, logger, OpenDependencies{})
}

// OpenWith is Open with explicit dependencies.
func OpenWith(ctx context.Context, cfg *Config, logger ServiceLogger, deps OpenDependencies) (*Registry, error) {
	return runtimepkg.Open(ctx, cfg, logger, deps)
}
