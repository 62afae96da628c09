package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfig struct {
	name string
}

func (s *stubConfig) GetTransport() string          { return s.name }
func (s *stubConfig) GetKafkaBrokers() []string     { return nil }
func (s *stubConfig) GetKafkaConsumerGroup() string { return "" }
func (s *stubConfig) GetRabbitMQURL() string        { return "" }
func (s *stubConfig) GetNATSURL() string            { return "" }
func (s *stubConfig) GetJetStreamStream() string    { return "" }
func (s *stubConfig) GetIOFile() string             { return "" }

type stubPublisher struct {
	closed int
}

func (s *stubPublisher) Publish(string, ...*message.Message) error { return nil }
func (s *stubPublisher) Close() error {
	s.closed++
	return nil
}

type stubSubscriber struct {
	closed int
	err    error
}

func (s *stubSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *stubSubscriber) Close() error {
	s.closed++
	return s.err
}

func stubBuilder(context.Context, Config, watermill.LoggerAdapter) (Bus, error) {
	return Bus{Publisher: &stubPublisher{}, Subscriber: &stubSubscriber{}}, nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg.builders)
	assert.NotNil(t, reg.capabilities)
	assert.Empty(t, reg.Names())
}

func TestRegistry_RegisterWithCapabilities(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWithCapabilities("memory", stubBuilder, Capabilities{Name: "memory", SupportsOrdering: true})

	assert.True(t, reg.Has("memory"))
	caps := reg.GetCapabilities("memory")
	assert.Equal(t, "memory", caps.Name)
	assert.True(t, caps.DetectsSampleLoss())
}

func TestRegistry_GetCapabilities_Unknown(t *testing.T) {
	caps := NewRegistry().GetCapabilities("unknown")
	assert.Equal(t, Capabilities{Name: "unknown"}, caps)
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry()
	reg.Register("memory", stubBuilder)

	bus, err := reg.Build(context.Background(), &stubConfig{name: "memory"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, bus.Publisher)
	assert.NotNil(t, bus.Subscriber)
}

func TestRegistry_BuildPassesNonNilLogger(t *testing.T) {
	reg := NewRegistry()
	var got watermill.LoggerAdapter
	reg.Register("memory", func(_ context.Context, _ Config, logger watermill.LoggerAdapter) (Bus, error) {
		got = logger
		return Bus{}, nil
	})

	_, err := reg.Build(context.Background(), &stubConfig{name: "memory"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRegistry_BuildErrors(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("builder error")
	reg.Register("failing", func(context.Context, Config, watermill.LoggerAdapter) (Bus, error) {
		return Bus{}, boom
	})

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"nil config", nil, ErrConfigRequired},
		{"unknown transport", &stubConfig{name: "missing"}, ErrUnknownTransport},
		{"builder failure", &stubConfig{name: "failing"}, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Build(context.Background(), tt.cfg, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register("nats", stubBuilder)
	reg.Register("channel", stubBuilder)
	reg.Register("kafka", stubBuilder)

	assert.Equal(t, []string{"channel", "kafka", "nats"}, reg.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Register("memory", stubBuilder)
				reg.Has("memory")
				reg.Names()
				reg.GetCapabilities("memory")
			}
		}()
	}
	wg.Wait()

	assert.True(t, reg.Has("memory"))
}

func TestPackageLevelRegistration(t *testing.T) {
	RegisterWithCapabilities("test-pkg-transport", stubBuilder, Capabilities{Name: "test-pkg-transport", SupportsAck: true})

	assert.True(t, DefaultRegistry.Has("test-pkg-transport"))
	assert.True(t, GetCapabilities("test-pkg-transport").SupportsAck)

	_, err := Build(context.Background(), &stubConfig{name: "test-pkg-transport"}, nil)
	assert.NoError(t, err)

	_, err = Build(context.Background(), &stubConfig{name: "nonexistent"}, nil)
	assert.ErrorIs(t, err, ErrUnknownTransport)
}
