// Package jetstream provides the NATS JetStream transport. Samples are
// stored in one stream, so they survive broker restarts; each bus reads
// through its own consumers and therefore sees every sample.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/ddsctx/internal/runtime/ids"
	"github.com/drblury/ddsctx/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	DefaultStreamName        = "DDSCTX"
	DefaultMaxAge            = 24 * time.Hour
	DefaultMaxDeliver        = 3
	DefaultAckWait           = 30 * time.Second
	DefaultInactiveThreshold = 5 * time.Minute
	DefaultFetchBatch        = 16

	// HeaderUUID carries the Watermill message UUID.
	HeaderUUID = "Ddsctx-Uuid"
)

var ErrClosed = errors.New("jetstream: transport is closed")

func init() {
	Register()
}

// Register registers the JetStream transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build connects to cfg.GetNATSURL() and ensures cfg.GetJetStreamStream().
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Bus, error) {
	t, err := New(Config{
		URL:        cfg.GetNATSURL(),
		StreamName: cfg.GetJetStreamStream(),
	}, logger)
	if err != nil {
		return transport.Bus{}, err
	}
	return transport.Bus{Publisher: t, Subscriber: t}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds JetStream-specific settings.
type Config struct {
	URL        string
	StreamName string

	// MaxAge bounds how long samples stay in the stream.
	MaxAge time.Duration

	// Replicas is the number of stream replicas (for clustering).
	Replicas int

	MaxDeliver int
	AckWait    time.Duration

	// InactiveThreshold lets the server drop consumers of a bus that went
	// away without closing.
	InactiveThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.InactiveThreshold <= 0 {
		c.InactiveThreshold = DefaultInactiveThreshold
	}
	return c
}

// Transport implements message.Publisher and message.Subscriber over
// JetStream.
type Transport struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter
	id     string

	subMu     sync.Mutex
	consumers []string
	subs      []*nats.Subscription

	closeOnce sync.Once
	closed    chan struct{}
}

// New connects and makes sure the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("ddsctx"))
	if err != nil {
		return nil, fmt.Errorf("jetstream: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: context: %w", err)
	}

	t := &Transport{
		nc:     nc,
		js:     js,
		config: cfg,
		logger: logger,
		id:     strings.ToLower(ids.MessageID()),
		closed: make(chan struct{}),
	}

	if err := t.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) streamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      t.config.StreamName,
		Subjects:  []string{t.config.StreamName + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    t.config.MaxAge,
		Replicas:  t.config.Replicas,
	}
}

func (t *Transport) ensureStream() error {
	cfg := t.streamConfig()
	if _, err := t.js.AddStream(cfg); err == nil {
		return nil
	}
	if _, err := t.js.UpdateStream(cfg); err != nil {
		return fmt.Errorf("jetstream: ensure stream %s: %w", cfg.Name, err)
	}
	return nil
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Publish stores messages in the stream, waiting for the server's ack.
func (t *Transport) Publish(topic string, messages ...*message.Message) error {
	if t.isClosed() {
		return ErrClosed
	}
	subject := subjectFor(t.config.StreamName, topic)
	for _, msg := range messages {
		if _, err := t.js.PublishMsg(toNATS(subject, msg)); err != nil {
			return fmt.Errorf("jetstream: publish %s: %w", subject, err)
		}
	}
	return nil
}

// Subscribe creates a consumer owned by this bus that delivers samples
// published from now on.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}

	subject := subjectFor(t.config.StreamName, topic)
	durable := consumerName(t.id, topic)

	consumerCfg := &nats.ConsumerConfig{
		Durable:           durable,
		FilterSubject:     subject,
		AckPolicy:         nats.AckExplicitPolicy,
		DeliverPolicy:     nats.DeliverNewPolicy,
		MaxDeliver:        t.config.MaxDeliver,
		AckWait:           t.config.AckWait,
		InactiveThreshold: t.config.InactiveThreshold,
	}
	if _, err := t.js.AddConsumer(t.config.StreamName, consumerCfg); err != nil {
		return nil, fmt.Errorf("jetstream: add consumer %s: %w", durable, err)
	}

	sub, err := t.js.PullSubscribe(subject, durable, nats.Bind(t.config.StreamName, durable))
	if err != nil {
		return nil, fmt.Errorf("jetstream: subscribe %s: %w", subject, err)
	}

	t.subMu.Lock()
	t.subs = append(t.subs, sub)
	t.consumers = append(t.consumers, durable)
	t.subMu.Unlock()

	output := make(chan *message.Message)
	go t.fetch(ctx, sub, output, topic)
	return output, nil
}

func (t *Transport) fetch(ctx context.Context, sub *nats.Subscription, output chan<- *message.Message, topic string) {
	defer close(output)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		default:
		}

		msgs, err := sub.Fetch(DefaultFetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if t.isClosed() {
				return
			}
			t.logger.Error("JetStream fetch failed", err, watermill.LogFields{"topic": topic})
			continue
		}

		for _, natsMsg := range msgs {
			msg := fromNATS(natsMsg)
			select {
			case output <- msg:
			case <-ctx.Done():
				return
			case <-t.closed:
				return
			}
			select {
			case <-msg.Acked():
				if err := natsMsg.Ack(); err != nil {
					t.logger.Error("JetStream ack failed", err, nil)
				}
			case <-msg.Nacked():
				if err := natsMsg.Nak(); err != nil {
					t.logger.Error("JetStream nak failed", err, nil)
				}
			case <-ctx.Done():
				return
			case <-t.closed:
				return
			}
		}
	}
}

// Close unsubscribes, removes this bus's consumers and drops the connection.
func (t *Transport) Close() error {
	var errs []error
	t.closeOnce.Do(func() {
		close(t.closed)

		t.subMu.Lock()
		defer t.subMu.Unlock()
		for _, sub := range t.subs {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				errs = append(errs, err)
			}
		}
		for _, name := range t.consumers {
			if err := t.js.DeleteConsumer(t.config.StreamName, name); err != nil && !errors.Is(err, nats.ErrConsumerNotFound) {
				errs = append(errs, err)
			}
		}
		t.subs, t.consumers = nil, nil
		t.nc.Close()
	})
	return errors.Join(errs...)
}

// Capabilities reports the JetStream capabilities.
func (t *Transport) Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

func subjectFor(stream, topic string) string {
	return stream + "." + topic
}

var consumerNameReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// consumerName derives a durable name that is unique per bus and topic.
// Durable names may not contain dots.
func consumerName(busID, topic string) string {
	return "ddsctx_" + busID + "_" + consumerNameReplacer.Replace(topic)
}

func toNATS(subject string, msg *message.Message) *nats.Msg {
	headers := nats.Header{}
	for k, v := range msg.Metadata {
		headers.Set(k, v)
	}
	headers.Set(HeaderUUID, msg.UUID)
	return &nats.Msg{Subject: subject, Data: msg.Payload, Header: headers}
}

func fromNATS(natsMsg *nats.Msg) *message.Message {
	uuid := natsMsg.Header.Get(HeaderUUID)
	if uuid == "" {
		uuid = ids.MessageID()
	}
	msg := message.NewMessage(uuid, natsMsg.Data)
	for k, v := range natsMsg.Header {
		if k == HeaderUUID || len(v) == 0 {
			continue
		}
		msg.Metadata.Set(k, v[0])
	}
	return msg
}

var _ transport.CapabilitiesProvider = (*Transport)(nil)
