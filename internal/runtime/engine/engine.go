// Package engine is the bundled dds.Runtime. It keeps participants, topics,
// readers and writers in process and moves samples over a transport.Bus:
// every topic maps to one bus topic, writers publish encoded samples with a
// small header, and readers cache what arrives according to their QoS.
//
// Listener callbacks are never run inside a Create call or while engine
// locks are held. They are queued onto a single dispatcher goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/ddsctx/dds"
	"github.com/drblury/ddsctx/internal/runtime/ids"
	"github.com/drblury/ddsctx/internal/runtime/logging"
	"github.com/drblury/ddsctx/transport"
)

const instrumentationName = "github.com/drblury/ddsctx/internal/runtime/engine"

const (
	DefaultTopicPrefix     = "dds"
	DefaultMonitorInterval = 100 * time.Millisecond
	DefaultEventBuffer     = 256
)

var (
	ErrClosed       = errors.New("engine: closed")
	ErrBusRequired  = errors.New("engine: bus with publisher and subscriber is required")
	ErrWrongEntity  = errors.New("engine: handle refers to another kind of entity")
	ErrUnknownActor = errors.New("engine: unknown handle")
)

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	Logger logging.ServiceLogger

	// Capabilities of the bus; they gate sample-lost detection and the
	// maximum payload size.
	Capabilities transport.Capabilities

	// TopicPrefix namespaces bus topics as <prefix>.<domain>.<topic>.
	TopicPrefix string

	// MonitorInterval is the deadline/liveliness check period. Negative
	// disables the monitor.
	MonitorInterval time.Duration

	// EventBuffer is the initial capacity of the event queue.
	EventBuffer int

	Clock      clock.Clock
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNopServiceLogger()
	}
	if o.TopicPrefix == "" {
		o.TopicPrefix = DefaultTopicPrefix
	}
	if o.MonitorInterval == 0 {
		o.MonitorInterval = DefaultMonitorInterval
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(instrumentationName)
	}
	if o.Propagator == nil {
		o.Propagator = otel.GetTextMapPropagator()
	}
	return o
}

// Engine implements dds.Runtime over a transport.Bus.
type Engine struct {
	bus  transport.Bus
	opts Options
	log  logging.ServiceLogger

	nextHandle atomic.Int32
	entities   *haxmap.Map[dds.Entity, entity]

	// mu serialises topology changes: creation, deletion, matching and
	// bus subscriptions.
	mu   sync.Mutex
	subs map[string]*subscription

	events *dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New starts an engine on bus and takes ownership of it: Close closes the
// bus.
func New(bus transport.Bus, opts Options) (*Engine, error) {
	if bus.Publisher == nil || bus.Subscriber == nil {
		return nil, ErrBusRequired
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		bus:      bus,
		opts:     opts,
		log:      opts.Logger.With(logging.LogFields{"component": "engine", "transport": opts.Capabilities.Name}),
		entities: haxmap.New[dds.Entity, entity](),
		subs:     make(map[string]*subscription),
		events:   newDispatcher(opts.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	if opts.MonitorInterval > 0 {
		e.wg.Add(1)
		go e.monitor(opts.MonitorInterval)
	}
	return e, nil
}

// Capabilities reports the capabilities of the underlying bus.
func (e *Engine) Capabilities() transport.Capabilities {
	return e.opts.Capabilities
}

func (e *Engine) busTopic(domain dds.DomainID, name string) string {
	return fmt.Sprintf("%s.%d.%s", e.opts.TopicPrefix, domain, name)
}

func (e *Engine) allocate() dds.Entity {
	return dds.Entity(e.nextHandle.Add(1))
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return dds.RetcodeAlreadyDeleted.Wrap(ErrClosed)
	}
	return nil
}

func (e *Engine) CreateParticipant(domain dds.DomainID) (dds.Entity, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p := &participant{
		entityBase: entityBase{handle: e.allocate(), guid: ids.NewGUID()},
		domain:     domain,
	}
	e.entities.Set(p.handle, p)
	e.log.Debug("Participant created", logging.LogFields{"handle": p.handle, "domain": domain, "guid": p.guid.String()})
	return p.handle, nil
}

func (e *Engine) CreateTopic(participantHandle dds.Entity, desc dds.Descriptor, name string, qos *dds.QoS, listener *dds.Listener) (dds.Entity, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	if desc == nil {
		return 0, dds.RetcodeBadParameter.Wrap(errors.New("descriptor is required"))
	}
	if name == "" {
		return 0, dds.RetcodeBadParameter.Wrap(errors.New("topic name is required"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := lookup[*participant](e, participantHandle)
	if err != nil {
		return 0, err
	}

	t := &topic{
		entityBase: entityBase{handle: e.allocate(), owner: p, guid: ids.NewGUID()},
		name:       name,
		typeName:   desc.TypeName(),
		desc:       desc,
		policies:   qos.Snapshot(),
		listener:   listener,
		busTopic:   e.busTopic(p.domain, name),
	}
	e.entities.Set(t.handle, t)

	e.events.post(e.checkInconsistentTopics(t)...)
	e.log.Debug("Topic created", logging.LogFields{"handle": t.handle, "topic": name, "type": t.typeName, "bus_topic": t.busTopic})
	return t.handle, nil
}

func (e *Engine) CreateReader(participantHandle, topicHandle dds.Entity, qos *dds.QoS, listener *dds.Listener) (dds.Entity, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, t, err := e.endpointParents(participantHandle, topicHandle)
	if err != nil {
		return 0, err
	}

	r := newReader(e, e.allocate(), p, t, qos.Snapshot(), listener)
	if err := e.attach(r); err != nil {
		return 0, dds.RetcodeError.Wrap(err)
	}
	e.entities.Set(r.handle, r)

	e.events.post(e.matchReader(r)...)
	e.log.Debug("Reader created", logging.LogFields{"handle": r.handle, "topic": t.name, "guid": r.guid.String()})
	return r.handle, nil
}

func (e *Engine) CreateWriter(participantHandle, topicHandle dds.Entity, qos *dds.QoS, listener *dds.Listener) (dds.Entity, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, t, err := e.endpointParents(participantHandle, topicHandle)
	if err != nil {
		return 0, err
	}

	w := newWriter(e.allocate(), p, t, qos.Snapshot(), listener, e.opts.Clock.Now())
	e.entities.Set(w.handle, w)

	e.events.post(e.matchWriter(w)...)
	e.log.Debug("Writer created", logging.LogFields{"handle": w.handle, "topic": t.name, "guid": w.guid.String()})
	return w.handle, nil
}

func (e *Engine) endpointParents(participantHandle, topicHandle dds.Entity) (*participant, *topic, error) {
	p, err := lookup[*participant](e, participantHandle)
	if err != nil {
		return nil, nil, err
	}
	t, err := lookup[*topic](e, topicHandle)
	if err != nil {
		return nil, nil, err
	}
	if t.owner.domain != p.domain {
		return nil, nil, dds.RetcodePreconditionNotMet.Wrap(fmt.Errorf("topic %q belongs to domain %d, participant to %d", t.name, t.owner.domain, p.domain))
	}
	return p, t, nil
}

// Delete releases an entity. Topics with live readers or writers cannot be
// deleted; participants take their children with them.
func (e *Engine) Delete(handle dds.Entity) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities.Get(handle)
	if !ok {
		return dds.RetcodeBadParameter.Wrap(fmt.Errorf("%w: %d", ErrUnknownActor, handle))
	}
	var events []func()
	switch v := ent.(type) {
	case *reader:
		events = e.deleteReader(v)
	case *writer:
		events = e.deleteWriter(v)
	case *topic:
		if e.hasEndpoints(v) {
			return dds.RetcodePreconditionNotMet.Wrap(fmt.Errorf("topic %q still has readers or writers", v.name))
		}
		e.entities.Del(v.handle)
	case *participant:
		events = e.deleteParticipant(v)
	}
	e.events.post(events...)
	e.log.Debug("Entity deleted", logging.LogFields{"handle": handle})
	return nil
}

func (e *Engine) deleteParticipant(p *participant) []func() {
	var readers []*reader
	var writers []*writer
	var topics []*topic
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		if ent.base().owner != p {
			return true
		}
		switch v := ent.(type) {
		case *reader:
			readers = append(readers, v)
		case *writer:
			writers = append(writers, v)
		case *topic:
			topics = append(topics, v)
		}
		return true
	})

	var events []func()
	for _, r := range readers {
		events = append(events, e.deleteReader(r)...)
	}
	for _, w := range writers {
		events = append(events, e.deleteWriter(w)...)
	}
	for _, t := range topics {
		e.entities.Del(t.handle)
	}
	e.entities.Del(p.handle)
	return events
}

func (e *Engine) deleteReader(r *reader) []func() {
	e.detach(r)
	e.entities.Del(r.handle)
	return e.unmatchReader(r)
}

func (e *Engine) deleteWriter(w *writer) []func() {
	e.entities.Del(w.handle)
	return e.unmatchWriter(w)
}

func (e *Engine) hasEndpoints(t *topic) bool {
	found := false
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		switch v := ent.(type) {
		case *reader:
			found = v.topic == t
		case *writer:
			found = v.topic == t
		}
		return !found
	})
	return found
}

// Close stops the monitor and all subscriptions, drops pending events and
// closes the bus. It must not be called from a listener callback.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.cancel()

		e.mu.Lock()
		for name, sub := range e.subs {
			sub.stop()
			delete(e.subs, name)
		}
		e.mu.Unlock()

		e.wg.Wait()
		e.events.stop()
		e.closeErr = e.bus.Close()
		var handles []dds.Entity
		e.entities.ForEach(func(h dds.Entity, _ entity) bool {
			handles = append(handles, h)
			return true
		})
		e.entities.Del(handles...)
		e.log.Debug("Engine closed", nil)
	})
	return e.closeErr
}

// lookup resolves handle to an entity of type T.
func lookup[T entity](e *Engine, handle dds.Entity) (T, error) {
	var zero T
	ent, ok := e.entities.Get(handle)
	if !ok {
		return zero, dds.RetcodeBadParameter.Wrap(fmt.Errorf("%w: %d", ErrUnknownActor, handle))
	}
	v, ok := ent.(T)
	if !ok {
		return zero, dds.RetcodeIllegalOperation.Wrap(fmt.Errorf("%w: %d", ErrWrongEntity, handle))
	}
	return v, nil
}

type entity interface {
	base() *entityBase
}

type entityBase struct {
	handle dds.Entity
	owner  *participant
	guid   uuid.UUID
}

func (b *entityBase) base() *entityBase { return b }

type participant struct {
	entityBase
	domain dds.DomainID
}

var _ dds.Runtime = (*Engine)(nil)
