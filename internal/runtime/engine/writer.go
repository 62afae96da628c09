package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/ddsctx/dds"
	"github.com/drblury/ddsctx/internal/runtime/ids"
	"github.com/drblury/ddsctx/internal/runtime/metadata"
)

// retained is a sample kept by a TRANSIENT_LOCAL writer for late joiners.
type retained struct {
	header  metadata.Header
	payload []byte
}

type writer struct {
	entityBase
	topic    *topic
	policies dds.Policies
	listener *dds.Listener

	seq atomic.Uint64

	mu          sync.Mutex
	lastWrite   time.Time
	deadlineRef time.Time
	alive       bool
	history     []retained

	matched         dds.PublicationMatchedStatus
	livelinessLost  dds.LivelinessLostStatus
	deadline        dds.OfferedDeadlineMissedStatus
	incompatibleQos dds.OfferedIncompatibleQosStatus
}

func newWriter(handle dds.Entity, p *participant, t *topic, policies dds.Policies, listener *dds.Listener, now time.Time) *writer {
	return &writer{
		entityBase:  entityBase{handle: handle, owner: p, guid: ids.NewGUID()},
		topic:       t,
		policies:    policies,
		listener:    listener,
		lastWrite:   now,
		deadlineRef: now,
		alive:       true,
	}
}

func (w *writer) wrote(h metadata.Header, payload []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastWrite = h.SourceTimestamp
	w.deadlineRef = h.SourceTimestamp
	w.alive = true

	if w.policies.Durability < dds.TransientLocal {
		return
	}
	w.history = append(w.history, retained{header: h, payload: payload})
	if w.policies.History == dds.KeepLast {
		if extra := len(w.history) - max(w.policies.HistoryDepth, 1); extra > 0 {
			w.history = append(w.history[:0], w.history[extra:]...)
		}
	}
}

func (w *writer) retainedSamples() []retained {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]retained(nil), w.history...)
}

func (w *writer) matchedReader(r *reader, delta int32) func() {
	w.mu.Lock()
	if delta > 0 {
		w.matched.TotalCount++
		w.matched.TotalCountChange = 1
		w.matched.CurrentCount++
	} else {
		w.matched.TotalCountChange = 0
		w.matched.CurrentCount--
	}
	w.matched.CurrentCountChange = delta
	w.matched.LastSubscriptionHandle = dds.InstanceHandle(ids.Handle(r.guid))
	status := w.matched
	w.mu.Unlock()

	return func() { w.listener.PublicationMatched(w.handle, status) }
}

func (w *writer) rejectReader(policy dds.QosPolicyID) func() {
	w.mu.Lock()
	w.incompatibleQos.TotalCount++
	w.incompatibleQos.TotalCountChange = 1
	w.incompatibleQos.LastPolicyID = policy
	status := w.incompatibleQos
	w.mu.Unlock()

	return func() { w.listener.OfferedIncompatibleQos(w.handle, status) }
}

// tick checks the offered deadline and, for manual liveliness kinds, the
// lease.
func (w *writer) tick(now time.Time) []func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []func()
	if d := w.policies.Deadline; d > 0 && now.Sub(w.deadlineRef) >= d {
		w.deadlineRef = now
		w.deadline.TotalCount++
		w.deadline.TotalCountChange = 1
		status := w.deadline
		events = append(events, func() { w.listener.OfferedDeadlineMissed(w.handle, status) })
	}
	lease := w.policies.LeaseDuration
	if w.policies.Liveliness != dds.LivelinessAutomatic && lease > 0 && w.alive && now.Sub(w.lastWrite) > lease {
		w.alive = false
		w.livelinessLost.TotalCount++
		w.livelinessLost.TotalCountChange = 1
		status := w.livelinessLost
		events = append(events, func() { w.listener.LivelinessLost(w.handle, status) })
	}
	return events
}

// Write encodes sample with the topic descriptor and publishes it on the
// topic's bus topic.
func (e *Engine) Write(handle dds.Entity, sample any) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	w, err := lookup[*writer](e, handle)
	if err != nil {
		return err
	}

	payload, err := w.topic.desc.Encode(sample)
	if err != nil {
		return dds.RetcodeBadParameter.Wrap(err)
	}
	if !e.opts.Capabilities.Fits(len(payload)) {
		return dds.RetcodeOutOfResources.Wrap(fmt.Errorf("payload of %d bytes exceeds %s limit of %d",
			len(payload), e.opts.Capabilities.Name, e.opts.Capabilities.MaxMessageSize))
	}

	now := e.opts.Clock.Now()
	header := metadata.Header{
		TypeName:        w.topic.typeName,
		Writer:          w.guid.String(),
		Sequence:        w.seq.Add(1),
		SourceTimestamp: now,
		Domain:          uint32(w.owner.domain),
		Topic:           w.topic.name,
	}

	ctx, span := e.opts.Tracer.Start(e.ctx, "ddsctx.write "+w.topic.name,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", w.topic.busTopic),
			attribute.String("ddsctx.type", header.TypeName),
			attribute.Int64("ddsctx.sequence", int64(header.Sequence)),
		),
	)
	defer span.End()

	md := make(metadata.Metadata, 8)
	header.Apply(md)
	e.opts.Propagator.Inject(ctx, md)

	msg := message.NewMessage(ids.MessageIDAt(now), payload)
	msg.Metadata = metadata.ToWatermill(md)
	msg.SetContext(ctx)

	if err := e.publish(w, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if dds.CodeOf(err) == dds.RetcodeTimeout {
			return err
		}
		return dds.RetcodeError.Wrap(err)
	}

	w.wrote(header, payload)
	return nil
}

// publish hands msg to the bus. Reliable writers with a max blocking time
// give up waiting after it; the publish itself keeps running.
func (e *Engine) publish(w *writer, msg *message.Message) error {
	if w.policies.Reliability != dds.Reliable || w.policies.MaxBlockingTime <= 0 {
		return e.bus.Publisher.Publish(w.topic.busTopic, msg)
	}

	result := make(chan error, 1)
	go func() { result <- e.bus.Publisher.Publish(w.topic.busTopic, msg) }()

	timer := e.opts.Clock.Timer(w.policies.MaxBlockingTime)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return dds.RetcodeTimeout.Wrap(fmt.Errorf("publish on %s blocked longer than %s", w.topic.busTopic, w.policies.MaxBlockingTime))
	}
}
