package engine

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/ddsctx/dds"
	"github.com/drblury/ddsctx/internal/runtime/logging"
	"github.com/drblury/ddsctx/internal/runtime/metadata"
)

// subscription is the single bus subscription shared by every local reader
// of one bus topic.
type subscription struct {
	busTopic string
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.RWMutex
	readers map[dds.Entity]*reader
}

func (s *subscription) add(r *reader) {
	s.mu.Lock()
	s.readers[r.handle] = r
	s.mu.Unlock()
}

// remove drops r and reports whether readers remain.
func (s *subscription) remove(r *reader) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.readers, r.handle)
	return len(s.readers) > 0
}

func (s *subscription) snapshot() []*reader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	readers := make([]*reader, 0, len(s.readers))
	for _, r := range s.readers {
		readers = append(readers, r)
	}
	return readers
}

func (s *subscription) stop() {
	s.cancel()
	<-s.done
}

// attach joins r to the subscription for its bus topic, subscribing on first
// use. Callers hold e.mu.
func (e *Engine) attach(r *reader) error {
	if sub, ok := e.subs[r.topic.busTopic]; ok {
		sub.add(r)
		return nil
	}

	ctx, cancel := context.WithCancel(e.ctx)
	messages, err := e.bus.Subscriber.Subscribe(ctx, r.topic.busTopic)
	if err != nil {
		cancel()
		return err
	}

	sub := &subscription{
		busTopic: r.topic.busTopic,
		cancel:   cancel,
		done:     make(chan struct{}),
		readers:  map[dds.Entity]*reader{r.handle: r},
	}
	e.subs[sub.busTopic] = sub
	go e.consume(ctx, sub, messages)
	return nil
}

// detach removes r and unsubscribes when it was the last reader. Callers
// hold e.mu.
func (e *Engine) detach(r *reader) {
	sub, ok := e.subs[r.topic.busTopic]
	if !ok {
		return
	}
	if sub.remove(r) {
		return
	}
	delete(e.subs, sub.busTopic)
	sub.stop()
}

func (e *Engine) consume(ctx context.Context, sub *subscription, messages <-chan *message.Message) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			e.deliver(sub, msg)
			msg.Ack()
		}
	}
}

// deliver fans one bus message out to the local readers of sub.
func (e *Engine) deliver(sub *subscription, msg *message.Message) {
	md := metadata.FromWatermill(msg.Metadata)
	header, err := metadata.ParseHeader(md)
	if err != nil {
		e.log.Error("Dropping message without sample header", err, logging.LogFields{
			"bus_topic":  sub.busTopic,
			"message_id": msg.UUID,
		})
		return
	}

	ctx := e.opts.Propagator.Extract(msg.Context(), md)
	_, span := e.opts.Tracer.Start(ctx, "ddsctx.receive "+header.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", sub.busTopic),
			attribute.String("messaging.message.id", msg.UUID),
			attribute.String("ddsctx.type", header.TypeName),
			attribute.Int64("ddsctx.sequence", int64(header.Sequence)),
		),
	)
	defer span.End()

	now := e.opts.Clock.Now()
	var events []func()
	for _, r := range sub.snapshot() {
		if header.TypeName != r.topic.typeName {
			events = append(events, r.topic.remoteMismatch(header.Writer)...)
			continue
		}
		events = append(events, r.receive(header, msg.Payload, now)...)
	}
	e.events.post(events...)
}
