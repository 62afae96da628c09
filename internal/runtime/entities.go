package runtime

import (
	"fmt"

	"github.com/drblury/ddsctx/dds"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/logging"
)

// QoS returns the profile called name, creating an empty one on first use.
// The profile is read when an entity is created with it; later changes do
// not affect existing entities.
func (r *Registry) QoS(name string) (*dds.QoS, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errspkg.ErrClosed
	}
	return r.qosLocked(name), nil
}

func (r *Registry) qosLocked(name string) *dds.QoS {
	q, ok := r.qos[name]
	if !ok {
		q = dds.NewQoS()
		r.qos[name] = q
	}
	return q
}

// Domain returns the participant of domain, creating it on first use.
func (r *Registry) Domain(domain dds.DomainID) (dds.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errspkg.ErrClosed
	}
	return r.participantLocked(domain)
}

func (r *Registry) participantLocked(domain dds.DomainID) (dds.Entity, error) {
	if p, ok := r.participants[domain]; ok {
		return p, nil
	}

	p, err := r.rt.CreateParticipant(domain)
	r.metrics.operation(errspkg.OpCreateParticipant, err)
	if err != nil {
		return 0, errspkg.NewRuntimeError(errspkg.OpCreateParticipant, err)
	}

	r.participants[domain] = p
	r.metrics.participantCreated()
	r.log.Debug("Participant created", logging.LogFields{"domain": domain, "handle": p})
	return p, nil
}

// Topic returns the topic registered for (domain, name), creating the
// participant, the QoS profile and the topic on first use. Once registered,
// desc and qosName are ignored unless the registry is strict.
func (r *Registry) Topic(domain dds.DomainID, desc dds.Descriptor, name, qosName string) (dds.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errspkg.ErrClosed
	}
	key := Key{Domain: domain, Topic: name}
	if t, ok := r.topics[key]; ok {
		if r.strict && (desc == nil || desc.TypeName() != t.desc.TypeName() || qosName != t.qosName) {
			return 0, fmt.Errorf("%w: topic %q in domain %d", errspkg.ErrRegistrationMismatch, name, domain)
		}
		return t.handle, nil
	}
	if desc == nil {
		return 0, errspkg.ErrDescriptorRequired
	}

	p, err := r.participantLocked(domain)
	if err != nil {
		return 0, err
	}

	listener := r.topicListener()
	handle, err := r.rt.CreateTopic(p, desc, name, r.qosLocked(qosName), listener)
	r.metrics.operation(errspkg.OpCreateTopic, err)
	if err != nil {
		listener.Close()
		return 0, errspkg.NewRuntimeError(errspkg.OpCreateTopic, err)
	}

	r.topics[key] = &topicEntry{
		entry: entry{handle: handle, listener: listener, qosName: qosName},
		desc:  desc,
	}
	r.entities[handle] = entityRef{kind: errspkg.KindTopic, key: key}
	r.metrics.entityCreated(errspkg.KindTopic)
	r.log.Debug("Topic created", logging.LogFields{"domain": domain, "topic": name, "type": desc.TypeName(), "qos": qosName, "handle": handle})
	return handle, nil
}

// Reader returns the reader registered for (domain, topic), creating it
// under the registered topic on first use.
func (r *Registry) Reader(domain dds.DomainID, topic, qosName string) (dds.Entity, error) {
	return r.endpoint(errspkg.KindReader, domain, topic, qosName)
}

// Writer returns the writer registered for (domain, topic), creating it
// under the registered topic on first use.
func (r *Registry) Writer(domain dds.DomainID, topic, qosName string) (dds.Entity, error) {
	return r.endpoint(errspkg.KindWriter, domain, topic, qosName)
}

func (r *Registry) endpoint(kind errspkg.Kind, domain dds.DomainID, topic, qosName string) (dds.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errspkg.ErrClosed
	}
	key := Key{Domain: domain, Topic: topic}
	registry := r.registryFor(kind)
	if e, ok := registry[key]; ok {
		if r.strict && qosName != e.qosName {
			return 0, fmt.Errorf("%w: %s for topic %q in domain %d", errspkg.ErrRegistrationMismatch, kind, topic, domain)
		}
		return e.handle, nil
	}

	t, ok := r.topics[key]
	if !ok {
		return 0, errspkg.UnknownTopic(domain, topic)
	}
	p, err := r.participantLocked(domain)
	if err != nil {
		return 0, err
	}
	qos := r.qosLocked(qosName)

	var (
		listener *dds.Listener
		handle   dds.Entity
		op       errspkg.Op
	)
	if kind == errspkg.KindReader {
		listener, op = r.readerListener(), errspkg.OpCreateReader
		handle, err = r.rt.CreateReader(p, t.handle, qos, listener)
	} else {
		listener, op = r.writerListener(), errspkg.OpCreateWriter
		handle, err = r.rt.CreateWriter(p, t.handle, qos, listener)
	}
	r.metrics.operation(op, err)
	if err != nil {
		listener.Close()
		return 0, errspkg.NewRuntimeError(op, err)
	}

	registry[key] = &entry{handle: handle, listener: listener, qosName: qosName}
	r.entities[handle] = entityRef{kind: kind, key: key}
	r.metrics.entityCreated(kind)
	r.log.Debug("Endpoint created", logging.LogFields{"kind": kind, "domain": domain, "topic": topic, "qos": qosName, "handle": handle})
	return handle, nil
}

func (r *Registry) registryFor(kind errspkg.Kind) map[Key]*entry {
	if kind == errspkg.KindReader {
		return r.readers
	}
	return r.writers
}

// Send publishes sample through the writer registered for (domain, topic).
// It blocks until the runtime accepted the sample.
func (r *Registry) Send(domain dds.DomainID, topic string, sample any) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return errspkg.ErrClosed
	}
	w, ok := r.writers[Key{Domain: domain, Topic: topic}]
	r.mu.RUnlock()
	if !ok {
		return errspkg.UnknownWriter(domain, topic)
	}

	err := r.rt.Write(w.handle, sample)
	r.metrics.operation(errspkg.OpWrite, err)
	return errspkg.NewRuntimeError(errspkg.OpWrite, err)
}

// Read copies at most one sample from the reader of (domain, topic) into
// sample slot index, leaving it in the reader's cache. It never waits and
// returns the number of samples delivered. When nothing was delivered the
// slot reports invalid data.
func (r *Registry) Read(domain dds.DomainID, topic string, index int) (int, error) {
	return r.receive(errspkg.OpRead, domain, topic, index)
}

// Take behaves like Read but removes the delivered sample from the reader.
func (r *Registry) Take(domain dds.DomainID, topic string, index int) (int, error) {
	return r.receive(errspkg.OpTake, domain, topic, index)
}

func (r *Registry) receive(op errspkg.Op, domain dds.DomainID, topic string, index int) (int, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return 0, errspkg.ErrClosed
	}
	rd, ok := r.readers[Key{Domain: domain, Topic: topic}]
	slot, hasSlot := r.samples[index]
	r.mu.RUnlock()
	if !ok {
		return 0, errspkg.UnknownReader(domain, topic)
	}
	if !hasSlot {
		return 0, errspkg.UnknownSample(index)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	var (
		n   int
		err error
	)
	if op == errspkg.OpTake {
		n, err = r.rt.Take(rd.handle, slot.buf, &slot.info)
	} else {
		n, err = r.rt.Read(rd.handle, slot.buf, &slot.info)
	}
	r.metrics.operation(op, err)
	if err != nil || n == 0 {
		slot.info.Reset()
	}
	if err != nil {
		return 0, errspkg.NewRuntimeError(op, err)
	}
	return n, nil
}

// SetTopicCallback replaces the callback of the topic registered for
// (domain, topic). A nil cb removes it.
func (r *Registry) SetTopicCallback(domain dds.DomainID, topic string, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errspkg.ErrClosed
	}
	t, ok := r.topics[Key{Domain: domain, Topic: topic}]
	if !ok {
		return errspkg.UnknownTopic(domain, topic)
	}
	t.callback = cb
	return nil
}

// SetReaderCallback replaces the callback of the reader registered for
// (domain, topic). A nil cb removes it.
func (r *Registry) SetReaderCallback(domain dds.DomainID, topic string, cb Callback) error {
	return r.setEndpointCallback(errspkg.KindReader, domain, topic, cb)
}

// SetWriterCallback replaces the callback of the writer registered for
// (domain, topic). A nil cb removes it.
func (r *Registry) SetWriterCallback(domain dds.DomainID, topic string, cb Callback) error {
	return r.setEndpointCallback(errspkg.KindWriter, domain, topic, cb)
}

func (r *Registry) setEndpointCallback(kind errspkg.Kind, domain dds.DomainID, topic string, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errspkg.ErrClosed
	}
	e, ok := r.registryFor(kind)[Key{Domain: domain, Topic: topic}]
	if !ok {
		if kind == errspkg.KindReader {
			return errspkg.UnknownReader(domain, topic)
		}
		return errspkg.UnknownWriter(domain, topic)
	}
	e.callback = cb
	return nil
}
