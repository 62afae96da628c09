package runtime

import (
	"github.com/drblury/ddsctx/dds"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
)

// dispatch resolves handle through the reverse index and invokes the
// callback currently set for its entity. The callback runs outside the
// registry lock; events for entities without a callback are dropped.
func (r *Registry) dispatch(handle dds.Entity, code EventCode, status any) {
	r.mu.RLock()
	ref, ok := r.entities[handle]
	var cb Callback
	if ok {
		cb = r.callbackLocked(ref)
	}
	r.mu.RUnlock()

	if cb == nil {
		r.metrics.event(code, false)
		return
	}
	cb(code, ref.key.Domain, ref.key.Topic, status)
	r.metrics.event(code, true)
}

func (r *Registry) callbackLocked(ref entityRef) Callback {
	switch ref.kind {
	case errspkg.KindTopic:
		if t, ok := r.topics[ref.key]; ok {
			return t.callback
		}
	case errspkg.KindReader:
		if e, ok := r.readers[ref.key]; ok {
			return e.callback
		}
	case errspkg.KindWriter:
		if e, ok := r.writers[ref.key]; ok {
			return e.callback
		}
	}
	return nil
}

func (r *Registry) topicListener() *dds.Listener {
	l := dds.NewListener()
	l.OnInconsistentTopic = func(e dds.Entity, s dds.InconsistentTopicStatus) {
		r.dispatch(e, TopicOnInconsistentTopic, s)
	}
	return l
}

func (r *Registry) readerListener() *dds.Listener {
	l := dds.NewListener()
	l.OnDataAvailable = func(e dds.Entity) {
		r.dispatch(e, ReaderOnDataAvailable, nil)
	}
	l.OnSubscriptionMatched = func(e dds.Entity, s dds.SubscriptionMatchedStatus) {
		r.dispatch(e, ReaderOnSubscriptionMatched, s)
	}
	l.OnSampleLost = func(e dds.Entity, s dds.SampleLostStatus) {
		r.dispatch(e, ReaderOnSampleLost, s)
	}
	l.OnSampleRejected = func(e dds.Entity, s dds.SampleRejectedStatus) {
		r.dispatch(e, ReaderOnSampleRejected, s)
	}
	l.OnLivelinessChanged = func(e dds.Entity, s dds.LivelinessChangedStatus) {
		r.dispatch(e, ReaderOnLivelinessChanged, s)
	}
	l.OnRequestedDeadlineMissed = func(e dds.Entity, s dds.RequestedDeadlineMissedStatus) {
		r.dispatch(e, ReaderOnRequestedDeadlineMissed, s)
	}
	l.OnRequestedIncompatibleQos = func(e dds.Entity, s dds.RequestedIncompatibleQosStatus) {
		r.dispatch(e, ReaderOnRequestedIncompatibleQoS, s)
	}
	return l
}

func (r *Registry) writerListener() *dds.Listener {
	l := dds.NewListener()
	l.OnPublicationMatched = func(e dds.Entity, s dds.PublicationMatchedStatus) {
		r.dispatch(e, WriterOnPublicationMatched, s)
	}
	l.OnLivelinessLost = func(e dds.Entity, s dds.LivelinessLostStatus) {
		r.dispatch(e, WriterOnLivelinessLost, s)
	}
	l.OnOfferedDeadlineMissed = func(e dds.Entity, s dds.OfferedDeadlineMissedStatus) {
		r.dispatch(e, WriterOnOfferedDeadlineMissed, s)
	}
	l.OnOfferedIncompatibleQos = func(e dds.Entity, s dds.OfferedIncompatibleQosStatus) {
		r.dispatch(e, WriterOnOfferedIncompatibleQoS, s)
	}
	return l
}
