package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drblury/ddsctx/dds"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/ids"
	"github.com/drblury/ddsctx/internal/runtime/metadata"
	"github.com/drblury/ddsctx/transport"
)

type cachedSample struct {
	payload []byte
	info    dds.SampleInfo
}

// remoteWriter is what a reader knows about a writer it received from.
type remoteWriter struct {
	handle   dds.InstanceHandle
	lastSeq  uint64
	lastSeen time.Time
	alive    bool
	stale    bool
}

type reader struct {
	entityBase
	topic    *topic
	policies dds.Policies
	listener *dds.Listener
	caps     transport.Capabilities

	mu           sync.Mutex
	cache        []cachedSample
	writers      map[string]*remoteWriter
	incompatible map[string]struct{}
	deadlineRef  time.Time

	matched         dds.SubscriptionMatchedStatus
	lost            dds.SampleLostStatus
	rejected        dds.SampleRejectedStatus
	liveliness      dds.LivelinessChangedStatus
	deadline        dds.RequestedDeadlineMissedStatus
	incompatibleQos dds.RequestedIncompatibleQosStatus
}

func newReader(e *Engine, handle dds.Entity, p *participant, t *topic, policies dds.Policies, listener *dds.Listener) *reader {
	return &reader{
		entityBase:   entityBase{handle: handle, owner: p, guid: ids.NewGUID()},
		topic:        t,
		policies:     policies,
		listener:     listener,
		caps:         e.opts.Capabilities,
		writers:      make(map[string]*remoteWriter),
		incompatible: make(map[string]struct{}),
		deadlineRef:  e.opts.Clock.Now(),
	}
}

func writerHandle(writer string) dds.InstanceHandle {
	g, err := ids.ParseGUID(writer)
	if err != nil {
		return 0
	}
	return dds.InstanceHandle(ids.Handle(g))
}

// receive caches one sample and returns the resulting listener invocations.
func (r *reader) receive(h metadata.Header, payload []byte, now time.Time) []func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.incompatible[h.Writer]; ok {
		return nil
	}

	var events []func()
	rw := r.writers[h.Writer]
	if rw == nil {
		rw = &remoteWriter{handle: writerHandle(h.Writer)}
		r.writers[h.Writer] = rw
	}
	rw.lastSeen = now
	if !rw.alive {
		events = append(events, r.setAlive(rw, true))
	}

	if h.Sequence != 0 {
		if h.Sequence <= rw.lastSeq {
			return events
		}
		if rw.lastSeq > 0 && h.Sequence > rw.lastSeq+1 && r.caps.DetectsSampleLoss() {
			gap := h.Sequence - rw.lastSeq - 1
			r.lost.TotalCount += uint32(gap)
			r.lost.TotalCountChange = int32(gap)
			status := r.lost
			events = append(events, func() { r.listener.SampleLost(r.handle, status) })
		}
		rw.lastSeq = h.Sequence
	}

	switch r.policies.History {
	case dds.KeepAll:
		if r.policies.MaxSamples != dds.Unlimited && len(r.cache) >= r.policies.MaxSamples {
			r.rejected.TotalCount++
			r.rejected.TotalCountChange = 1
			r.rejected.LastReason = dds.RejectedBySamplesLimit
			r.rejected.LastInstanceHandle = rw.handle
			status := r.rejected
			return append(events, func() { r.listener.SampleRejected(r.handle, status) })
		}
	default:
		depth := max(r.policies.HistoryDepth, 1)
		if r.policies.MaxSamples != dds.Unlimited {
			depth = min(depth, r.policies.MaxSamples)
		}
		if len(r.cache) >= depth {
			n := copy(r.cache, r.cache[len(r.cache)-depth+1:])
			clear(r.cache[n:])
			r.cache = r.cache[:n]
		}
	}

	r.cache = append(r.cache, cachedSample{
		payload: payload,
		info: dds.SampleInfo{
			ValidData:          true,
			SampleState:        dds.SampleStateNotRead,
			SourceTimestamp:    h.SourceTimestamp,
			ReceptionTimestamp: now,
			PublicationHandle:  rw.handle,
			SequenceNumber:     h.Sequence,
		},
	})
	r.deadlineRef = now
	return append(events, func() { r.listener.DataAvailable(r.handle) })
}

// setAlive flips a writer's liveliness and returns the status event. Callers
// hold r.mu.
func (r *reader) setAlive(rw *remoteWriter, alive bool) func() {
	r.liveliness.AliveCountChange = 0
	r.liveliness.NotAliveCountChange = 0
	if alive {
		r.liveliness.AliveCount++
		r.liveliness.AliveCountChange = 1
		if rw.stale {
			r.liveliness.NotAliveCount--
			r.liveliness.NotAliveCountChange = -1
		}
	} else {
		r.liveliness.AliveCount--
		r.liveliness.AliveCountChange = -1
		r.liveliness.NotAliveCount++
		r.liveliness.NotAliveCountChange = 1
	}
	rw.alive = alive
	rw.stale = !alive
	r.liveliness.LastPublicationHandle = rw.handle
	status := r.liveliness
	return func() { r.listener.LivelinessChanged(r.handle, status) }
}

// forget drops a deleted writer from the liveliness bookkeeping.
func (r *reader) forget(writer string) []func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	rw := r.writers[writer]
	if rw == nil {
		return nil
	}
	delete(r.writers, writer)

	r.liveliness.AliveCountChange = 0
	r.liveliness.NotAliveCountChange = 0
	if rw.alive {
		r.liveliness.AliveCount--
		r.liveliness.AliveCountChange = -1
	} else if rw.stale {
		r.liveliness.NotAliveCount--
		r.liveliness.NotAliveCountChange = -1
	}
	r.liveliness.LastPublicationHandle = rw.handle
	status := r.liveliness
	return []func(){func() { r.listener.LivelinessChanged(r.handle, status) }}
}

// next copies the oldest cached sample into buf. take removes it.
func (r *reader) next(buf any, info *dds.SampleInfo, take bool) (int, error) {
	if buf == nil {
		return 0, dds.RetcodeBadParameter.Wrap(errors.New("sample buffer is required"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.cache) == 0 {
		if info != nil {
			info.Reset()
		}
		return 0, nil
	}

	s := &r.cache[0]
	if err := r.topic.desc.Decode(s.payload, buf); err != nil {
		// An undecodable sample can never be delivered; drop it so it does
		// not block the samples queued behind it.
		r.pop()
		if info != nil {
			info.Reset()
		}
		return 0, dds.RetcodeError.Wrap(fmt.Errorf("%w: %w", errspkg.ErrInvalidSample, err))
	}
	if info != nil {
		*info = s.info
	}
	if take {
		r.pop()
	} else {
		s.info.SampleState = dds.SampleStateRead
	}
	return 1, nil
}

// pop removes the oldest cached sample. Callers hold r.mu.
func (r *reader) pop() {
	r.cache[0] = cachedSample{}
	r.cache = r.cache[1:]
}

func (r *reader) matchedWriter(w *writer, delta int32) func() {
	r.mu.Lock()
	if delta > 0 {
		r.matched.TotalCount++
		r.matched.TotalCountChange = 1
		r.matched.CurrentCount++
	} else {
		r.matched.TotalCountChange = 0
		r.matched.CurrentCount--
	}
	r.matched.CurrentCountChange = delta
	r.matched.LastPublicationHandle = dds.InstanceHandle(ids.Handle(w.guid))
	status := r.matched
	r.mu.Unlock()

	return func() { r.listener.SubscriptionMatched(r.handle, status) }
}

func (r *reader) rejectWriter(w *writer, policy dds.QosPolicyID) func() {
	r.mu.Lock()
	r.incompatible[w.guid.String()] = struct{}{}
	r.incompatibleQos.TotalCount++
	r.incompatibleQos.TotalCountChange = 1
	r.incompatibleQos.LastPolicyID = policy
	status := r.incompatibleQos
	r.mu.Unlock()

	return func() { r.listener.RequestedIncompatibleQos(r.handle, status) }
}

func (r *reader) compatibleWith(w *writer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, bad := r.incompatible[w.guid.String()]
	return !bad
}

// tick checks the requested deadline and the liveliness lease of every known
// writer.
func (r *reader) tick(now time.Time) []func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []func()
	if d := r.policies.Deadline; d > 0 && now.Sub(r.deadlineRef) >= d {
		r.deadlineRef = now
		r.deadline.TotalCount++
		r.deadline.TotalCountChange = 1
		status := r.deadline
		events = append(events, func() { r.listener.RequestedDeadlineMissed(r.handle, status) })
	}
	if lease := r.policies.LeaseDuration; lease > 0 {
		for _, rw := range r.writers {
			if rw.alive && now.Sub(rw.lastSeen) > lease {
				events = append(events, r.setAlive(rw, false))
			}
		}
	}
	return events
}

func (e *Engine) Read(handle dds.Entity, buf any, info *dds.SampleInfo) (int, error) {
	return e.next(handle, buf, info, false)
}

func (e *Engine) Take(handle dds.Entity, buf any, info *dds.SampleInfo) (int, error) {
	return e.next(handle, buf, info, true)
}

func (e *Engine) next(handle dds.Entity, buf any, info *dds.SampleInfo, take bool) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	r, err := lookup[*reader](e, handle)
	if err != nil {
		return 0, err
	}
	return r.next(buf, info, take)
}
