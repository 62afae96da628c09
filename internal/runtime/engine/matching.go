package engine

import "github.com/drblury/ddsctx/dds"

// Local readers and writers match when they share a bus topic and a type.
func sameKey(a, b *topic) bool {
	return a.busTopic == b.busTopic && a.typeName == b.typeName
}

// matchReader pairs a new reader with the existing local writers. Callers
// hold e.mu.
func (e *Engine) matchReader(r *reader) []func() {
	var events []func()
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		if w, ok := ent.(*writer); ok && sameKey(w.topic, r.topic) {
			events = append(events, e.pair(w, r)...)
		}
		return true
	})
	return events
}

// matchWriter pairs a new writer with the existing local readers. Callers
// hold e.mu.
func (e *Engine) matchWriter(w *writer) []func() {
	var events []func()
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		if r, ok := ent.(*reader); ok && sameKey(w.topic, r.topic) {
			events = append(events, e.pair(w, r)...)
		}
		return true
	})
	return events
}

func (e *Engine) pair(w *writer, r *reader) []func() {
	if policy := dds.Incompatible(w.policies, r.policies); policy != dds.InvalidQosPolicyID {
		return []func(){r.rejectWriter(w, policy), w.rejectReader(policy)}
	}

	events := []func(){r.matchedWriter(w, 1), w.matchedReader(r, 1)}
	if w.policies.Durability >= dds.TransientLocal && r.policies.Durability >= dds.TransientLocal {
		now := e.opts.Clock.Now()
		for _, s := range w.retainedSamples() {
			events = append(events, r.receive(s.header, s.payload, now)...)
		}
	}
	return events
}

// unmatchReader reports the loss of r to its matched writers.
func (e *Engine) unmatchReader(r *reader) []func() {
	var events []func()
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		if w, ok := ent.(*writer); ok && sameKey(w.topic, r.topic) && r.compatibleWith(w) {
			events = append(events, w.matchedReader(r, -1))
		}
		return true
	})
	return events
}

// unmatchWriter reports the loss of w to its matched readers.
func (e *Engine) unmatchWriter(w *writer) []func() {
	var events []func()
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		r, ok := ent.(*reader)
		if !ok || !sameKey(w.topic, r.topic) || !r.compatibleWith(w) {
			return true
		}
		events = append(events, r.matchedWriter(w, -1))
		events = append(events, r.forget(w.guid.String())...)
		return true
	})
	return events
}
