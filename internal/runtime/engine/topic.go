package engine

import (
	"sync"

	"github.com/drblury/ddsctx/dds"
)

type topic struct {
	entityBase
	name     string
	typeName string
	busTopic string
	desc     dds.Descriptor
	policies dds.Policies
	listener *dds.Listener

	mu           sync.Mutex
	inconsistent dds.InconsistentTopicStatus
	// writers already reported for publishing another type on this topic
	mismatched map[string]struct{}
}

// inconsistentEvent bumps the inconsistent-topic status and returns the
// listener invocation reporting it.
func (t *topic) inconsistentEvent() func() {
	t.mu.Lock()
	t.inconsistent.TotalCount++
	t.inconsistent.TotalCountChange = 1
	status := t.inconsistent
	t.mu.Unlock()

	listener, handle := t.listener, t.handle
	return func() { listener.InconsistentTopic(handle, status) }
}

// remoteMismatch reports a writer publishing another type name on the
// topic, once per writer.
func (t *topic) remoteMismatch(writer string) []func() {
	t.mu.Lock()
	if t.mismatched == nil {
		t.mismatched = make(map[string]struct{})
	}
	_, seen := t.mismatched[writer]
	t.mismatched[writer] = struct{}{}
	t.mu.Unlock()

	if seen {
		return nil
	}
	return []func(){t.inconsistentEvent()}
}

// checkInconsistentTopics compares a new topic with the local topics of the
// same domain and name. Callers hold e.mu.
func (e *Engine) checkInconsistentTopics(t *topic) []func() {
	var events []func()
	e.entities.ForEach(func(_ dds.Entity, ent entity) bool {
		other, ok := ent.(*topic)
		if !ok || other == t || other.busTopic != t.busTopic || other.typeName == t.typeName {
			return true
		}
		events = append(events, other.inconsistentEvent(), t.inconsistentEvent())
		return true
	})
	return events
}
