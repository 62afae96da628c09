package runtime

import (
	"cmp"
	"errors"
	"maps"
	"net/http"
	"slices"
	"sync"

	"github.com/drblury/ddsctx/dds"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/logging"
)

// Key identifies a topic and its reader and writer.
type Key struct {
	Domain dds.DomainID
	Topic  string
}

// Dependencies holds the optional collaborators of a Registry.
type Dependencies struct {
	// Metrics records entity creation, events and runtime operations. Nil
	// disables metrics.
	Metrics *Metrics

	// Strict makes re-registering a topic, reader, writer or sample slot
	// with different parameters fail with ErrRegistrationMismatch. By
	// default the first registration wins and later parameters are ignored.
	Strict bool

	// OwnsRuntime makes Close close the runtime after tearing down the
	// registry's entities.
	OwnsRuntime bool
}

type entry struct {
	handle   dds.Entity
	listener *dds.Listener
	qosName  string
	callback Callback
}

type topicEntry struct {
	entry
	desc dds.Descriptor
}

// entityRef is the reverse index record of a handle.
type entityRef struct {
	kind errspkg.Kind
	key  Key
}

// Registry lazily creates and caches runtime entities by (domain, topic)
// key and forwards their listener events to one callback per entity.
//
// A Registry is safe for concurrent use. Create it with New (or Open) and
// release everything it created with a single Close.
type Registry struct {
	rt      dds.Runtime
	log     logging.ServiceLogger
	metrics *Metrics
	strict  bool
	ownsRT  bool

	mu           sync.RWMutex
	closed       bool
	participants map[dds.DomainID]dds.Entity
	qos          map[string]*dds.QoS
	topics       map[Key]*topicEntry
	readers      map[Key]*entry
	writers      map[Key]*entry
	entities     map[dds.Entity]entityRef
	samples      map[int]*sampleSlot

	httpMu      sync.Mutex
	httpMuxes   map[int]*http.ServeMux
	httpServers []*http.Server

	closeOnce sync.Once
	closeErr  error
}

// New returns a registry over rt.
func New(rt dds.Runtime, log logging.ServiceLogger, deps Dependencies) (*Registry, error) {
	if rt == nil {
		return nil, errspkg.ErrRuntimeRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	return &Registry{
		rt:           rt,
		log:          log.With(logging.LogFields{"component": "registry"}),
		metrics:      deps.Metrics,
		strict:       deps.Strict,
		ownsRT:       deps.OwnsRuntime,
		participants: make(map[dds.DomainID]dds.Entity),
		qos:          make(map[string]*dds.QoS),
		topics:       make(map[Key]*topicEntry),
		readers:      make(map[Key]*entry),
		writers:      make(map[Key]*entry),
		entities:     make(map[dds.Entity]entityRef),
		samples:      make(map[int]*sampleSlot),
	}, nil
}

// Runtime returns the runtime the registry drives.
func (r *Registry) Runtime() dds.Runtime {
	return r.rt
}

// Close deletes every entity in dependency order: listeners are detached and
// readers and writers deleted first, then topics, then participants. QoS
// profiles are dropped and sample buffers freed with the descriptor they
// were allocated with. The runtime is closed last when the registry owns it.
// Later calls return the result of the first.
//
// Close must not be called from a Callback when the registry owns the
// runtime: closing the bundled engine waits for the running callback to
// return, so the call never completes.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.teardown()
	})
	return r.closeErr
}

func (r *Registry) teardown() error {
	r.mu.Lock()
	r.closed = true
	readers, writers, topics := r.readers, r.writers, r.topics
	participants, samples := r.participants, r.samples
	r.readers, r.writers, r.topics = nil, nil, nil
	r.participants, r.samples, r.qos = nil, nil, nil
	r.entities = nil
	r.mu.Unlock()

	var errs []error
	if err := r.stopHTTPServers(); err != nil {
		errs = append(errs, err)
	}
	remove := func(handle dds.Entity) {
		err := r.rt.Delete(handle)
		r.metrics.operation(errspkg.OpDelete, err)
		if err != nil {
			errs = append(errs, errspkg.NewRuntimeError(errspkg.OpDelete, err))
		}
	}

	endpoints := slices.Concat(slices.Collect(maps.Values(readers)), slices.Collect(maps.Values(writers)))
	slices.SortFunc(endpoints, func(a, b *entry) int { return cmp.Compare(a.handle, b.handle) })
	for _, e := range endpoints {
		e.listener.Close()
		remove(e.handle)
	}

	topicEntries := slices.SortedFunc(maps.Values(topics), func(a, b *topicEntry) int { return cmp.Compare(a.handle, b.handle) })
	for _, t := range topicEntries {
		t.listener.Close()
		remove(t.handle)
	}

	for _, domain := range slices.Sorted(maps.Keys(participants)) {
		remove(participants[domain])
	}

	for _, index := range slices.Sorted(maps.Keys(samples)) {
		samples[index].free()
	}

	if r.ownsRT {
		if err := r.rt.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		r.log.Error("Registry teardown failed", err, nil)
	} else {
		r.log.Debug("Registry closed", logging.LogFields{
			"readers":      len(readers),
			"writers":      len(writers),
			"topics":       len(topics),
			"participants": len(participants),
			"samples":      len(samples),
		})
	}
	return err
}
