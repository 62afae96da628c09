package runtime

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
)

// Metrics counts registry activity. A nil *Metrics records nothing.
type Metrics struct {
	mu sync.Mutex

	entitiesCreated  *prometheus.CounterVec
	eventsDispatched *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	operations       *prometheus.CounterVec
	operationErrors  *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ddsctx",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collectors. A nil registerer selects
// prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer:       registerer,
		entitiesCreated:  newCounterVec("entities_created_total", "Entities created through the registry", "kind"),
		eventsDispatched: newCounterVec("events_dispatched_total", "Listener events delivered to a callback", "code"),
		eventsDropped:    newCounterVec("events_dropped_total", "Listener events dropped because no callback was set", "code"),
		operations:       newCounterVec("operations_total", "Runtime operations issued by the registry", "op"),
		operationErrors:  newCounterVec("operation_errors_total", "Runtime operations that failed", "op"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []**prometheus.CounterVec{
		&m.entitiesCreated,
		&m.eventsDispatched,
		&m.eventsDropped,
		&m.operations,
		&m.operationErrors,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(*c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				*c = existing
			}
		}
	}

	m.registered = true
	return nil
}

// gatherer returns the registerer as a Gatherer when it is one.
func (m *Metrics) gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	g, _ := m.registerer.(prometheus.Gatherer)
	return g
}

func (m *Metrics) entityCreated(kind errspkg.Kind) {
	if m == nil {
		return
	}
	m.entitiesCreated.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) participantCreated() {
	if m == nil {
		return
	}
	m.entitiesCreated.WithLabelValues("participant").Inc()
}

func (m *Metrics) event(code EventCode, delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.eventsDispatched.WithLabelValues(code.String()).Inc()
		return
	}
	m.eventsDropped.WithLabelValues(code.String()).Inc()
}

func (m *Metrics) operation(op errspkg.Op, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op)).Inc()
	if err != nil {
		m.operationErrors.WithLabelValues(string(op)).Inc()
	}
}

// Reset clears all series.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.entitiesCreated.Reset()
	m.eventsDispatched.Reset()
	m.eventsDropped.Reset()
	m.operations.Reset()
	m.operationErrors.Reset()
}
