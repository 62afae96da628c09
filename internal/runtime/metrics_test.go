package runtime

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/ddsctx/dds"
)

func TestMetricsRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	other := NewMetrics(reg)
	require.NoError(t, other.Register(), "already registered collectors are not an error")
	other.participantCreated()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entitiesCreated.WithLabelValues("participant")), "second Metrics reuses the registered collectors")

	var nilMetrics *Metrics
	assert.NoError(t, nilMetrics.Register())
}

func TestMetricsRecordRegistryActivity(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, m.Register())

	reg, rt := newTestRegistry(t, Dependencies{Metrics: m})
	_, reader, _ := setupTopic(t, reg)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.entitiesCreated.WithLabelValues("participant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entitiesCreated.WithLabelValues("topic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entitiesCreated.WithLabelValues("reader")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entitiesCreated.WithLabelValues("writer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entitiesCreated.WithLabelValues("sample")))

	require.NoError(t, reg.Send(0, "T", int32(1)))
	rt.writeErr = dds.RetcodeError
	require.Error(t, reg.Send(0, "T", int32(2)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationErrors.WithLabelValues("write")))

	rt.listener(reader).DataAvailable(reader)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues("data_available")))

	require.NoError(t, reg.SetReaderCallback(0, "T", func(EventCode, dds.DomainID, string, any) {}))
	rt.listener(reader).DataAvailable(reader)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDispatched.WithLabelValues("data_available")))

	m.Reset()
	assert.Zero(t, testutil.ToFloat64(m.eventsDispatched.WithLabelValues("data_available")))
}
