package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/ddsctx/dds"
	"github.com/drblury/ddsctx/descriptor"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/logging"
)

func newTestRegistry(t *testing.T, deps Dependencies) (*Registry, *fakeRuntime) {
	t.Helper()
	rt := newFakeRuntime()
	reg, err := New(rt, logging.NewNopServiceLogger(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, rt
}

// setupTopic registers sample 0, topic "T" in domain 0 with a reader and a
// writer.
func setupTopic(t *testing.T, reg *Registry) (topic, reader, writer dds.Entity) {
	t.Helper()
	require.NoError(t, reg.Sample(0, descriptor.Int32Size, descriptor.Int32{}))
	topic, err := reg.Topic(0, descriptor.Int32{}, "T", "qos")
	require.NoError(t, err)
	reader, err = reg.Reader(0, "T", "qos")
	require.NoError(t, err)
	writer, err = reg.Writer(0, "T", "qos")
	require.NoError(t, err)
	return topic, reader, writer
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, logging.NewNopServiceLogger(), Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrRuntimeRequired)

	_, err = New(newFakeRuntime(), nil, Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)
}

func TestIdempotentCreation(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})

	p1, err := reg.Domain(3)
	require.NoError(t, err)
	p2, err := reg.Domain(3)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	q1, err := reg.QoS("reliable")
	require.NoError(t, err)
	q2, err := reg.QoS("reliable")
	require.NoError(t, err)
	assert.Same(t, q1, q2)

	t1, err := reg.Topic(3, descriptor.Int32{}, "T", "reliable")
	require.NoError(t, err)
	t2, err := reg.Topic(3, descriptor.Int32{}, "T", "reliable")
	require.NoError(t, err)
	assert.Equal(t, t1, t2)

	r1, err := reg.Reader(3, "T", "reliable")
	require.NoError(t, err)
	r2, err := reg.Reader(3, "T", "reliable")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	w1, err := reg.Writer(3, "T", "reliable")
	require.NoError(t, err)
	w2, err := reg.Writer(3, "T", "reliable")
	require.NoError(t, err)
	assert.Equal(t, w1, w2)

	require.NoError(t, reg.Sample(1, 4, descriptor.Int32{}))
	d1, err := reg.Data(1)
	require.NoError(t, err)
	require.NoError(t, reg.Sample(1, 64, descriptor.NewRaw("other", 64)))
	d2, err := reg.Data(1)
	require.NoError(t, err)
	assert.Same(t, d1.(*int32), d2.(*int32))

	assert.Equal(t, map[string]int{"participant": 1, "topic": 1, "reader": 1, "writer": 1}, rt.creates)
	assert.Same(t, q1, rt.qos[t1], "the named profile is handed to the runtime")
}

func TestFirstRegistrationWins(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})

	t1, err := reg.Topic(0, descriptor.Int32{}, "T", "a")
	require.NoError(t, err)
	t2, err := reg.Topic(0, descriptor.NewRaw("blob", 8), "T", "b")
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.Equal(t, 1, rt.creates["topic"])

	_, err = reg.Topic(0, nil, "T", "")
	assert.NoError(t, err, "descriptor is ignored once registered")
}

func TestStrictRegistration(t *testing.T) {
	reg, _ := newTestRegistry(t, Dependencies{Strict: true})

	require.NoError(t, reg.Sample(0, 4, descriptor.Int32{}))
	require.NoError(t, reg.Sample(0, 4, descriptor.Int32{}))
	assert.ErrorIs(t, reg.Sample(0, 8, descriptor.Int32{}), errspkg.ErrRegistrationMismatch)

	_, err := reg.Topic(0, descriptor.Int32{}, "T", "a")
	require.NoError(t, err)
	_, err = reg.Topic(0, descriptor.Int32{}, "T", "a")
	require.NoError(t, err)
	_, err = reg.Topic(0, descriptor.NewRaw("blob", 8), "T", "a")
	assert.ErrorIs(t, err, errspkg.ErrRegistrationMismatch)
	_, err = reg.Topic(0, descriptor.Int32{}, "T", "b")
	assert.ErrorIs(t, err, errspkg.ErrRegistrationMismatch)

	_, err = reg.Reader(0, "T", "a")
	require.NoError(t, err)
	_, err = reg.Reader(0, "T", "b")
	assert.ErrorIs(t, err, errspkg.ErrRegistrationMismatch)
}

func TestEndpointsRequireTopic(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})

	_, err := reg.Reader(0, "T", "qos")
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	assert.EqualError(t, err, `ddsctx: unknown topic: "T" in domain 0`)

	_, err = reg.Writer(0, "T", "qos")
	assert.ErrorIs(t, err, errspkg.ErrNotFound)

	assert.Zero(t, rt.totalCreates())
}

func TestTopicRequiresDescriptor(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})
	_, err := reg.Topic(0, nil, "T", "")
	assert.ErrorIs(t, err, errspkg.ErrDescriptorRequired)
	assert.Zero(t, rt.totalCreates())
	assert.ErrorIs(t, reg.Sample(0, 4, nil), errspkg.ErrDescriptorRequired)
}

func TestRuntimeFailuresAreWrapped(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})

	rt.createErr["participant"] = dds.RetcodeBadParameter
	_, err := reg.Domain(7)
	var rerr *errspkg.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errspkg.OpCreateParticipant, rerr.Op)
	assert.EqualError(t, err, "ddsctx: create_participant (-3): Bad Parameter")
	delete(rt.createErr, "participant")

	rt.createErr["topic"] = dds.RetcodeOutOfResources
	_, err = reg.Topic(0, descriptor.Int32{}, "T", "")
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errspkg.OpCreateTopic, rerr.Op)
	assert.Equal(t, dds.RetcodeOutOfResources, rerr.Code)
	delete(rt.createErr, "topic")

	_, err = reg.Topic(0, descriptor.Int32{}, "T", "")
	require.NoError(t, err, "a failed creation is retried on the next call")

	rt.createErr["reader"] = errors.New("no memory")
	_, err = reg.Reader(0, "T", "")
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errspkg.OpCreateReader, rerr.Op)
	assert.Equal(t, dds.RetcodeError, rerr.Code)
}

func TestSendRequiresWriter(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})

	err := reg.Send(0, "T", int32(1))
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	assert.EqualError(t, err, `ddsctx: unknown writer for topic: "T" in domain 0`)

	setupTopic(t, reg)
	require.NoError(t, reg.Send(0, "T", int32(42)))
	assert.Equal(t, []any{int32(42)}, rt.written)

	rt.writeErr = dds.RetcodeTimeout
	err = reg.Send(0, "T", int32(43))
	var rerr *errspkg.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errspkg.OpWrite, rerr.Op)
	assert.Equal(t, dds.RetcodeTimeout, rerr.Code)
}

func TestUnregisteredLookupsDoNotTouchRuntime(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})
	setupTopic(t, reg)
	before := rt.callCount()

	_, err := reg.Read(0, "T", 9)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	assert.EqualError(t, err, `ddsctx: unknown sample: "9"`)
	_, err = reg.Take(0, "T", 9)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	_, err = reg.Data(9)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	_, err = reg.Valid(9)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	_, err = reg.Info(9)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)

	_, err = reg.Take(0, "other", 0)
	assert.EqualError(t, err, `ddsctx: unknown reader for topic: "other" in domain 0`)

	assert.Equal(t, before, rt.callCount())
}

func TestReadAndTake(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})
	setupTopic(t, reg)
	rt.pending = []int32{42}

	data, err := reg.Data(0)
	require.NoError(t, err)

	n, err := reg.Read(0, "T", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = reg.Read(0, "T", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := reg.Data(0)
	require.NoError(t, err)
	assert.Same(t, data.(*int32), again.(*int32), "the buffer is reused in place")
	assert.Equal(t, int32(42), *again.(*int32))

	n, err = reg.Take(0, "T", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	valid, err := reg.Valid(0)
	require.NoError(t, err)
	assert.True(t, valid)

	n, err = reg.Take(0, "T", 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	valid, err = reg.Valid(0)
	require.NoError(t, err)
	assert.False(t, valid, "an empty take leaves no valid data behind")
}

func TestTakeChecksItsOwnStatus(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})
	setupTopic(t, reg)
	rt.pending = []int32{1}
	rt.takeErr = dds.RetcodePreconditionNotMet

	_, err := reg.Read(0, "T", 0)
	require.NoError(t, err)

	_, err = reg.Take(0, "T", 0)
	var rerr *errspkg.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errspkg.OpTake, rerr.Op)
	assert.Equal(t, dds.RetcodePreconditionNotMet, rerr.Code)
	valid, err := reg.Valid(0)
	require.NoError(t, err)
	assert.False(t, valid, "a failed take leaves the slot invalid")

	rt.takeErr = nil
	rt.readErr = dds.RetcodeError
	_, err = reg.Read(0, "T", 0)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errspkg.OpRead, rerr.Op)
}

func TestSetCallbackRequiresEntity(t *testing.T) {
	reg, _ := newTestRegistry(t, Dependencies{})
	noop := func(EventCode, dds.DomainID, string, any) {}

	assert.ErrorIs(t, reg.SetTopicCallback(0, "T", noop), errspkg.ErrNotFound)
	assert.ErrorIs(t, reg.SetReaderCallback(0, "T", noop), errspkg.ErrNotFound)
	assert.ErrorIs(t, reg.SetWriterCallback(0, "T", noop), errspkg.ErrNotFound)

	setupTopic(t, reg)
	assert.NoError(t, reg.SetTopicCallback(0, "T", noop))
	assert.NoError(t, reg.SetReaderCallback(0, "T", noop))
	assert.NoError(t, reg.SetWriterCallback(0, "T", nil))
}

func TestCloseReleasesInDependencyOrder(t *testing.T) {
	rt := newFakeRuntime()
	reg, err := New(rt, logging.NewNopServiceLogger(), Dependencies{OwnsRuntime: true})
	require.NoError(t, err)

	frees := 0
	desc := countingDescriptor{name: "counted", frees: &frees}
	require.NoError(t, reg.Sample(0, 4, desc))
	require.NoError(t, reg.Sample(0, 4, countingDescriptor{name: "later", frees: new(int)}))
	_, err = reg.Topic(0, descriptor.Int32{}, "A", "")
	require.NoError(t, err)
	_, err = reg.Topic(1, descriptor.Int32{}, "B", "")
	require.NoError(t, err)
	readerA, err := reg.Reader(0, "A", "")
	require.NoError(t, err)
	_, err = reg.Writer(1, "B", "")
	require.NoError(t, err)

	listener := rt.listener(readerA)
	require.NoError(t, reg.Close())

	assert.Equal(t, []string{"reader", "writer", "topic", "topic", "participant", "participant"}, rt.deletedKinds())
	assert.True(t, listener.Closed())
	assert.Equal(t, 1, frees, "slots are freed once with the descriptor they were allocated with")
	assert.True(t, rt.closed)

	require.NoError(t, reg.Close())
	assert.Len(t, rt.deleted, 6, "Close is idempotent")

	_, err = reg.Domain(0)
	assert.ErrorIs(t, err, errspkg.ErrClosed)
	_, err = reg.QoS("x")
	assert.ErrorIs(t, err, errspkg.ErrClosed)
	_, err = reg.Topic(0, descriptor.Int32{}, "C", "")
	assert.ErrorIs(t, err, errspkg.ErrClosed)
	assert.ErrorIs(t, reg.Sample(5, 4, descriptor.Int32{}), errspkg.ErrClosed)
	assert.ErrorIs(t, reg.Send(0, "A", int32(1)), errspkg.ErrClosed)
	_, err = reg.Take(0, "A", 0)
	assert.ErrorIs(t, err, errspkg.ErrClosed)
}

func TestCloseJoinsErrors(t *testing.T) {
	rt := newFakeRuntime()
	reg, err := New(rt, logging.NewNopServiceLogger(), Dependencies{OwnsRuntime: true})
	require.NoError(t, err)
	setupTopic(t, reg)

	rt.deleteErr = dds.RetcodePreconditionNotMet
	rt.closeErr = errors.New("bus gone")

	err = reg.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, dds.RetcodePreconditionNotMet)
	assert.ErrorIs(t, err, rt.closeErr)
	assert.Len(t, rt.deleted, 4, "teardown continues past failures")
	assert.Equal(t, err, reg.Close())
}

func TestCloseLeavesBorrowedRuntimeOpen(t *testing.T) {
	reg, rt := newTestRegistry(t, Dependencies{})
	require.NoError(t, reg.Close())
	assert.False(t, rt.closed)
}
