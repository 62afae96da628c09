package dds

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnCodeReason(t *testing.T) {
	tests := []struct {
		code ReturnCode
		want string
	}{
		{RetcodeError, "Error"},
		{RetcodeBadParameter, "Bad Parameter"},
		{RetcodePreconditionNotMet, "Precondition Not Met"},
		{RetcodeOutOfResources, "Out Of Resources"},
		{RetcodeAlreadyDeleted, "Already Deleted"},
		{RetcodeIllegalOperation, "Illegal Operation"},
		{ReturnCode(-99), "Unknown (-99)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Reason())
			assert.Equal(t, tt.want, tt.code.Error())
		})
	}
}

func TestReturnCodeWrap(t *testing.T) {
	cause := errors.New("broker unavailable")
	err := RetcodeOutOfResources.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, RetcodeOutOfResources)
	assert.Equal(t, RetcodeOutOfResources, CodeOf(err))
	assert.Equal(t, "Out Of Resources: broker unavailable", err.Error())

	assert.Equal(t, RetcodeTimeout, RetcodeTimeout.Wrap(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, RetcodeOK, CodeOf(nil))
	assert.Equal(t, RetcodeError, CodeOf(errors.New("plain")))
	assert.Equal(t, RetcodeNoData, CodeOf(fmt.Errorf("wrapped: %w", RetcodeNoData)))
}

func TestQoSDefaultsAndSnapshot(t *testing.T) {
	q := NewQoS()
	p := q.Snapshot()
	assert.Equal(t, BestEffort, p.Reliability)
	assert.Equal(t, KeepLast, p.History)
	assert.Equal(t, 1, p.HistoryDepth)
	assert.Equal(t, Unlimited, p.MaxSamples)

	q.SetReliability(Reliable, 10*time.Second).
		SetHistory(KeepAll, 0).
		SetResourceLimits(8).
		SetDeadline(time.Second).
		SetUserData([]byte("meta"))

	before := p
	p = q.Snapshot()
	assert.Equal(t, BestEffort, before.Reliability, "snapshots are copies")
	assert.Equal(t, Reliable, p.Reliability)
	assert.Equal(t, 10*time.Second, p.MaxBlockingTime)
	assert.Equal(t, KeepAll, p.History)
	assert.Equal(t, 1, p.HistoryDepth)
	assert.Equal(t, 8, p.MaxSamples)
	assert.Equal(t, []byte("meta"), p.UserData)

	var nilQoS *QoS
	assert.Equal(t, NewQoS().Snapshot(), nilQoS.Snapshot())
}

func TestIncompatible(t *testing.T) {
	base := NewQoS().Snapshot()

	tests := []struct {
		name      string
		offered   func(p *Policies)
		requested func(p *Policies)
		want      QosPolicyID
	}{
		{"defaults match", nil, nil, InvalidQosPolicyID},
		{"reliable reader best effort writer", nil, func(p *Policies) { p.Reliability = Reliable }, ReliabilityQosPolicyID},
		{"reliable writer best effort reader", func(p *Policies) { p.Reliability = Reliable }, nil, InvalidQosPolicyID},
		{"durability", nil, func(p *Policies) { p.Durability = TransientLocal }, DurabilityQosPolicyID},
		{"deadline infinite offered", nil, func(p *Policies) { p.Deadline = time.Second }, DeadlineQosPolicyID},
		{"deadline too long", func(p *Policies) { p.Deadline = 2 * time.Second }, func(p *Policies) { p.Deadline = time.Second }, DeadlineQosPolicyID},
		{"deadline ok", func(p *Policies) { p.Deadline = time.Second }, func(p *Policies) { p.Deadline = 2 * time.Second }, InvalidQosPolicyID},
		{"liveliness kind", nil, func(p *Policies) { p.Liveliness = LivelinessManualByTopic }, LivelinessQosPolicyID},
		{"lease", nil, func(p *Policies) { p.LeaseDuration = time.Second }, LivelinessQosPolicyID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offered, requested := base, base
			if tt.offered != nil {
				tt.offered(&offered)
			}
			if tt.requested != nil {
				tt.requested(&requested)
			}
			assert.Equal(t, tt.want, Incompatible(offered, requested))
		})
	}
}

func TestListenerDispatchAndClose(t *testing.T) {
	var data, matched int
	l := NewListener()
	l.OnDataAvailable = func(Entity) { data++ }
	l.OnSubscriptionMatched = func(_ Entity, s SubscriptionMatchedStatus) { matched += int(s.CurrentCount) }

	l.DataAvailable(1)
	l.SubscriptionMatched(1, SubscriptionMatchedStatus{CurrentCount: 2})
	l.SampleLost(1, SampleLostStatus{})
	require.Equal(t, 1, data)
	require.Equal(t, 2, matched)

	l.Close()
	assert.True(t, l.Closed())
	l.DataAvailable(1)
	assert.Equal(t, 1, data)

	var nilListener *Listener
	assert.NotPanics(t, func() { nilListener.DataAvailable(1) })
	assert.True(t, nilListener.Closed())
}

func TestSampleInfoReset(t *testing.T) {
	info := SampleInfo{ValidData: true, SequenceNumber: 4, SourceTimestamp: time.Now()}
	info.Reset()
	assert.False(t, info.ValidData)
	assert.Zero(t, info.SequenceNumber)
	assert.True(t, info.SourceTimestamp.IsZero())
}

func TestEntityValid(t *testing.T) {
	assert.True(t, Entity(1).Valid())
	assert.False(t, Entity(0).Valid())
	assert.False(t, Entity(-3).Valid())
}
