package dds

import "sync"

// InconsistentTopicStatus reports topics with the same name but another type.
type InconsistentTopicStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type SubscriptionMatchedStatus struct {
	TotalCount            uint32
	TotalCountChange      int32
	CurrentCount          uint32
	CurrentCountChange    int32
	LastPublicationHandle InstanceHandle
}

type PublicationMatchedStatus struct {
	TotalCount             uint32
	TotalCountChange       int32
	CurrentCount           uint32
	CurrentCountChange     int32
	LastSubscriptionHandle InstanceHandle
}

type SampleLostStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

// SampleRejectedReason tells which limit caused a rejection.
type SampleRejectedReason uint8

const (
	NotRejected SampleRejectedReason = iota
	RejectedByInstancesLimit
	RejectedBySamplesLimit
	RejectedBySamplesPerInstanceLimit
)

type SampleRejectedStatus struct {
	TotalCount         uint32
	TotalCountChange   int32
	LastReason         SampleRejectedReason
	LastInstanceHandle InstanceHandle
}

type LivelinessChangedStatus struct {
	AliveCount            uint32
	NotAliveCount         uint32
	AliveCountChange      int32
	NotAliveCountChange   int32
	LastPublicationHandle InstanceHandle
}

type LivelinessLostStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type RequestedDeadlineMissedStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type OfferedDeadlineMissedStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type RequestedIncompatibleQosStatus struct {
	TotalCount       uint32
	TotalCountChange int32
	LastPolicyID     QosPolicyID
}

type OfferedIncompatibleQosStatus struct {
	TotalCount       uint32
	TotalCountChange int32
	LastPolicyID     QosPolicyID
}

// Listener binds one callback per event kind to an entity. Unset callbacks
// disable the corresponding event. A closed listener ignores every event, so
// a runtime can keep a reference to it until the entity is gone.
type Listener struct {
	OnInconsistentTopic        func(topic Entity, status InconsistentTopicStatus)
	OnDataAvailable            func(reader Entity)
	OnSubscriptionMatched      func(reader Entity, status SubscriptionMatchedStatus)
	OnSampleLost               func(reader Entity, status SampleLostStatus)
	OnSampleRejected           func(reader Entity, status SampleRejectedStatus)
	OnLivelinessChanged        func(reader Entity, status LivelinessChangedStatus)
	OnRequestedDeadlineMissed  func(reader Entity, status RequestedDeadlineMissedStatus)
	OnRequestedIncompatibleQos func(reader Entity, status RequestedIncompatibleQosStatus)
	OnPublicationMatched       func(writer Entity, status PublicationMatchedStatus)
	OnLivelinessLost           func(writer Entity, status LivelinessLostStatus)
	OnOfferedDeadlineMissed    func(writer Entity, status OfferedDeadlineMissedStatus)
	OnOfferedIncompatibleQos   func(writer Entity, status OfferedIncompatibleQosStatus)

	mu     sync.RWMutex
	closed bool
}

// NewListener returns an empty listener.
func NewListener() *Listener {
	return &Listener{}
}

// Close detaches the listener. Events delivered afterwards are dropped.
func (l *Listener) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// Closed reports whether Close was called.
func (l *Listener) Closed() bool {
	if l == nil {
		return true
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// active guards every dispatch method; nil listeners are valid and inert.
func (l *Listener) active() bool {
	return l != nil && !l.Closed()
}

func (l *Listener) InconsistentTopic(e Entity, s InconsistentTopicStatus) {
	if l.active() && l.OnInconsistentTopic != nil {
		l.OnInconsistentTopic(e, s)
	}
}

func (l *Listener) DataAvailable(e Entity) {
	if l.active() && l.OnDataAvailable != nil {
		l.OnDataAvailable(e)
	}
}

func (l *Listener) SubscriptionMatched(e Entity, s SubscriptionMatchedStatus) {
	if l.active() && l.OnSubscriptionMatched != nil {
		l.OnSubscriptionMatched(e, s)
	}
}

func (l *Listener) SampleLost(e Entity, s SampleLostStatus) {
	if l.active() && l.OnSampleLost != nil {
		l.OnSampleLost(e, s)
	}
}

func (l *Listener) SampleRejected(e Entity, s SampleRejectedStatus) {
	if l.active() && l.OnSampleRejected != nil {
		l.OnSampleRejected(e, s)
	}
}

func (l *Listener) LivelinessChanged(e Entity, s LivelinessChangedStatus) {
	if l.active() && l.OnLivelinessChanged != nil {
		l.OnLivelinessChanged(e, s)
	}
}

func (l *Listener) RequestedDeadlineMissed(e Entity, s RequestedDeadlineMissedStatus) {
	if l.active() && l.OnRequestedDeadlineMissed != nil {
		l.OnRequestedDeadlineMissed(e, s)
	}
}

func (l *Listener) RequestedIncompatibleQos(e Entity, s RequestedIncompatibleQosStatus) {
	if l.active() && l.OnRequestedIncompatibleQos != nil {
		l.OnRequestedIncompatibleQos(e, s)
	}
}

func (l *Listener) PublicationMatched(e Entity, s PublicationMatchedStatus) {
	if l.active() && l.OnPublicationMatched != nil {
		l.OnPublicationMatched(e, s)
	}
}

func (l *Listener) LivelinessLost(e Entity, s LivelinessLostStatus) {
	if l.active() && l.OnLivelinessLost != nil {
		l.OnLivelinessLost(e, s)
	}
}

func (l *Listener) OfferedDeadlineMissed(e Entity, s OfferedDeadlineMissedStatus) {
	if l.active() && l.OnOfferedDeadlineMissed != nil {
		l.OnOfferedDeadlineMissed(e, s)
	}
}

func (l *Listener) OfferedIncompatibleQos(e Entity, s OfferedIncompatibleQosStatus) {
	if l.active() && l.OnOfferedIncompatibleQos != nil {
		l.OnOfferedIncompatibleQos(e, s)
	}
}
