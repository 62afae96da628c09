package dds

import (
	"sync"
	"time"
)

// ReliabilityKind selects best-effort or reliable delivery.
type ReliabilityKind uint8

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// DurabilityKind selects whether late joiners receive earlier samples.
type DurabilityKind uint8

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// HistoryKind selects how many samples a reader keeps per topic.
type HistoryKind uint8

const (
	KeepLast HistoryKind = iota
	KeepAll
)

// LivelinessKind selects how writer liveliness is asserted.
type LivelinessKind uint8

const (
	LivelinessAutomatic LivelinessKind = iota
	LivelinessManualByParticipant
	LivelinessManualByTopic
)

// QosPolicyID identifies a policy in incompatible-qos statuses.
type QosPolicyID int32

const (
	InvalidQosPolicyID     QosPolicyID = 0
	UserDataQosPolicyID    QosPolicyID = 1
	DurabilityQosPolicyID  QosPolicyID = 2
	DeadlineQosPolicyID    QosPolicyID = 4
	LivelinessQosPolicyID  QosPolicyID = 8
	ReliabilityQosPolicyID QosPolicyID = 11
	HistoryQosPolicyID     QosPolicyID = 13
	ResourceLimitsPolicyID QosPolicyID = 14
)

// Unlimited disables a resource limit.
const Unlimited = -1

// QoS is a mutable bundle of delivery settings. The zero value is not ready
// for use; call NewQoS. A QoS is read by the runtime when an entity is
// created; later changes do not affect existing entities.
type QoS struct {
	mu sync.RWMutex

	reliability     ReliabilityKind
	maxBlockingTime time.Duration
	durability      DurabilityKind
	history         HistoryKind
	historyDepth    int
	maxSamples      int
	deadline        time.Duration
	liveliness      LivelinessKind
	leaseDuration   time.Duration
	userData        []byte
}

// NewQoS returns a QoS with runtime defaults: best effort, volatile, keep
// last 1, unlimited resources, infinite deadline and lease.
func NewQoS() *QoS {
	return &QoS{
		reliability:  BestEffort,
		history:      KeepLast,
		historyDepth: 1,
		maxSamples:   Unlimited,
	}
}

// SetReliability sets the reliability kind and the maximum time a reliable
// write may block.
func (q *QoS) SetReliability(kind ReliabilityKind, maxBlocking time.Duration) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reliability = kind
	q.maxBlockingTime = maxBlocking
	return q
}

func (q *QoS) SetDurability(kind DurabilityKind) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.durability = kind
	return q
}

// SetHistory sets the history kind. depth is only meaningful for KeepLast and
// values below 1 are raised to 1.
func (q *QoS) SetHistory(kind HistoryKind, depth int) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = kind
	if depth < 1 {
		depth = 1
	}
	q.historyDepth = depth
	return q
}

// SetResourceLimits bounds the number of samples a reader caches.
func (q *QoS) SetResourceLimits(maxSamples int) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	if maxSamples <= 0 {
		maxSamples = Unlimited
	}
	q.maxSamples = maxSamples
	return q
}

// SetDeadline sets the expected maximum period between samples. Zero means
// infinite.
func (q *QoS) SetDeadline(period time.Duration) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadline = period
	return q
}

// SetLiveliness sets the liveliness kind and lease. A zero lease is infinite.
func (q *QoS) SetLiveliness(kind LivelinessKind, lease time.Duration) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.liveliness = kind
	q.leaseDuration = lease
	return q
}

func (q *QoS) SetUserData(data []byte) *QoS {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.userData = append([]byte(nil), data...)
	return q
}

// Policies is an immutable copy of a QoS taken at entity creation.
type Policies struct {
	Reliability     ReliabilityKind
	MaxBlockingTime time.Duration
	Durability      DurabilityKind
	History         HistoryKind
	HistoryDepth    int
	MaxSamples      int
	Deadline        time.Duration
	Liveliness      LivelinessKind
	LeaseDuration   time.Duration
	UserData        []byte
}

// Snapshot copies the current settings. A nil QoS yields the defaults.
func (q *QoS) Snapshot() Policies {
	if q == nil {
		return NewQoS().Snapshot()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Policies{
		Reliability:     q.reliability,
		MaxBlockingTime: q.maxBlockingTime,
		Durability:      q.durability,
		History:         q.history,
		HistoryDepth:    q.historyDepth,
		MaxSamples:      q.maxSamples,
		Deadline:        q.deadline,
		Liveliness:      q.liveliness,
		LeaseDuration:   q.leaseDuration,
		UserData:        append([]byte(nil), q.userData...),
	}
}

// Incompatible returns the first policy for which offered (writer side)
// cannot satisfy requested (reader side), or InvalidQosPolicyID when the pair
// is compatible.
func Incompatible(offered, requested Policies) QosPolicyID {
	switch {
	case offered.Reliability < requested.Reliability:
		return ReliabilityQosPolicyID
	case offered.Durability < requested.Durability:
		return DurabilityQosPolicyID
	case !periodSatisfies(offered.Deadline, requested.Deadline):
		return DeadlineQosPolicyID
	case offered.Liveliness < requested.Liveliness,
		!periodSatisfies(offered.LeaseDuration, requested.LeaseDuration):
		return LivelinessQosPolicyID
	}
	return InvalidQosPolicyID
}

// periodSatisfies reports whether an offered period is at most the requested
// one. Zero stands for infinite.
func periodSatisfies(offered, requested time.Duration) bool {
	if requested == 0 {
		return true
	}
	if offered == 0 {
		return false
	}
	return offered <= requested
}
