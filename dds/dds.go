// Package dds defines the capability contract ddsctx consumes from a
// publish/subscribe middleware runtime: entity handles, return codes, QoS
// objects, listeners and their status payloads, sample metadata and
// message-type descriptors.
//
// The registry in ddsctx only ever talks to the Runtime interface declared
// here. The bundled engine implements it on top of a Watermill publisher and
// subscriber; tests implement it with counting fakes.
package dds

import "time"

// DomainID identifies an isolated communication scope.
type DomainID uint32

// DefaultDomain is the domain used when the caller has no preference.
const DefaultDomain DomainID = 0

// Entity is an opaque handle to a runtime entity. Valid handles are positive.
type Entity int32

// Valid reports whether the handle refers to a created entity.
func (e Entity) Valid() bool { return e > 0 }

// InstanceHandle identifies a remote or local matched endpoint in statuses.
type InstanceHandle uint64

// Runtime is the set of native operations the registry relies on.
//
// Implementations must never invoke listener callbacks synchronously from
// within a Create* call: events are delivered from a runtime-owned goroutine
// so the caller can finish bookkeeping for the new handle first.
type Runtime interface {
	CreateParticipant(domain DomainID) (Entity, error)
	CreateTopic(participant Entity, desc Descriptor, name string, qos *QoS, listener *Listener) (Entity, error)
	CreateReader(participant, topic Entity, qos *QoS, listener *Listener) (Entity, error)
	CreateWriter(participant, topic Entity, qos *QoS, listener *Listener) (Entity, error)

	// Write publishes one sample and blocks until the runtime accepted it.
	Write(writer Entity, sample any) error
	// Read copies at most one sample into buf and info without removing it
	// from the reader's cache. It never waits and returns the number of
	// samples delivered (0 or 1).
	Read(reader Entity, buf any, info *SampleInfo) (int, error)
	// Take behaves like Read but removes the delivered sample.
	Take(reader Entity, buf any, info *SampleInfo) (int, error)

	// Delete releases an entity. Deleting a participant also deletes the
	// entities it owns.
	Delete(entity Entity) error
	Close() error
}

// SampleState tells whether a sample was already returned by a read.
type SampleState uint8

const (
	SampleStateNotRead SampleState = iota
	SampleStateRead
)

// SampleInfo is the metadata delivered alongside each sample.
type SampleInfo struct {
	ValidData          bool
	SampleState        SampleState
	SourceTimestamp    time.Time
	ReceptionTimestamp time.Time
	PublicationHandle  InstanceHandle
	SequenceNumber     uint64
}

// Reset clears the info so it no longer reports valid data.
func (i *SampleInfo) Reset() {
	*i = SampleInfo{}
}
