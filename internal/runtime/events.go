package runtime

import (
	"fmt"

	"github.com/drblury/ddsctx/dds"
)

// EventCode identifies the listener event a callback is invoked for. The
// values are part of the external contract and never change.
type EventCode uint8

const (
	TopicOnInconsistentTopic EventCode = 0x00

	ReaderOnDataAvailable            EventCode = 0x10
	ReaderOnSubscriptionMatched      EventCode = 0x11
	ReaderOnSampleLost               EventCode = 0x12
	ReaderOnSampleRejected           EventCode = 0x13
	ReaderOnLivelinessChanged        EventCode = 0x14
	ReaderOnRequestedDeadlineMissed  EventCode = 0x15
	ReaderOnRequestedIncompatibleQoS EventCode = 0x16

	WriterOnPublicationMatched     EventCode = 0x20
	WriterOnLivelinessLost         EventCode = 0x21
	WriterOnOfferedDeadlineMissed  EventCode = 0x22
	WriterOnOfferedIncompatibleQoS EventCode = 0x23
)

var eventNames = map[EventCode]string{
	TopicOnInconsistentTopic:         "inconsistent_topic",
	ReaderOnDataAvailable:            "data_available",
	ReaderOnSubscriptionMatched:      "subscription_matched",
	ReaderOnSampleLost:               "sample_lost",
	ReaderOnSampleRejected:           "sample_rejected",
	ReaderOnLivelinessChanged:        "liveliness_changed",
	ReaderOnRequestedDeadlineMissed:  "requested_deadline_missed",
	ReaderOnRequestedIncompatibleQoS: "requested_incompatible_qos",
	WriterOnPublicationMatched:       "publication_matched",
	WriterOnLivelinessLost:           "liveliness_lost",
	WriterOnOfferedDeadlineMissed:    "offered_deadline_missed",
	WriterOnOfferedIncompatibleQoS:   "offered_incompatible_qos",
}

func (c EventCode) String() string {
	if name, ok := eventNames[c]; ok {
		return name
	}
	return fmt.Sprintf("event_0x%02x", uint8(c))
}

// Callback receives the events of one entity. status carries the typed
// status value (dds.SubscriptionMatchedStatus, ...) and is nil for
// ReaderOnDataAvailable.
//
// Callbacks run on the runtime's event goroutine. They may call back into
// the registry but must synchronise access to their own state.
type Callback func(code EventCode, domain dds.DomainID, topic string, status any)
