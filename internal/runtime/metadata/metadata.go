// Package metadata defines the headers the engine attaches to every message
// it publishes, and the map type used to carry them.
package metadata

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Reserved header keys. Custom metadata must not use the ddsctx_ prefix.
const (
	KeyTypeName        = "ddsctx_type"
	KeyWriter          = "ddsctx_writer"
	KeySequence        = "ddsctx_seq"
	KeySourceTimestamp = "ddsctx_source_ts"
	KeyDomain          = "ddsctx_domain"
	KeyTopic           = "ddsctx_topic"
)

var ErrMissingHeader = errors.New("metadata: missing header")

// Metadata represents the headers carried alongside a sample. It satisfies
// propagation.TextMapCarrier so trace context can ride along.
type Metadata map[string]string

// Clone returns a shallow copy that never aliases m.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	maps.Copy(cloned, m)
	return cloned
}

// With returns a copy of m containing key=value.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

func (m Metadata) Get(key string) string { return m[key] }

func (m Metadata) Set(key, value string) { m[key] = value }

// Keys returns the header names in sorted order.
func (m Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Header is the decoded form of the reserved keys.
type Header struct {
	TypeName        string
	Writer          string
	Sequence        uint64
	SourceTimestamp time.Time
	Domain          uint32
	Topic           string
}

// Apply writes h into m, overwriting reserved keys.
func (h Header) Apply(m Metadata) {
	m[KeyTypeName] = h.TypeName
	m[KeyWriter] = h.Writer
	m[KeySequence] = strconv.FormatUint(h.Sequence, 10)
	m[KeySourceTimestamp] = strconv.FormatInt(h.SourceTimestamp.UnixNano(), 10)
	m[KeyDomain] = strconv.FormatUint(uint64(h.Domain), 10)
	m[KeyTopic] = h.Topic
}

// ParseHeader decodes the reserved keys from m. The type name and writer are
// required; the rest default to zero values when absent.
func ParseHeader(m Metadata) (Header, error) {
	h := Header{
		TypeName: m[KeyTypeName],
		Writer:   m[KeyWriter],
		Topic:    m[KeyTopic],
	}
	if h.TypeName == "" {
		return Header{}, fmt.Errorf("%w: %s", ErrMissingHeader, KeyTypeName)
	}
	if h.Writer == "" {
		return Header{}, fmt.Errorf("%w: %s", ErrMissingHeader, KeyWriter)
	}
	if v := m[KeySequence]; v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Header{}, fmt.Errorf("metadata: %s: %w", KeySequence, err)
		}
		h.Sequence = seq
	}
	if v := m[KeySourceTimestamp]; v != "" {
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Header{}, fmt.Errorf("metadata: %s: %w", KeySourceTimestamp, err)
		}
		h.SourceTimestamp = time.Unix(0, ns)
	}
	if v := m[KeyDomain]; v != "" {
		domain, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Header{}, fmt.Errorf("metadata: %s: %w", KeyDomain, err)
		}
		h.Domain = uint32(domain)
	}
	return h, nil
}
