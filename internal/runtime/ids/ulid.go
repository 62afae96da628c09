// Package ids generates identifiers for messages and endpoints.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// MessageID returns a time-sortable ULID used as the bus message UUID.
func MessageID() string {
	return MessageIDAt(time.Now())
}

// MessageIDAt returns a monotonic ULID stamped with t.
func MessageIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// GUID identifies an engine instance or an endpoint on the bus.
type GUID = uuid.UUID

// NewGUID returns a random endpoint GUID.
func NewGUID() GUID {
	return uuid.New()
}

// ParseGUID parses a GUID carried in message metadata.
func ParseGUID(s string) (GUID, error) {
	return uuid.Parse(s)
}

// Handle folds a GUID into the 64-bit instance handle reported in statuses.
func Handle(g GUID) uint64 {
	var h uint64
	for i, b := range g[:8] {
		h |= uint64(b^g[i+8]) << (8 * i)
	}
	return h
}
