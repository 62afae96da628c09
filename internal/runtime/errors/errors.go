package errors

import (
	sterrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/drblury/ddsctx/dds"
)

var (
	ErrNotFound             = sterrors.New("ddsctx: not found")
	ErrClosed               = sterrors.New("ddsctx: registry is closed")
	ErrRuntimeRequired      = sterrors.New("ddsctx: runtime is required")
	ErrDescriptorRequired   = sterrors.New("ddsctx: message-type descriptor is required")
	ErrRegistrationMismatch = sterrors.New("ddsctx: entity already registered with different parameters")
	ErrInvalidSample        = sterrors.New("ddsctx: invalid sample")
	ErrConfigRequired       = sterrors.New("ddsctx: configuration is required")
	ErrLoggerRequired       = sterrors.New("ddsctx: logger is required")
)

// Op names the native operation a RuntimeError originates from.
type Op string

const (
	OpCreateParticipant Op = "create_participant"
	OpCreateTopic       Op = "create_topic"
	OpCreateReader      Op = "create_reader"
	OpCreateWriter      Op = "create_writer"
	OpWrite             Op = "write"
	OpRead              Op = "read"
	OpTake              Op = "take"
	OpDelete            Op = "delete"
)

// RuntimeError reports a failing native operation together with its decoded
// return code.
type RuntimeError struct {
	Op   Op
	Code dds.ReturnCode
	Err  error
}

// NewRuntimeError wraps err returned by op. A nil err yields nil.
func NewRuntimeError(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Op: op, Code: dds.CodeOf(err), Err: err}
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("ddsctx: %s (%d): %s", e.Op, int32(e.Code), e.Code.Reason())
	if e.Err == nil {
		return msg
	}
	detail := strings.TrimPrefix(e.Err.Error(), e.Code.Reason())
	detail = strings.TrimPrefix(detail, ": ")
	if detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Kind is the registry a NotFoundError refers to.
type Kind string

const (
	KindSample Kind = "sample"
	KindTopic  Kind = "topic"
	KindReader Kind = "reader"
	KindWriter Kind = "writer"
)

// NotFoundError reports a lookup against an unregistered key.
type NotFoundError struct {
	Kind   Kind
	Domain dds.DomainID
	Name   string
	Index  int
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindSample:
		return "ddsctx: unknown sample: " + strconv.Quote(strconv.Itoa(e.Index))
	case KindTopic:
		return fmt.Sprintf("ddsctx: unknown topic: %q in domain %d", e.Name, e.Domain)
	default:
		return fmt.Sprintf("ddsctx: unknown %s for topic: %q in domain %d", e.Kind, e.Name, e.Domain)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func UnknownSample(index int) error {
	return &NotFoundError{Kind: KindSample, Index: index}
}

func UnknownTopic(domain dds.DomainID, name string) error {
	return &NotFoundError{Kind: KindTopic, Domain: domain, Name: name}
}

func UnknownReader(domain dds.DomainID, name string) error {
	return &NotFoundError{Kind: KindReader, Domain: domain, Name: name}
}

func UnknownWriter(domain dds.DomainID, name string) error {
	return &NotFoundError{Kind: KindWriter, Domain: domain, Name: name}
}

// ConfigValidationError wraps configuration validation failures.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "ddsctx: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil for a nil err.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
