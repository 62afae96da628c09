package dds

import (
	"errors"
	"fmt"
)

// ReturnCode is a negative native status. It implements error so runtimes can
// return it directly or wrap it with a cause.
type ReturnCode int32

const (
	RetcodeOK                 ReturnCode = 0
	RetcodeError              ReturnCode = -1
	RetcodeUnsupported        ReturnCode = -2
	RetcodeBadParameter       ReturnCode = -3
	RetcodePreconditionNotMet ReturnCode = -4
	RetcodeOutOfResources     ReturnCode = -5
	RetcodeNotEnabled         ReturnCode = -6
	RetcodeImmutablePolicy    ReturnCode = -7
	RetcodeInconsistentPolicy ReturnCode = -8
	RetcodeAlreadyDeleted     ReturnCode = -9
	RetcodeTimeout            ReturnCode = -10
	RetcodeNoData             ReturnCode = -11
	RetcodeIllegalOperation   ReturnCode = -12
)

var retcodeReasons = map[ReturnCode]string{
	RetcodeOK:                 "Success",
	RetcodeError:              "Error",
	RetcodeUnsupported:        "Unsupported",
	RetcodeBadParameter:       "Bad Parameter",
	RetcodePreconditionNotMet: "Precondition Not Met",
	RetcodeOutOfResources:     "Out Of Resources",
	RetcodeNotEnabled:         "Not Enabled",
	RetcodeImmutablePolicy:    "Immutable Policy",
	RetcodeInconsistentPolicy: "Inconsistent Policy",
	RetcodeAlreadyDeleted:     "Already Deleted",
	RetcodeTimeout:            "Timeout",
	RetcodeNoData:             "No Data",
	RetcodeIllegalOperation:   "Illegal Operation",
}

// Reason decodes the return code into a human readable string.
func (c ReturnCode) Reason() string {
	if reason, ok := retcodeReasons[c]; ok {
		return reason
	}
	return fmt.Sprintf("Unknown (%d)", int32(c))
}

func (c ReturnCode) Error() string {
	return c.Reason()
}

// Failed reports whether the code is a failure status.
func (c ReturnCode) Failed() bool { return c < 0 }

// Wrap attaches a cause to the return code. errors.As finds the code and
// errors.Is finds the cause.
func (c ReturnCode) Wrap(cause error) error {
	if cause == nil {
		return c
	}
	return &codeError{code: c, cause: cause}
}

type codeError struct {
	code  ReturnCode
	cause error
}

func (e *codeError) Error() string {
	return e.code.Reason() + ": " + e.cause.Error()
}

func (e *codeError) Unwrap() []error {
	return []error{e.code, e.cause}
}

// CodeOf extracts the return code carried by err. Errors without a code map to
// RetcodeError; a nil error maps to RetcodeOK.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return RetcodeOK
	}
	var code ReturnCode
	if errors.As(err, &code) {
		return code
	}
	return RetcodeError
}
