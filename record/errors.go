package record

import (
	"errors"

	"reld/execctx"
)

// BackendCode is the small, closed vocabulary a record-layer backend uses
// to report failures (spec §6.2). A backend need not use these directly;
// it only needs its errors to satisfy the Coded interface below so
// TranslateError can recover one.
type BackendCode int

const (
	CodeNone BackendCode = iota
	CodeNoMemory
	CodeInvalidArgument
	CodeResourceNotFound
	CodeKeyViolation
	CodeElementExists
	CodeNotFound
	CodeConcurrency
	CodeDeadlock
	CodeRunRecovery
	CodeDataCorrupted
	CodeSystem
)

// Coded is implemented by backend errors that carry a BackendCode.
// TranslateError falls back to CodeSystem for any error that doesn't.
type Coded interface {
	Code() BackendCode
}

// backendError is the record package's own minimal Coded implementation,
// used by rmem and available to any other backend that doesn't want to
// define its own error type.
type backendError struct {
	code BackendCode
	msg  string
}

func (e *backendError) Error() string    { return e.msg }
func (e *backendError) Code() BackendCode { return e.code }

// NewError constructs a backend error carrying code.
func NewError(code BackendCode, msg string) error {
	return &backendError{code: code, msg: msg}
}

// TranslateError maps a backend error to the kernel's canonical error
// taxonomy (spec §6.2), at minimum covering: no_memory, invalid_argument,
// resource_not_found, key_violation, element_exists, not_found,
// concurrency, deadlock, run_recovery, data_corrupted, system. An error
// that is not Coded, or carries CodeNone, maps to system.
func TranslateError(err error) execctx.ErrorKind {
	if err == nil {
		return ""
	}
	var coded Coded
	if errors.As(err, &coded) {
		switch coded.Code() {
		case CodeNoMemory:
			return execctx.ErrNoMemory
		case CodeInvalidArgument:
			return execctx.ErrInvalidArgument
		case CodeResourceNotFound:
			return execctx.ErrResourceNotFound
		case CodeKeyViolation:
			return execctx.ErrKeyViolation
		case CodeElementExists:
			return execctx.ErrElementExists
		case CodeNotFound:
			return execctx.ErrNotFound
		case CodeConcurrency:
			return execctx.ErrConcurrency
		case CodeDeadlock:
			return execctx.ErrDeadlock
		case CodeRunRecovery:
			return execctx.ErrRunRecovery
		case CodeDataCorrupted:
			return execctx.ErrDataCorrupted
		}
	}
	return execctx.ErrSystem
}
