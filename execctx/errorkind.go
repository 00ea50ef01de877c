// Package execctx implements the execution context described in spec
// §4.3: the thread-local error slot plus property map threaded as the
// implicit parameter through every fallible kernel operation, and the
// canonical error-kind taxonomy of spec §7.
package execctx

// ErrorKind is one of the canonical error kinds of spec §7. Per spec,
// these are "all scalar types in the type system, raised into the
// execution context's error slot" — here they are modeled as a closed
// enumeration of named kinds, each of which the kernel additionally
// registers as a scalar error type in the type store (see
// builtin.RegisterErrorTypes) so front-end code can inspect an error
// value's type the way any other scalar is inspected.
type ErrorKind string

const (
	// Resource errors.
	ErrNoMemory         ErrorKind = "no_memory"
	ErrSystem           ErrorKind = "system"
	ErrResourceNotFound ErrorKind = "resource_not_found"
	ErrRunRecovery      ErrorKind = "run_recovery"
	ErrDataCorrupted    ErrorKind = "data_corrupted"
	ErrInternal         ErrorKind = "internal"
	ErrFatal            ErrorKind = "fatal"
	ErrConnection       ErrorKind = "connection"

	// Semantic errors.
	ErrInvalidArgument         ErrorKind = "invalid_argument"
	ErrTypeMismatch            ErrorKind = "type_mismatch"
	ErrNotFound                ErrorKind = "not_found"
	ErrOperatorNotFound        ErrorKind = "operator_not_found"
	ErrTypeNotFound            ErrorKind = "type_not_found"
	ErrName                    ErrorKind = "name"
	ErrElementExists           ErrorKind = "element_exists"
	ErrKeyViolation            ErrorKind = "key_violation"
	ErrPredicateViolation      ErrorKind = "predicate_violation"
	ErrTypeConstraintViolation ErrorKind = "type_constraint_violation"
	ErrNotSupported            ErrorKind = "not_supported"
	ErrInUse                   ErrorKind = "in_use"
	ErrAggregateUndefined      ErrorKind = "aggregate_undefined"
	ErrSyntax                  ErrorKind = "syntax"
	ErrVersionMismatch         ErrorKind = "version_mismatch"

	// Transactional errors (retryable).
	ErrConcurrency ErrorKind = "concurrency"
	ErrDeadlock    ErrorKind = "deadlock"

	// Control.
	ErrNoRunningTransaction ErrorKind = "no_running_transaction"
)

// retryableKinds is the fixed set of kinds that set the context's
// retryable flag when raised (spec §7: "Retryable errors set the
// retryable flag").
var retryableKinds = map[ErrorKind]bool{
	ErrConcurrency: true,
	ErrDeadlock:    true,
}

// IsRetryable reports whether k is one of the transactional error kinds
// that callers are expected to retry after abort.
func IsRetryable(k ErrorKind) bool { return retryableKinds[k] }

// Error is the typed error value raised into a Context's error slot. Per
// spec §7, "any error value has at least a type, and error types with a
// msg possrep carry a diagnostic string."
type Error struct {
	Kind    ErrorKind
	Message string
	// Cause chains to a lower-level error (e.g. a translated record-layer
	// error, see package record), mirroring how the original propagates
	// backend error codes up through the canonical taxonomy.
	Cause error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with a diagnostic message.
func New(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind, chaining cause.
func Wrap(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
