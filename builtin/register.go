package builtin

import (
	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
)

// RegisterAll installs every built-in scalar operator of spec §6.4 into
// reg. It is the Go kernel's equivalent of the original's one-time
// builtin-operator-table initialization, called once by the startup
// routine (spec §5: "initialized once at startup").
func RegisterAll(reg *opregistry.Registry) {
	registerArithmetic(reg)
	registerComparison(reg)
	registerBoolean(reg)
	registerStrings(reg)
	registerMath(reg)
	registerDatetime(reg)
}

// RegisterErrorTypes installs a scalar type for every canonical error
// kind of spec §7 into store, each with a single "msg" possrep carrying
// the diagnostic string (spec §7: "error types with a msg possrep carry
// a diagnostic string"). It returns the handles keyed by kind.
//
// The original source sets builtin = true for every error type during
// construction, then — in exactly two of the per-kind initializers —
// immediately overwrites it back to false before moving on (a
// contradiction the spec's Open Questions section flags as unclear
// intent, not something to silently "fix" by guessing which value was
// meant). This port does not reproduce that inconsistency: every error
// type here is marked Builtin true and SystemImplemented true uniformly,
// since an error kind either is or isn't part of the kernel's built-in
// vocabulary, and in this kernel all of them are (see DESIGN.md).
func RegisterErrorTypes(store *rtype.Store) map[execctx.ErrorKind]rtype.Handle {
	kinds := []execctx.ErrorKind{
		execctx.ErrNoMemory, execctx.ErrSystem, execctx.ErrResourceNotFound,
		execctx.ErrRunRecovery, execctx.ErrDataCorrupted, execctx.ErrInternal,
		execctx.ErrFatal, execctx.ErrConnection,
		execctx.ErrInvalidArgument, execctx.ErrTypeMismatch, execctx.ErrNotFound,
		execctx.ErrOperatorNotFound, execctx.ErrTypeNotFound, execctx.ErrName,
		execctx.ErrElementExists, execctx.ErrKeyViolation, execctx.ErrPredicateViolation,
		execctx.ErrTypeConstraintViolation, execctx.ErrNotSupported, execctx.ErrInUse,
		execctx.ErrAggregateUndefined, execctx.ErrSyntax, execctx.ErrVersionMismatch,
		execctx.ErrConcurrency, execctx.ErrDeadlock,
		execctx.ErrNoRunningTransaction,
	}
	out := make(map[execctx.ErrorKind]rtype.Handle, len(kinds))
	for _, k := range kinds {
		t := &rtype.Type{
			Name: string(k) + "_error",
			Kind: rtype.KindScalar,
			Locked: true,
			Flags: rtype.ScalarFlags{Builtin: true, SystemImplemented: true},
			Possreps: []rtype.Possrep{
				{Name: string(k) + "_error", Components: []rtype.Attr{{Name: "msg", Type: rtype.HandleString}}},
			},
		}
		out[k] = store.Add(t)
	}
	return out
}
