// Package opregistry implements the operator registry and resolution
// machinery of spec §4.4: a name-keyed multimap from operator name to an
// ordered overload chain, resolved by arity-and-type match with a
// generic-overload fallback.
package opregistry

import (
	"sync"

	"reld/execctx"
	"reld/rtype"
)

// Kind distinguishes how an OpEntry's code is reached, per the variant
// recommended in spec §9: "{native(fn), dynamic(module_handle, symbol),
// interpreted(body)}".
type Kind int

const (
	KindNative Kind = iota
	KindDynamic
	KindInterpreted
)

// Func is the signature every native scalar or relational operator
// implements: given an execution context and argument values, it either
// returns a result or raises an error into ctx and returns a non-nil
// error.
type Func func(ctx *execctx.Context, args []interface{}) (interface{}, error)

// ParamWildcard (rtype.HandleNone) marks "unspecified (wildcard)" parameter types — any
// wildcard parameter matches any argument type during resolution.
const ParamWildcard = rtype.HandleNone

// OpEntry is one overload of one operator name.
type OpEntry struct {
	Name     string
	Params   []rtype.Handle // wildcard entries use ParamWildcard
	Returns  rtype.Handle   // HandleNone if the operator has no return value
	Variadic bool

	Kind Kind
	Fn   Func // set when Kind == KindNative

	// Dynamic loading, per spec §4.4/§9.
	ModuleHandle interface{} // opaque handle from an OperatorLoader
	Symbol       string
	loader       OperatorLoader

	// Interpreted body, opaque to opregistry; the front-end interprets it.
	Body interface{}

	// Cleanup runs when the operator is unloaded (spec §4.4: "Operators may
	// register a cleanup callback run on unload").
	Cleanup func()
}

// Registry is the name-keyed multimap of operator overload chains.
type Registry struct {
	store *rtype.Store

	mu    sync.RWMutex
	chain map[string][]*OpEntry
}

// New constructs an empty Registry over the given type store.
func New(store *rtype.Store) *Registry {
	return &Registry{store: store, chain: make(map[string][]*OpEntry)}
}

// Register appends op to the chain stored under its name. Lookups observe
// newly registered operators atomically: the chain slice is replaced
// wholesale under the write lock, so a concurrent reader sees either the
// whole chain before or the whole chain after (spec §5: "lookups see them
// atomically (pointer publication after full construction)").
func (r *Registry) Register(op *OpEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain[op.Name] = append(append([]*OpEntry(nil), r.chain[op.Name]...), op)
}

// Unload removes op from its chain, running its cleanup callback and, if
// it was dynamically loaded, closing the module handle.
func (r *Registry) Unload(op *OpEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.chain[op.Name]
	out := chain[:0]
	for _, e := range chain {
		if e != op {
			out = append(out, e)
		}
	}
	r.chain[op.Name] = out
	if op.Cleanup != nil {
		op.Cleanup()
	}
	if op.Kind == KindDynamic && op.loader != nil {
		return op.loader.Close(op.ModuleHandle)
	}
	return nil
}

func paramMatches(s *rtype.Store, param, arg rtype.Handle) bool {
	if param == ParamWildcard {
		return true
	}
	return rtype.Matches(s, arg, param)
}

// Resolve implements spec §4.4's resolution algorithm: search the chain
// for an overload whose parameter count equals len(argTypes) and whose
// every parameter type is either a wildcard or matches the corresponding
// argument type via Matches. If no arity-and-type match exists, fall back
// to a chain entry declared variadic. If arity matches somewhere but
// types never match, the error is type_mismatch; otherwise it is
// operator_not_found.
func (r *Registry) Resolve(name string, argTypes []rtype.Handle) (*OpEntry, *execctx.Error) {
	r.mu.RLock()
	chain := append([]*OpEntry(nil), r.chain[name]...)
	r.mu.RUnlock()

	arityMatched := false
	var variadicFallback *OpEntry
	for _, e := range chain {
		if e.Variadic && variadicFallback == nil {
			variadicFallback = e
		}
		if len(e.Params) != len(argTypes) {
			continue
		}
		arityMatched = true
		ok := true
		for i, p := range e.Params {
			if !paramMatches(r.store, p, argTypes[i]) {
				ok = false
				break
			}
		}
		if ok {
			return e, nil
		}
	}
	if variadicFallback != nil {
		return variadicFallback, nil
	}
	if arityMatched {
		return nil, execctx.New(execctx.ErrTypeMismatch, "no overload of "+name+" matches argument types")
	}
	return nil, execctx.New(execctx.ErrOperatorNotFound, name)
}

// ResolveValues resolves by argument values rather than declared types,
// additionally consulting each argument's implementation type when its
// declared type is a dummy type (spec §4.4: "Resolution by argument
// values additionally considers each argument's implementation type when
// its declared type is dummy").
func (r *Registry) ResolveValues(name string, declared []rtype.Handle, impls []rtype.Handle) (*OpEntry, *execctx.Error) {
	effective := make([]rtype.Handle, len(declared))
	for i, d := range declared {
		effective[i] = d
		if t := r.store.Get(d); t != nil && t.Flags.Dummy && impls[i] != rtype.HandleNone {
			effective[i] = impls[i]
		}
	}
	return r.Resolve(name, effective)
}

// Chain returns a snapshot of the overload chain registered under name,
// primarily for introspection (catalog listing, DROP OPERATOR).
func (r *Registry) Chain(name string) []*OpEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*OpEntry(nil), r.chain[name]...)
}
