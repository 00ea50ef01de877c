package expr

import (
	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
)

// IsConstant reports whether e is structurally constant: true iff every
// leaf is a literal (spec §4.5).
func IsConstant(e Node) bool {
	switch n := e.(type) {
	case *Literal:
		return true
	case *TableRef, *VarRef:
		return false
	case *AttrAccess:
		return IsConstant(n.Arg)
	case *ComponentAccess:
		return IsConstant(n.Arg)
	case *OpApply:
		for _, a := range n.Args {
			if !IsConstant(a) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ResolveVarnames returns a deep copy of e with every VarRef named in
// subst replaced by the corresponding substitution expression (deep
// copied at the point of substitution), per spec §4.5.
func ResolveVarnames(e Node, subst map[string]Node) Node {
	switch n := e.(type) {
	case *VarRef:
		if repl, ok := subst[n.Name]; ok {
			return repl.Duplicate()
		}
		return n.Duplicate()
	case *Literal, *TableRef:
		return e.Duplicate()
	case *AttrAccess:
		return &AttrAccess{Arg: ResolveVarnames(n.Arg, subst), Attr: n.Attr}
	case *ComponentAccess:
		return &ComponentAccess{Arg: ResolveVarnames(n.Arg, subst), Possrep: n.Possrep, Component: n.Component}
	case *OpApply:
		args := make([]Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = ResolveVarnames(a, subst)
		}
		return &OpApply{Op: n.Op, Args: args, OptInfo: n.Duplicate().(*OpApply).OptInfo}
	default:
		return e.Duplicate()
	}
}

// RefersTo reports whether e (anywhere in its subtree) references table,
// used by the optimizer to decide whether a subexpression is
// table-independent.
func RefersTo(e Node, table Table) bool {
	switch n := e.(type) {
	case *TableRef:
		return n.Table == table
	case *AttrAccess:
		return RefersTo(n.Arg, table)
	case *ComponentAccess:
		return RefersTo(n.Arg, table)
	case *OpApply:
		for _, a := range n.Args {
			if RefersTo(a, table) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// DependsOn reports whether e's subtree contains other (by identity or
// structural containment), used by the optimizer to detect
// self-referential right-hand sides (spec §4.6.6).
func DependsOn(e, other Node) bool {
	if e == other {
		return true
	}
	switch n := e.(type) {
	case *AttrAccess:
		return DependsOn(n.Arg, other)
	case *ComponentAccess:
		return DependsOn(n.Arg, other)
	case *OpApply:
		for _, a := range n.Args {
			if DependsOn(a, other) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// RefersToVar reports whether e's subtree contains a VarRef to name.
func RefersToVar(e Node, name string) bool {
	switch n := e.(type) {
	case *VarRef:
		return n.Name == name
	case *AttrAccess:
		return RefersToVar(n.Arg, name)
	case *ComponentAccess:
		return RefersToVar(n.Arg, name)
	case *OpApply:
		for _, a := range n.Args {
			if RefersToVar(a, name) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// TypeOf performs the lazy type inference of spec §4.5. For operator
// applications it consults reg to resolve the overload and reports its
// declared return type.
func TypeOf(store *rtype.Store, reg *opregistry.Registry, e Node) (rtype.Handle, *execctx.Error) {
	switch n := e.(type) {
	case *Literal:
		if n.Value.Type() != nil {
			return n.Value.Type().Handle(), nil
		}
		return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "literal has no type annotation")
	case *TableRef:
		return n.Table.Heading(), nil
	case *VarRef:
		return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "variable reference type is resolved by the caller's local environment")
	case *AttrAccess:
		argType, err := TypeOf(store, reg, n.Arg)
		if err != nil {
			return rtype.HandleNone, err
		}
		tt := store.Get(argType)
		if tt == nil || tt.Kind != rtype.KindTuple {
			return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "attribute access on a non-tuple value")
		}
		at, ok := tt.AttrType(n.Attr)
		if !ok {
			return rtype.HandleNone, execctx.New(execctx.ErrNotFound, "attribute "+n.Attr)
		}
		return at, nil
	case *ComponentAccess:
		argType, err := TypeOf(store, reg, n.Arg)
		if err != nil {
			return rtype.HandleNone, err
		}
		st := store.Get(argType)
		if st == nil || st.Kind != rtype.KindScalar {
			return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "component access on a non-scalar value")
		}
		for _, pr := range st.Possreps {
			if pr.Name != n.Possrep {
				continue
			}
			for _, c := range pr.Components {
				if c.Name == n.Component {
					return c.Type, nil
				}
			}
		}
		return rtype.HandleNone, execctx.New(execctx.ErrNotFound, "possrep component "+n.Component)
	case *OpApply:
		argTypes := make([]rtype.Handle, len(n.Args))
		for i, a := range n.Args {
			t, err := TypeOf(store, reg, a)
			if err != nil {
				return rtype.HandleNone, err
			}
			argTypes[i] = t
		}
		op, rerr := reg.Resolve(n.Op, argTypes)
		if rerr != nil {
			return rtype.HandleNone, rerr
		}
		return op.Returns, nil
	default:
		return rtype.HandleNone, execctx.New(execctx.ErrInternal, "unknown expression node kind")
	}
}

// TypeOfInScope is TypeOf for an expression evaluated with a tuple of
// type tupleHeading in scope, resolving VarRef against that tuple's
// attributes instead of refusing it outright (spec §4.6.1/§4.6.2: every
// scalar expression inside a relational operator is evaluated per output
// tuple, so its free variables are that tuple's attributes).
func TypeOfInScope(store *rtype.Store, reg *opregistry.Registry, tupleHeading rtype.Handle, e Node) (rtype.Handle, *execctx.Error) {
	switch n := e.(type) {
	case *VarRef:
		tt := store.Get(tupleHeading)
		if tt == nil || tt.Kind != rtype.KindTuple {
			return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "no tuple in scope for variable "+n.Name)
		}
		at, ok := tt.AttrType(n.Name)
		if !ok {
			return rtype.HandleNone, execctx.New(execctx.ErrNotFound, "attribute "+n.Name)
		}
		return at, nil
	case *AttrAccess:
		argType, err := TypeOfInScope(store, reg, tupleHeading, n.Arg)
		if err != nil {
			return rtype.HandleNone, err
		}
		tt := store.Get(argType)
		if tt == nil || tt.Kind != rtype.KindTuple {
			return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "attribute access on a non-tuple value")
		}
		at, ok := tt.AttrType(n.Attr)
		if !ok {
			return rtype.HandleNone, execctx.New(execctx.ErrNotFound, "attribute "+n.Attr)
		}
		return at, nil
	case *ComponentAccess:
		argType, err := TypeOfInScope(store, reg, tupleHeading, n.Arg)
		if err != nil {
			return rtype.HandleNone, err
		}
		st := store.Get(argType)
		if st == nil || st.Kind != rtype.KindScalar {
			return rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "component access on a non-scalar value")
		}
		for _, pr := range st.Possreps {
			for _, c := range pr.Components {
				if c.Name == n.Component {
					return c.Type, nil
				}
			}
		}
		return rtype.HandleNone, execctx.New(execctx.ErrNotFound, "possrep component "+n.Component)
	case *OpApply:
		argTypes := make([]rtype.Handle, len(n.Args))
		for i, a := range n.Args {
			t, err := TypeOfInScope(store, reg, tupleHeading, a)
			if err != nil {
				return rtype.HandleNone, err
			}
			argTypes[i] = t
		}
		op, rerr := reg.Resolve(n.Op, argTypes)
		if rerr != nil {
			return rtype.HandleNone, rerr
		}
		return op.Returns, nil
	default:
		return TypeOf(store, reg, e)
	}
}

// Destroy releases e's owned children, any owned type annotation, and
// its OptInfo. Go's GC reclaims memory; Destroy exists to mirror the
// explicit-release discipline spec §5 requires of every owning handle.
func Destroy(e Node) {
	switch n := e.(type) {
	case *AttrAccess:
		Destroy(n.Arg)
	case *ComponentAccess:
		Destroy(n.Arg)
	case *OpApply:
		for _, a := range n.Args {
			Destroy(a)
		}
		n.OptInfo = nil
	}
}
