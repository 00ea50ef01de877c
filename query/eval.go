package query

import (
	"reld/execctx"
	"reld/expr"
	"reld/opregistry"
	"reld/rtype"
	"reld/value"
)

// scalarHandle resolves h to the built-in ancestor whose wire/argument
// shape it ultimately uses, walking a piggy-backed user type's ActualRep
// chain (mirrors codec.scalarHandle; duplicated here rather than
// exported across the package boundary since the two packages reason
// about it for different purposes — argument marshaling here, byte width
// there).
func scalarHandle(store *rtype.Store, h rtype.Handle) rtype.Handle {
	for {
		t := store.Get(h)
		if t == nil || t.Kind != rtype.KindScalar {
			return h
		}
		if t.Flags.Builtin || t.ActualRep == rtype.HandleNone {
			return h
		}
		h = t.ActualRep
	}
}

// toPrimitive unwraps a scalar Value into the raw Go value the operator
// registry's native functions expect (spec §4.4's Func signature).
func toPrimitive(store *rtype.Store, v *value.Value) (interface{}, *execctx.Error) {
	if v.Kind() == value.KindTuple {
		// A user-defined possrep's physical storage (spec GLOSSARY:
		// "Possrep"), regardless of its declared scalar type: pass the
		// tuple-shaped value straight through rather than forcing it
		// through the builtin-primitive cases below. catalog.
		// CreateScalarType's auto-registered selector/getter/setter
		// operators are the only native Fns that type-assert back to
		// *value.Value.
		return v, nil
	}
	declared := v.Type()
	h := rtype.HandleNone
	if declared != nil {
		h = scalarHandle(store, declared.Handle())
	}
	switch h {
	case rtype.HandleBoolean:
		b, err := value.Bool(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "eval: boolean argument", err)
		}
		return b, nil
	case rtype.HandleInteger:
		i, err := value.Int(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "eval: integer argument", err)
		}
		return i, nil
	case rtype.HandleFloat:
		f, err := value.Float(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "eval: float argument", err)
		}
		return f, nil
	case rtype.HandleDatetime:
		dt, err := value.GetDatetime(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "eval: datetime argument", err)
		}
		return dt, nil
	case rtype.HandleBinary:
		b, err := value.Bytes(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "eval: binary argument", err)
		}
		return b, nil
	default:
		// HandleString, or no declared type at all: present as a Go string,
		// the registry's convention for every textual builtin.
		b, err := value.Bytes(v)
		if err != nil {
			return nil, execctx.Wrap(execctx.ErrTypeMismatch, "eval: string argument", err)
		}
		return string(b), nil
	}
}

// fromPrimitive wraps a native operator's raw Go result back into a
// typed Value.
func fromPrimitive(store *rtype.Store, returnType rtype.Handle, raw interface{}) (*value.Value, *execctx.Error) {
	v := value.New()
	if t := store.Get(returnType); t != nil {
		v.SetType(t)
	}
	switch rv := raw.(type) {
	case bool:
		value.SetBool(v, rv)
	case int64:
		value.SetInt(v, rv)
	case float64:
		value.SetFloat(v, rv)
	case value.Datetime:
		value.SetDatetime(v, rv)
	case string:
		value.SetBytes(v, []byte(rv))
	case []byte:
		value.SetBytes(v, rv)
	case *value.Value:
		// A possrep selector or setter already built the full tuple-shaped
		// result (catalog.CreateScalarType's auto-registered operators);
		// re-type it as returnType rather than unwrapping it further.
		if t := store.Get(returnType); t != nil {
			rv.SetType(t)
		}
		return rv, nil
	default:
		return nil, execctx.New(execctx.ErrInternal, "eval: operator returned an unrecognized result type")
	}
	return v, nil
}

// EvalScalar evaluates a scalar expression node against row, the
// tuple currently in scope — VarRef resolves against row's attributes
// rather than a separate named-variable namespace, since every scalar
// expression inside a relational operator's predicate or extend clause
// is evaluated per output tuple (spec §4.6.1/§4.6.2).
func EvalScalar(env *Env, ctx *execctx.Context, row *value.Value, node expr.Node) (*value.Value, *execctx.Error) {
	switch n := node.(type) {
	case *expr.Literal:
		return value.DeepCopy(n.Value), nil

	case *expr.VarRef:
		if row == nil {
			return nil, execctx.New(execctx.ErrName, "no tuple in scope for variable "+n.Name)
		}
		v, err := value.TupleGet(row, n.Name)
		if err != nil {
			return nil, execctx.New(execctx.ErrName, "unknown variable "+n.Name)
		}
		return v, nil

	case *expr.AttrAccess:
		arg, aerr := EvalScalar(env, ctx, row, n.Arg)
		if aerr != nil {
			return nil, aerr
		}
		v, err := value.TupleGet(arg, n.Attr)
		if err != nil {
			return nil, execctx.New(execctx.ErrName, "unknown attribute "+n.Attr)
		}
		return v, nil

	case *expr.ComponentAccess:
		arg, aerr := EvalScalar(env, ctx, row, n.Arg)
		if aerr != nil {
			return nil, aerr
		}
		return evalComponentGetter(env, ctx, arg, n.Component)

	case *expr.OpApply:
		return evalOpApply(env, ctx, row, n)

	case *expr.TableRef:
		return nil, execctx.New(execctx.ErrTypeMismatch, "a table reference is not a scalar expression")

	default:
		return nil, execctx.New(execctx.ErrInternal, "eval: unrecognized expression node")
	}
}

// evalComponentGetter invokes the possrep component's getter operator, by
// convention an operator named after the component accepting the
// scalar's type and returning the component's type (spec GLOSSARY:
// "Possrep ... typed components and selector/getter/setter operators").
func evalComponentGetter(env *Env, ctx *execctx.Context, arg *value.Value, component string) (*value.Value, *execctx.Error) {
	argType := arg.Type()
	if argType == nil {
		return nil, execctx.New(execctx.ErrTypeMismatch, "component access on an untyped value")
	}
	entry, rerr := env.Reg.Resolve(component, []rtype.Handle{argType.Handle()})
	if rerr != nil {
		return nil, rerr
	}
	return invokeEntry(env, ctx, entry, []*value.Value{arg})
}

func invokeEntry(env *Env, ctx *execctx.Context, entry *opregistry.OpEntry, argv []*value.Value) (*value.Value, *execctx.Error) {
	if entry.Kind != opregistry.KindNative {
		return nil, execctx.New(execctx.ErrNotSupported, "operator "+entry.Name+" has no native implementation loaded")
	}
	args := make([]interface{}, len(argv))
	for i, a := range argv {
		p, perr := toPrimitive(env.Store, a)
		if perr != nil {
			return nil, perr
		}
		args[i] = p
	}
	raw, err := entry.Fn(ctx, args)
	if err != nil {
		if ee, ok := err.(*execctx.Error); ok {
			return nil, ee
		}
		if ce := ctx.Error(); ce != nil {
			return nil, ce
		}
		return nil, execctx.Wrap(execctx.ErrInternal, "operator "+entry.Name+" failed", err)
	}
	if entry.Returns == rtype.HandleNone {
		return value.New(), nil
	}
	return fromPrimitive(env.Store, entry.Returns, raw)
}

func evalOpApply(env *Env, ctx *execctx.Context, row *value.Value, n *expr.OpApply) (*value.Value, *execctx.Error) {
	argv := make([]*value.Value, len(n.Args))
	argTypes := make([]rtype.Handle, len(n.Args))
	for i, a := range n.Args {
		v, err := EvalScalar(env, ctx, row, a)
		if err != nil {
			return nil, err
		}
		argv[i] = v
		if t := v.Type(); t != nil {
			argTypes[i] = t.Handle()
		}
	}
	entry, rerr := env.Reg.Resolve(n.Op, argTypes)
	if rerr != nil {
		return nil, rerr
	}
	return invokeEntry(env, ctx, entry, argv)
}
