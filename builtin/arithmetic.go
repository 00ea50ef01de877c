// Package builtin implements the scalar built-in operator surface of
// spec §6.4, grounded on the original engine's builtinscops.c and
// datetimeops.c: arithmetic with overflow detection, comparisons,
// boolean logic, casts, string operations, math, and datetime.
package builtin

import (
	"math"

	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
)

func asInt(v interface{}) int64   { return v.(int64) }
func asFloat(v interface{}) float64 { return v.(float64) }

// registerArithmetic wires +, -, *, / for integer and float, with the
// overflow and division-by-zero checks of spec §8.3.
func registerArithmetic(reg *opregistry.Registry) {
	intParams := []rtype.Handle{rtype.HandleInteger, rtype.HandleInteger}
	floatParams := []rtype.Handle{rtype.HandleFloat, rtype.HandleFloat}

	reg.Register(&opregistry.OpEntry{Name: "+", Params: intParams, Returns: rtype.HandleInteger, Kind: opregistry.KindNative, Fn: addInt})
	reg.Register(&opregistry.OpEntry{Name: "+", Params: floatParams, Returns: rtype.HandleFloat, Kind: opregistry.KindNative, Fn: addFloat})
	reg.Register(&opregistry.OpEntry{Name: "-", Params: intParams, Returns: rtype.HandleInteger, Kind: opregistry.KindNative, Fn: subInt})
	reg.Register(&opregistry.OpEntry{Name: "-", Params: floatParams, Returns: rtype.HandleFloat, Kind: opregistry.KindNative, Fn: subFloat})
	reg.Register(&opregistry.OpEntry{Name: "*", Params: intParams, Returns: rtype.HandleInteger, Kind: opregistry.KindNative, Fn: mulInt})
	reg.Register(&opregistry.OpEntry{Name: "*", Params: floatParams, Returns: rtype.HandleFloat, Kind: opregistry.KindNative, Fn: mulFloat})
	reg.Register(&opregistry.OpEntry{Name: "/", Params: intParams, Returns: rtype.HandleInteger, Kind: opregistry.KindNative, Fn: divInt})
	reg.Register(&opregistry.OpEntry{Name: "/", Params: floatParams, Returns: rtype.HandleFloat, Kind: opregistry.KindNative, Fn: divFloat})

	reg.Register(&opregistry.OpEntry{Name: "-", Params: []rtype.Handle{rtype.HandleInteger}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative, Fn: negInt})
	reg.Register(&opregistry.OpEntry{Name: "-", Params: []rtype.Handle{rtype.HandleFloat}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative, Fn: negFloat})
	reg.Register(&opregistry.OpEntry{Name: "abs", Params: []rtype.Handle{rtype.HandleInteger}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative, Fn: absInt})
	reg.Register(&opregistry.OpEntry{Name: "abs", Params: []rtype.Handle{rtype.HandleFloat}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative, Fn: absFloat})
}

func addInt(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	a, b := asInt(args[0]), asInt(args[1])
	if b > 0 {
		if a > math.MaxInt64-b {
			return nil, raiseOverflow(ctx, "integer overflow")
		}
	} else {
		if a < math.MinInt64-b {
			return nil, raiseOverflow(ctx, "integer overflow")
		}
	}
	return a + b, nil
}

func subInt(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	a, b := asInt(args[0]), asInt(args[1])
	if b > 0 {
		if a < math.MinInt64+b {
			return nil, raiseOverflow(ctx, "integer overflow")
		}
	} else {
		if a > math.MaxInt64+b {
			return nil, raiseOverflow(ctx, "integer overflow")
		}
	}
	return a - b, nil
}

func mulInt(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	a, b := asInt(args[0]), asInt(args[1])
	if a == 0 || b == 0 {
		return int64(0), nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return nil, raiseOverflow(ctx, "integer overflow")
	}
	prod := a * b
	if prod/b != a {
		return nil, raiseOverflow(ctx, "integer overflow")
	}
	return prod, nil
}

func divInt(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	a, b := asInt(args[0]), asInt(args[1])
	if b == 0 {
		return nil, raiseError(ctx, execctx.ErrInvalidArgument, "division by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return nil, raiseOverflow(ctx, "integer overflow")
	}
	return a / b, nil
}

func negInt(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	a := asInt(args[0])
	if a == math.MinInt64 {
		return nil, raiseOverflow(ctx, "integer overflow")
	}
	return -a, nil
}

func absInt(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	a := asInt(args[0])
	if a == math.MinInt64 {
		return nil, raiseOverflow(ctx, "integer overflow")
	}
	if a < 0 {
		return -a, nil
	}
	return a, nil
}

func addFloat(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	f := asFloat(args[0]) + asFloat(args[1])
	if !isFinite(f) {
		return nil, raiseOverflow(ctx, "floating point overflow")
	}
	return f, nil
}

func subFloat(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	f := asFloat(args[0]) - asFloat(args[1])
	if !isFinite(f) {
		return nil, raiseOverflow(ctx, "floating point overflow")
	}
	return f, nil
}

func mulFloat(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	f := asFloat(args[0]) * asFloat(args[1])
	if !isFinite(f) {
		return nil, raiseOverflow(ctx, "floating point overflow")
	}
	return f, nil
}

func divFloat(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	f := asFloat(args[0]) / asFloat(args[1])
	if !isFinite(f) {
		return nil, raiseOverflow(ctx, "floating point overflow")
	}
	return f, nil
}

func negFloat(_ *execctx.Context, args []interface{}) (interface{}, error) {
	return -asFloat(args[0]), nil
}

func absFloat(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	f := math.Abs(asFloat(args[0]))
	if !isFinite(f) {
		return nil, raiseOverflow(ctx, "floating point overflow")
	}
	return f, nil
}

func isFinite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

func raiseOverflow(ctx *execctx.Context, msg string) error {
	return raiseError(ctx, execctx.ErrTypeConstraintViolation, msg)
}

func raiseError(ctx *execctx.Context, kind execctx.ErrorKind, msg string) error {
	e := execctx.New(kind, msg)
	if ctx != nil {
		ctx.Raise(e)
	}
	return e
}
