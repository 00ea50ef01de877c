package builtin

import (
	"math"

	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
)

func registerMath(reg *opregistry.Registry) {
	unary := func(name string, fn func(float64) float64) {
		reg.Register(&opregistry.OpEntry{Name: name, Params: []rtype.Handle{rtype.HandleFloat}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative,
			Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
				r := fn(args[0].(float64))
				if !isFinite(r) {
					return nil, raiseOverflow(ctx, "floating point overflow")
				}
				return r, nil
			}})
	}

	unary("sqrt", math.Sqrt)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("atan", math.Atan)
	unary("exp", math.Exp)
	unary("ln", math.Log)

	reg.Register(&opregistry.OpEntry{Name: "atan2", Params: []rtype.Handle{rtype.HandleFloat, rtype.HandleFloat}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			r := math.Atan2(args[0].(float64), args[1].(float64))
			if !isFinite(r) {
				return nil, raiseOverflow(ctx, "floating point overflow")
			}
			return r, nil
		}})
	reg.Register(&opregistry.OpEntry{Name: "power", Params: []rtype.Handle{rtype.HandleFloat, rtype.HandleFloat}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			r := math.Pow(args[0].(float64), args[1].(float64))
			if !isFinite(r) {
				return nil, raiseOverflow(ctx, "floating point overflow")
			}
			return r, nil
		}})
	reg.Register(&opregistry.OpEntry{Name: "log", Params: []rtype.Handle{rtype.HandleFloat, rtype.HandleFloat}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			r := math.Log(args[1].(float64)) / math.Log(args[0].(float64))
			if !isFinite(r) {
				return nil, raiseOverflow(ctx, "floating point overflow")
			}
			return r, nil
		}})
}
