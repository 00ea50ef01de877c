package builtin

import (
	"bytes"
	"strings"

	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
	"reld/value"
)

// dtFields flattens a Datetime into its lexicographic comparison key:
// calendar fields compare in year/month/day/hour/minute/second order.
func dtFields(dt value.Datetime) [6]int {
	return [6]int{dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second}
}

// cmp returns -1, 0, or 1 comparing a and b, which must be of the same
// ordered kind (int64, float64, string, or value.Datetime).
func cmp(a, b interface{}) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	case value.Datetime:
		af, bf := dtFields(av), dtFields(b.(value.Datetime))
		for i := range af {
			switch {
			case af[i] < bf[i]:
				return -1
			case af[i] > bf[i]:
				return 1
			}
		}
		return 0
	default:
		return 0
	}
}

func registerComparison(reg *opregistry.Registry) {
	for _, typ := range []rtype.Handle{rtype.HandleInteger, rtype.HandleFloat, rtype.HandleString, rtype.HandleDatetime} {
		params := []rtype.Handle{typ, typ}
		reg.Register(&opregistry.OpEntry{Name: "<", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return cmp(args[0], args[1]) < 0, nil }})
		reg.Register(&opregistry.OpEntry{Name: "<=", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return cmp(args[0], args[1]) <= 0, nil }})
		reg.Register(&opregistry.OpEntry{Name: ">", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return cmp(args[0], args[1]) > 0, nil }})
		reg.Register(&opregistry.OpEntry{Name: ">=", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return cmp(args[0], args[1]) >= 0, nil }})
		reg.Register(&opregistry.OpEntry{Name: "=", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return cmp(args[0], args[1]) == 0, nil }})
		reg.Register(&opregistry.OpEntry{Name: "<>", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return cmp(args[0], args[1]) != 0, nil }})
	}

	// Binary and boolean are compared for exact equality only (not ordered).
	exactEq := func(a, b interface{}) bool {
		if ab, ok := a.([]byte); ok {
			bb, _ := b.([]byte)
			return bytes.Equal(ab, bb)
		}
		return a == b
	}
	for _, typ := range []rtype.Handle{rtype.HandleBinary, rtype.HandleBoolean} {
		params := []rtype.Handle{typ, typ}
		reg.Register(&opregistry.OpEntry{Name: "=", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return exactEq(args[0], args[1]), nil }})
		reg.Register(&opregistry.OpEntry{Name: "<>", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return !exactEq(args[0], args[1]), nil }})
	}
}

func registerBoolean(reg *opregistry.Registry) {
	params := []rtype.Handle{rtype.HandleBoolean, rtype.HandleBoolean}
	reg.Register(&opregistry.OpEntry{Name: "and", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return args[0].(bool) && args[1].(bool), nil }})
	reg.Register(&opregistry.OpEntry{Name: "or", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return args[0].(bool) || args[1].(bool), nil }})
	reg.Register(&opregistry.OpEntry{Name: "xor", Params: params, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return args[0].(bool) != args[1].(bool), nil }})
	reg.Register(&opregistry.OpEntry{Name: "not", Params: []rtype.Handle{rtype.HandleBoolean}, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return !args[0].(bool), nil }})
}
