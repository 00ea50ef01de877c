package builtin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
)

func registerStrings(reg *opregistry.Registry) {
	strPair := []rtype.Handle{rtype.HandleString, rtype.HandleString}

	reg.Register(&opregistry.OpEntry{Name: "||", Params: strPair, Returns: rtype.HandleString, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return args[0].(string) + args[1].(string), nil }})

	reg.Register(&opregistry.OpEntry{Name: "strlen", Params: []rtype.Handle{rtype.HandleString}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return int64(len([]rune(args[0].(string)))), nil }})
	reg.Register(&opregistry.OpEntry{Name: "strlen_b", Params: []rtype.Handle{rtype.HandleString}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return int64(len(args[0].(string))), nil }})

	substrParams := []rtype.Handle{rtype.HandleString, rtype.HandleInteger, rtype.HandleInteger}
	reg.Register(&opregistry.OpEntry{Name: "substr", Params: substrParams, Returns: rtype.HandleString, Kind: opregistry.KindNative, Fn: substr})
	reg.Register(&opregistry.OpEntry{Name: "substr_b", Params: substrParams, Returns: rtype.HandleString, Kind: opregistry.KindNative, Fn: substrB})

	reg.Register(&opregistry.OpEntry{Name: "strfind_b", Params: strPair, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) {
			idx := strings.Index(args[0].(string), args[1].(string))
			return int64(idx), nil
		}})

	reg.Register(&opregistry.OpEntry{Name: "starts_with", Params: strPair, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) {
			return strings.HasPrefix(args[0].(string), args[1].(string)), nil
		}})

	reg.Register(&opregistry.OpEntry{Name: "like", Params: strPair, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative, Fn: likeOp})
	reg.Register(&opregistry.OpEntry{Name: "regex_like", Params: strPair, Returns: rtype.HandleBoolean, Kind: opregistry.KindNative, Fn: regexLike})

	reg.Register(&opregistry.OpEntry{Name: "format", Variadic: true, Returns: rtype.HandleString, Kind: opregistry.KindNative, Fn: formatOp})

	registerCasts(reg)
}

// substr implements spec §6.4/§8.3: "substr(s, start, len) with start +
// len > strlen(s) raises invalid_argument."
func substr(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	runes := []rune(args[0].(string))
	start, length := args[1].(int64), args[2].(int64)
	if start < 0 || length < 0 || start+length > int64(len(runes)) {
		return nil, raiseError(ctx, execctx.ErrInvalidArgument, "invalid substr argument")
	}
	return string(runes[start : start+length]), nil
}

func substrB(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	s := args[0].(string)
	start, length := args[1].(int64), args[2].(int64)
	if start < 0 || length < 0 || start+length > int64(len(s)) {
		return nil, raiseError(ctx, execctx.ErrInvalidArgument, "invalid substr argument")
	}
	return s[start : start+length], nil
}

// likeOp implements simple SQL-style LIKE matching with % and _ wildcards.
func likeOp(_ *execctx.Context, args []interface{}) (interface{}, error) {
	s, pattern := args[0].(string), args[1].(string)
	var re strings.Builder
	re.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			re.WriteString(".*")
		case '_':
			re.WriteString(".")
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString("$")
	matched, err := regexp.MatchString(re.String(), s)
	if err != nil {
		return nil, err
	}
	return matched, nil
}

func regexLike(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	s, pattern := args[0].(string), args[1].(string)
	matched, err := regexp.MatchString(pattern, s)
	if err != nil {
		return nil, raiseError(ctx, execctx.ErrSyntax, "invalid regular expression: "+err.Error())
	}
	return matched, nil
}

// formatOp implements sprintf-style conversions but with typed arguments,
// per spec §6.4: args[0] is the format string, remaining args are the
// values to interpolate.
func formatOp(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, raiseError(ctx, execctx.ErrInvalidArgument, "format requires at least a format string")
	}
	f, ok := args[0].(string)
	if !ok {
		return nil, raiseError(ctx, execctx.ErrTypeMismatch, "format string must be of type string")
	}
	return fmt.Sprintf(f, args[1:]...), nil
}

func registerCasts(reg *opregistry.Registry) {
	reg.Register(&opregistry.OpEntry{Name: "cast_as_string", Params: []rtype.Handle{rtype.HandleInteger}, Returns: rtype.HandleString, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return strconv.FormatInt(args[0].(int64), 10), nil }})
	reg.Register(&opregistry.OpEntry{Name: "cast_as_string", Params: []rtype.Handle{rtype.HandleFloat}, Returns: rtype.HandleString, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return strconv.FormatFloat(args[0].(float64), 'g', -1, 64), nil }})

	reg.Register(&opregistry.OpEntry{Name: "cast_as_integer", Params: []rtype.Handle{rtype.HandleString}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			i, err := strconv.ParseInt(args[0].(string), 10, 64)
			if err != nil {
				return nil, raiseError(ctx, execctx.ErrInvalidArgument, "cannot parse integer: "+err.Error())
			}
			return i, nil
		}})
	reg.Register(&opregistry.OpEntry{Name: "cast_as_integer", Params: []rtype.Handle{rtype.HandleFloat}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			f := args[0].(float64)
			if f > 9.223372036854775e18 || f < -9.223372036854775e18 {
				return nil, raiseError(ctx, execctx.ErrTypeConstraintViolation, "integer out of range")
			}
			return int64(f), nil
		}})

	reg.Register(&opregistry.OpEntry{Name: "cast_as_float", Params: []rtype.Handle{rtype.HandleString}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			f, err := strconv.ParseFloat(args[0].(string), 64)
			if err != nil {
				return nil, raiseError(ctx, execctx.ErrInvalidArgument, "cannot parse float: "+err.Error())
			}
			return f, nil
		}})
	reg.Register(&opregistry.OpEntry{Name: "cast_as_float", Params: []rtype.Handle{rtype.HandleInteger}, Returns: rtype.HandleFloat, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return float64(args[0].(int64)), nil }})

	reg.Register(&opregistry.OpEntry{Name: "cast_as_binary", Params: []rtype.Handle{rtype.HandleString}, Returns: rtype.HandleBinary, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return []byte(args[0].(string)), nil }})
}
