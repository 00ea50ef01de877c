package builtin

import (
	"math"
	"testing"

	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
	"reld/value"
)

func newRegistry() *opregistry.Registry {
	store := rtype.NewStore()
	reg := opregistry.New(store)
	RegisterAll(reg)
	return reg
}

func call(t *testing.T, reg *opregistry.Registry, name string, types []rtype.Handle, args []interface{}) (interface{}, *execctx.Context, error) {
	t.Helper()
	op, rerr := reg.Resolve(name, types)
	if rerr != nil {
		t.Fatalf("Resolve(%s): %v", name, rerr)
	}
	ctx := execctx.NewContext()
	res, err := op.Fn(ctx, args)
	return res, ctx, err
}

func TestIntegerAddOverflowRaisesTypeConstraintViolation(t *testing.T) {
	reg := newRegistry()
	_, ctx, err := call(t, reg, "+", []rtype.Handle{rtype.HandleInteger, rtype.HandleInteger}, []interface{}{int64(math.MaxInt64), int64(1)})
	if err == nil {
		t.Fatalf("expected overflow error")
	}
	if ctx.Error().Kind != execctx.ErrTypeConstraintViolation {
		t.Fatalf("expected type_constraint_violation, got %v", ctx.Error().Kind)
	}
}

func TestIntegerDivideByZeroRaisesInvalidArgument(t *testing.T) {
	reg := newRegistry()
	_, ctx, err := call(t, reg, "/", []rtype.Handle{rtype.HandleInteger, rtype.HandleInteger}, []interface{}{int64(10), int64(0)})
	if err == nil {
		t.Fatalf("expected division by zero error")
	}
	if ctx.Error().Kind != execctx.ErrInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", ctx.Error().Kind)
	}
}

func TestSubstrPastEndRaisesInvalidArgument(t *testing.T) {
	reg := newRegistry()
	_, ctx, err := call(t, reg, "substr", []rtype.Handle{rtype.HandleString, rtype.HandleInteger, rtype.HandleInteger}, []interface{}{"hello", int64(2), int64(10)})
	if err == nil {
		t.Fatalf("expected invalid_argument for out-of-range substr")
	}
	if ctx.Error().Kind != execctx.ErrInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", ctx.Error().Kind)
	}
}

func TestDatetimeRejectsInvalidMonth(t *testing.T) {
	reg := newRegistry()
	_, ctx, err := call(t, reg, "datetime",
		[]rtype.Handle{rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger},
		[]interface{}{int64(2020), int64(13), int64(1), int64(0), int64(0), int64(0)})
	if err == nil {
		t.Fatalf("expected type_constraint_violation for month 13")
	}
	if ctx.Error().Kind != execctx.ErrTypeConstraintViolation {
		t.Fatalf("expected type_constraint_violation, got %v", ctx.Error().Kind)
	}
}

func TestDatetimePre1924JulianLeapRule(t *testing.T) {
	reg := newRegistry()
	// 1900 is not a Julian leap year rule failure: 1900 % 4 == 0, so Feb 29
	// is accepted under the pre-1924 rule even though the Gregorian rule
	// would reject 1900 (divisible by 100, not 400).
	res, _, err := call(t, reg, "datetime",
		[]rtype.Handle{rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger},
		[]interface{}{int64(1900), int64(2), int64(29), int64(0), int64(0), int64(0)})
	if err != nil {
		t.Fatalf("expected 1900-02-29 to be valid under the pre-1924 rule: %v", err)
	}
	dt := res.(value.Datetime)
	if dt.Day != 29 {
		t.Fatalf("unexpected day: %d", dt.Day)
	}
}

func TestDatetimeGettersRoundTripSelector(t *testing.T) {
	reg := newRegistry()
	res, _, err := call(t, reg, "datetime",
		[]rtype.Handle{rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger},
		[]interface{}{int64(2020), int64(6), int64(15), int64(10), int64(30), int64(45)})
	if err != nil {
		t.Fatalf("datetime selector: %v", err)
	}
	dt := res.(value.Datetime)
	want := value.Datetime{Year: 2020, Month: 6, Day: 15, Hour: 10, Minute: 30, Second: 45}
	if dt != want {
		t.Fatalf("selector then getters mismatch: got %+v want %+v", dt, want)
	}
	for _, g := range []struct {
		name string
		want int64
	}{{"year", 2020}, {"month", 6}, {"day", 15}, {"hour", 10}, {"minute", 30}, {"second", 45}} {
		got, _, gerr := call(t, reg, g.name, []rtype.Handle{rtype.HandleDatetime}, []interface{}{dt})
		if gerr != nil {
			t.Fatalf("%s getter: %v", g.name, gerr)
		}
		if got.(int64) != g.want {
			t.Fatalf("%s getter: got %v want %d", g.name, got, g.want)
		}
	}
}

func TestCastStringFloatRoundTrip(t *testing.T) {
	reg := newRegistry()
	str, _, err := call(t, reg, "cast_as_string", []rtype.Handle{rtype.HandleFloat}, []interface{}{3.25})
	if err != nil {
		t.Fatalf("cast_as_string: %v", err)
	}
	back, _, err := call(t, reg, "cast_as_float", []rtype.Handle{rtype.HandleString}, []interface{}{str.(string)})
	if err != nil {
		t.Fatalf("cast_as_float: %v", err)
	}
	if back.(float64) != 3.25 {
		t.Fatalf("round trip mismatch: got %v", back)
	}
}
