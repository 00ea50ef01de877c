// Package value implements the kernel's tagged-union value representation:
// the single runtime type that every scalar, tuple, relation, and array
// instance in the engine is built from.
package value

import (
	"fmt"

	"reld/rtype"
)

// Kind identifies which variant of the tagged union a Value currently holds.
type Kind int

const (
	// KindUnit is the zero value produced by default construction. It is
	// legal only as a write target; reading a unit value is an error.
	KindUnit Kind = iota
	KindBoolean
	KindInt
	KindFloat
	KindDatetime
	KindBytes // covers both textual string and opaque binary
	KindTuple
	KindRelation
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindBoolean:
		return "boolean"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDatetime:
		return "datetime"
	case KindBytes:
		return "bytes"
	case KindTuple:
		return "tuple"
	case KindRelation:
		return "relation"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// strBufInc is the minimum growth increment for byte-string storage,
// carried over from the original amortized-growth scheme even though Go's
// append() already amortizes for us; kept as the documented floor.
const strBufInc = 64

// Relation is satisfied by whatever the query engine's materialized or
// virtual relation type is. value does not depend on query to avoid an
// import cycle; it only needs to store and hand back the heading handle.
type Relation interface {
	Heading() rtype.Handle
}

// Value is the tagged union described in spec §3.1. The zero Value is
// KindUnit with no type annotation.
type Value struct {
	kind Kind
	typ  *rtype.Type // optional; always set for scalars
	impl *rtype.Type // optional implementation-type, for dummy/union scalars

	b   bool
	i   int64
	f   float64
	dt  Datetime
	bs  []byte
	tup map[string]*Value
	// tupOrder preserves insertion order only for stable enumeration; tuple
	// equality and lookup never depend on it.
	tupOrder []string
	rel      Relation
	arr      []*Value
}

// Datetime is the fixed-width calendar value described in spec §3.1.
type Datetime struct {
	Year, Month, Day, Hour, Minute, Second int
}

// Type returns the value's declared type annotation, or nil if none is set.
func (v *Value) Type() *rtype.Type { return v.typ }

// SetType attaches a type annotation to the value.
func (v *Value) SetType(t *rtype.Type) { v.typ = t }

// ImplementationType returns the concrete subtype a dummy-typed value
// actually inhabits, or nil if the value's declared type is not a dummy
// type (or the implementation type has not been set).
func (v *Value) ImplementationType() *rtype.Type { return v.impl }

// SetImplementationType records which concrete subtype a dummy-typed value
// inhabits, per spec §3.1/§3.3.
func (v *Value) SetImplementationType(t *rtype.Type) { v.impl = t }

// Kind returns the active variant.
func (v *Value) Kind() Kind { return v.kind }

// New constructs a unit value, the product of default construction.
func New() *Value { return &Value{kind: KindUnit} }

// ErrTypeMismatch is returned when a typed value is written with a
// primitive of the wrong family, or read as the wrong family.
type ErrTypeMismatch struct {
	Want, Got Kind
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

// ErrNotFound is returned when reading a missing tuple attribute or an
// out-of-range array index.
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string { return "not found: " + e.What }

// --- primitive construct/read ---

// SetBool writes a boolean primitive into v, replacing whatever it held.
func SetBool(v *Value, b bool) {
	*v = Value{kind: KindBoolean, typ: v.typ, b: b}
}

// Bool reads v as a boolean primitive.
func Bool(v *Value) (bool, error) {
	if v.kind != KindBoolean {
		return false, &ErrTypeMismatch{KindBoolean, v.kind}
	}
	return v.b, nil
}

// SetInt writes a 64-bit signed integer primitive into v.
func SetInt(v *Value, i int64) {
	*v = Value{kind: KindInt, typ: v.typ, i: i}
}

// Int reads v as a 64-bit signed integer primitive.
func Int(v *Value) (int64, error) {
	if v.kind != KindInt {
		return 0, &ErrTypeMismatch{KindInt, v.kind}
	}
	return v.i, nil
}

// SetFloat writes a 64-bit float primitive into v.
func SetFloat(v *Value, f float64) {
	*v = Value{kind: KindFloat, typ: v.typ, f: f}
}

// Float reads v as a 64-bit float primitive.
func Float(v *Value) (float64, error) {
	if v.kind != KindFloat {
		return 0, &ErrTypeMismatch{KindFloat, v.kind}
	}
	return v.f, nil
}

// SetDatetime writes a datetime primitive into v.
func SetDatetime(v *Value, dt Datetime) {
	*v = Value{kind: KindDatetime, typ: v.typ, dt: dt}
}

// GetDatetime reads v as a datetime primitive.
func GetDatetime(v *Value) (Datetime, error) {
	if v.kind != KindDatetime {
		return Datetime{}, &ErrTypeMismatch{KindDatetime, v.kind}
	}
	return v.dt, nil
}

// SetBytes writes a byte-string primitive (textual or binary) into v,
// copying the input so the caller may reuse its buffer.
func SetBytes(v *Value, b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	*v = Value{kind: KindBytes, typ: v.typ, bs: cp}
}

// Bytes reads v's byte-string payload without copying.
func Bytes(v *Value) ([]byte, error) {
	if v.kind != KindBytes {
		return nil, &ErrTypeMismatch{KindBytes, v.kind}
	}
	return v.bs, nil
}

// AppendString appends s to v's byte-string payload, growing the backing
// array by at least strBufInc bytes worth of headroom the way the original
// amortized-growth scheme did.
func AppendString(v *Value, s string) error {
	if v.kind != KindBytes {
		return &ErrTypeMismatch{KindBytes, v.kind}
	}
	if cap(v.bs)-len(v.bs) < len(s) {
		grown := make([]byte, len(v.bs), len(v.bs)+len(s)+strBufInc)
		copy(grown, v.bs)
		v.bs = grown
	}
	v.bs = append(v.bs, s...)
	return nil
}

// AppendByte appends a single byte to v's byte-string payload.
func AppendByte(v *Value, b byte) error {
	if v.kind != KindBytes {
		return &ErrTypeMismatch{KindBytes, v.kind}
	}
	if cap(v.bs)-len(v.bs) < 1 {
		grown := make([]byte, len(v.bs), len(v.bs)+strBufInc)
		copy(grown, v.bs)
		v.bs = grown
	}
	v.bs = append(v.bs, b)
	return nil
}

// BinarySet replaces v's raw byte payload outright (as opposed to the
// amortized-append path used for string building).
func BinarySet(v *Value, b []byte) { SetBytes(v, b) }

// BinaryResize grows or truncates v's byte payload to exactly n bytes,
// zero-filling any newly exposed tail.
func BinaryResize(v *Value, n int) error {
	if v.kind != KindBytes {
		return &ErrTypeMismatch{KindBytes, v.kind}
	}
	if n <= len(v.bs) {
		v.bs = v.bs[:n]
		return nil
	}
	grown := make([]byte, n)
	copy(grown, v.bs)
	v.bs = grown
	return nil
}
