// Package codec implements the value-on-wire and persisted-layout rules
// of spec §6.3: a per-type coder derived from a type's internal
// representation length, with a length prefix for variable-length
// attributes, plus optional transparent compression of the resulting
// bytes before they cross the record-layer boundary.
package codec

import (
	"reld/record"
	"reld/rtype"
)

// scalarHandle resolves t to the built-in scalar handle whose wire shape
// it ultimately uses: t itself if it is already a built-in, or its
// ActualRep chain's built-in ancestor for a piggy-backed user type.
func scalarHandle(store *rtype.Store, h rtype.Handle) rtype.Handle {
	for {
		t := store.Get(h)
		if t == nil || t.Kind != rtype.KindScalar {
			return h
		}
		if t.Flags.Builtin {
			return h
		}
		if t.ActualRep == rtype.HandleNone {
			return h
		}
		h = t.ActualRep
	}
}

// FieldSpecFor derives the record-layer FieldSpec for the scalar type at
// handle h, by internal representation length (spec §6.1/§6.3).
func FieldSpecFor(store *rtype.Store, name string, h rtype.Handle) record.FieldSpec {
	rh := scalarHandle(store, h)
	switch rh {
	case rtype.HandleDatetime:
		return record.FieldSpec{Name: name, Width: 7}
	case rtype.HandleBoolean:
		return record.FieldSpec{Name: name, Width: 1}
	case rtype.HandleInteger, rtype.HandleFloat:
		return record.FieldSpec{Name: name, Width: 8}
	default:
		// string, binary, and any scalar without a fixed internal
		// representation length are variable-width, length-prefixed.
		return record.FieldSpec{Name: name, Width: -1}
	}
}

// FieldSpecsForHeading derives the full field list for a tuple type's
// attributes, in declared order, for passing to
// Environment.CreateRecmap/OpenRecmap.
func FieldSpecsForHeading(store *rtype.Store, heading rtype.Handle) []record.FieldSpec {
	tt := store.Get(heading)
	if tt == nil || tt.Kind != rtype.KindTuple {
		return nil
	}
	out := make([]record.FieldSpec, len(tt.Attrs))
	for i, a := range tt.Attrs {
		out[i] = FieldSpecFor(store, a.Name, a.Type)
	}
	return out
}
