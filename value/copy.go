package value

// DeepCopy returns an independent copy of v. Scalars are copied by value;
// tuples and arrays are copied recursively. Relation handles follow the
// sharing rule documented on DupNonscalar: the underlying relation is not
// cloned, only the handle.
func DeepCopy(v *Value) *Value {
	if v == nil {
		return nil
	}
	cp := &Value{kind: v.kind, typ: v.typ, impl: v.impl}
	switch v.kind {
	case KindBoolean:
		cp.b = v.b
	case KindInt:
		cp.i = v.i
	case KindFloat:
		cp.f = v.f
	case KindDatetime:
		cp.dt = v.dt
	case KindBytes:
		cp.bs = append([]byte(nil), v.bs...)
	case KindTuple:
		cp.tup = make(map[string]*Value, len(v.tup))
		cp.tupOrder = append([]string(nil), v.tupOrder...)
		for n, av := range v.tup {
			cp.tup[n] = DeepCopy(av)
		}
	case KindArray:
		cp.arr = make([]*Value, len(v.arr))
		for i, e := range v.arr {
			cp.arr[i] = DeepCopy(e)
		}
	case KindRelation:
		cp.rel = v.rel
	}
	return cp
}

// DupNonscalar implements the sharing rule from spec §3.4: scalar values
// are returned as-is (the caller is expected to treat them as copy-on-write
// at the primitive level, which Go's value semantics above already give
// us), while composite (tuple/array/relation-handle) values are deep-copied
// except that a relation handle's underlying relation is shared, not
// cloned — only the handle is duplicated.
func DupNonscalar(v *Value) *Value {
	switch v.kind {
	case KindTuple, KindArray:
		return DeepCopy(v)
	case KindRelation:
		return &Value{kind: KindRelation, typ: v.typ, rel: v.rel}
	default:
		return v
	}
}

// Destroy recursively releases v's owned sub-values. Go's garbage collector
// reclaims the memory; Destroy exists so callers mirror the original
// explicit-destroy discipline and so any future non-GC-backed resource
// (e.g. a relation handle pinning a cursor) has a place to release itself.
func Destroy(v *Value) {
	if v == nil {
		return
	}
	switch v.kind {
	case KindTuple:
		for _, av := range v.tup {
			Destroy(av)
		}
	case KindArray:
		for _, e := range v.arr {
			Destroy(e)
		}
	}
	*v = Value{}
}

// Equals reports structural equality between two values of the same kind.
// Values of different kinds are never equal.
func Equals(a, b *Value) (bool, error) {
	if a.kind != b.kind {
		return false, nil
	}
	switch a.kind {
	case KindUnit:
		return true, nil
	case KindBoolean:
		return a.b == b.b, nil
	case KindInt:
		return a.i == b.i, nil
	case KindFloat:
		return a.f == b.f, nil
	case KindDatetime:
		return a.dt == b.dt, nil
	case KindBytes:
		return string(a.bs) == string(b.bs), nil
	case KindTuple:
		return TupleEquals(a, b)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false, nil
		}
		for i := range a.arr {
			eq, err := Equals(a.arr[i], b.arr[i])
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	case KindRelation:
		return a.rel == b.rel, nil
	default:
		return false, nil
	}
}

// SetRelation attaches a relation handle to v.
func SetRelation(v *Value, r Relation) {
	*v = Value{kind: KindRelation, typ: v.typ, rel: r}
}

// GetRelation reads v's relation handle.
func GetRelation(v *Value) (Relation, error) {
	if v.kind != KindRelation {
		return nil, &ErrTypeMismatch{KindRelation, v.kind}
	}
	return v.rel, nil
}
