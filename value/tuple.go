package value

// NewTuple constructs an empty tuple value.
func NewTuple() *Value {
	return &Value{kind: KindTuple, tup: make(map[string]*Value)}
}

// TupleSet sets (or replaces) the attribute named n to v within t, copying
// v so that later mutation of the caller's value does not alias the
// tuple's storage.
func TupleSet(t *Value, n string, v *Value) error {
	if t.kind != KindTuple {
		return &ErrTypeMismatch{KindTuple, t.kind}
	}
	if t.tup == nil {
		t.tup = make(map[string]*Value)
	}
	if _, exists := t.tup[n]; !exists {
		t.tupOrder = append(t.tupOrder, n)
	}
	t.tup[n] = DeepCopy(v)
	return nil
}

// TupleGet returns the attribute named n of t. It returns ErrNotFound if
// no such attribute exists, matching spec §4.1.
func TupleGet(t *Value, n string) (*Value, error) {
	if t.kind != KindTuple {
		return nil, &ErrTypeMismatch{KindTuple, t.kind}
	}
	v, ok := t.tup[n]
	if !ok {
		return nil, &ErrNotFound{What: "attribute " + n}
	}
	return v, nil
}

// TupleAttrs enumerates the attribute names of t in the order they were
// first set.
func TupleAttrs(t *Value) ([]string, error) {
	if t.kind != KindTuple {
		return nil, &ErrTypeMismatch{KindTuple, t.kind}
	}
	out := make([]string, len(t.tupOrder))
	copy(out, t.tupOrder)
	return out, nil
}

// TupleLen returns the number of attributes in t.
func TupleLen(t *Value) (int, error) {
	if t.kind != KindTuple {
		return 0, &ErrTypeMismatch{KindTuple, t.kind}
	}
	return len(t.tupOrder), nil
}

// TupleEquals reports whether two tuples have the same attribute names,
// each mapping to an equal value (structural equality, per spec §4.2).
func TupleEquals(a, b *Value) (bool, error) {
	if a.kind != KindTuple || b.kind != KindTuple {
		return false, &ErrTypeMismatch{KindTuple, a.kind}
	}
	if len(a.tup) != len(b.tup) {
		return false, nil
	}
	for n, av := range a.tup {
		bv, ok := b.tup[n]
		if !ok {
			return false, nil
		}
		eq, err := Equals(av, bv)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}
