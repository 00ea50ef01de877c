package value

import "testing"

func TestTupleSetGetLaw(t *testing.T) {
	tup := NewTuple()
	v := New()
	SetInt(v, 42)
	if err := TupleSet(tup, "a", v); err != nil {
		t.Fatalf("TupleSet: %v", err)
	}
	m := New()
	SetInt(m, 7)
	if err := TupleSet(tup, "b", m); err != nil {
		t.Fatalf("TupleSet: %v", err)
	}

	got, err := TupleGet(tup, "a")
	if err != nil {
		t.Fatalf("TupleGet(a): %v", err)
	}
	gi, _ := Int(got)
	if gi != 42 {
		t.Fatalf("TupleGet(a) = %d, want 42", gi)
	}

	// tuple_get(tuple_set(t, n, v), m) == tuple_get(t, m) when m != n
	gotB, err := TupleGet(tup, "b")
	if err != nil {
		t.Fatalf("TupleGet(b): %v", err)
	}
	gb, _ := Int(gotB)
	if gb != 7 {
		t.Fatalf("unrelated attribute b mutated: got %d, want 7", gb)
	}
}

func TestArraySetGetLaw(t *testing.T) {
	a := NewArray()
	if err := ArraySetLen(a, 3); err != nil {
		t.Fatalf("ArraySetLen: %v", err)
	}
	v := New()
	SetBool(v, true)
	if err := ArraySet(a, 1, v); err != nil {
		t.Fatalf("ArraySet: %v", err)
	}
	got, err := ArrayGet(a, 1)
	if err != nil {
		t.Fatalf("ArrayGet: %v", err)
	}
	gb, _ := Bool(got)
	if !gb {
		t.Fatalf("ArrayGet(1) = %v, want true", gb)
	}
}

func TestArrayOutOfRange(t *testing.T) {
	a := NewArray()
	ArraySetLen(a, 1)
	if _, err := ArrayGet(a, 5); err == nil {
		t.Fatalf("expected ErrNotFound for out-of-range index")
	}
}

func TestDeepCopyEquals(t *testing.T) {
	v := New()
	SetBytes(v, []byte("hello"))
	cp := DeepCopy(v)
	eq, err := Equals(cp, v)
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if !eq {
		t.Fatalf("copy(v) != v")
	}
	// Mutate the copy's backing array and ensure v is unaffected.
	AppendByte(cp, '!')
	eq2, _ := Equals(cp, v)
	if eq2 {
		t.Fatalf("copy aliases original storage")
	}
}

func TestMissingAttributeIsNotFound(t *testing.T) {
	tup := NewTuple()
	_, err := TupleGet(tup, "missing")
	if _, ok := err.(*ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTypeMismatchOnWrongFamily(t *testing.T) {
	v := New()
	SetInt(v, 1)
	if _, err := Bool(v); err == nil {
		t.Fatalf("expected ErrTypeMismatch reading int as bool")
	}
}
