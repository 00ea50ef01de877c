package rtype

import "testing"

func TestMatchesReflexive(t *testing.T) {
	s := NewStore()
	if !Matches(s, HandleInteger, HandleInteger) {
		t.Fatalf("matches(tau, tau) must hold")
	}
}

func TestSubtypeOfReflexiveAndTransitive(t *testing.T) {
	s := NewStore()
	alpha := s.Add(&Type{Name: "alpha", Kind: KindScalar})
	beta := s.Add(&Type{Name: "beta", Kind: KindScalar, Supertypes: []Handle{alpha}})
	gamma := s.Add(&Type{Name: "gamma", Kind: KindScalar, Supertypes: []Handle{beta}})

	if !SubtypeOf(s, alpha, alpha) {
		t.Fatalf("subtype_of(tau, tau) must hold")
	}
	if !SubtypeOf(s, gamma, alpha) {
		t.Fatalf("subtype_of must be transitive: gamma -> beta -> alpha")
	}
	if SubtypeOf(s, alpha, gamma) {
		t.Fatalf("subtype_of must not hold in the wrong direction")
	}
}

func TestProjectRejectsUnknownAttribute(t *testing.T) {
	s := NewStore()
	tup := s.Add(&Type{Kind: KindTuple, Attrs: []Attr{
		{Name: "a", Type: HandleInteger},
		{Name: "b", Type: HandleString},
	}})
	if _, err := Project(s, tup, []string{"a", "c"}); err == nil {
		t.Fatalf("expected ErrAttributeNotFound for unknown attribute c")
	}
	h, err := Project(s, tup, []string{"a"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	pt := s.Get(h)
	if len(pt.Attrs) != 1 || pt.Attrs[0].Name != "a" {
		t.Fatalf("unexpected projected heading: %+v", pt.Attrs)
	}
}

func TestExtendRejectsCollision(t *testing.T) {
	s := NewStore()
	tup := s.Add(&Type{Kind: KindTuple, Attrs: []Attr{{Name: "a", Type: HandleInteger}}})
	if _, err := Extend(s, tup, []Attr{{Name: "a", Type: HandleFloat}}); err == nil {
		t.Fatalf("expected ErrAttributeCollision extending with an existing name")
	}
}

func TestWrapGroupTargetCollision(t *testing.T) {
	s := NewStore()
	tup := s.Add(&Type{Kind: KindTuple, Attrs: []Attr{
		{Name: "a", Type: HandleInteger},
		{Name: "b", Type: HandleInteger},
	}})
	if _, err := Wrap(s, tup, []string{"a"}, "b"); err == nil {
		t.Fatalf("expected collision wrapping into an existing surviving attribute name")
	}
	if _, err := Group(s, tup, []string{"a"}, "b"); err == nil {
		t.Fatalf("expected collision grouping into an existing surviving attribute name")
	}
}

func TestGenericTupleMatches(t *testing.T) {
	s := NewStore()
	generic := s.Add(&Type{Kind: KindTuple, Attrs: []Attr{{Name: "a", Type: HandleInteger}, {Name: "", Type: HandleNone}}})
	concrete := s.Add(&Type{Kind: KindTuple, Attrs: []Attr{
		{Name: "a", Type: HandleInteger},
		{Name: "b", Type: HandleString},
	}})
	if !Matches(s, concrete, generic) {
		t.Fatalf("concrete tuple with extra attribute b should match generic expecting only a")
	}
}

func TestMultiPossrepRequiresComparisonWhenOrdered(t *testing.T) {
	bad := &Type{
		Kind:  KindScalar,
		Flags: ScalarFlags{Ordered: true, SystemImplemented: true},
		Possreps: []Possrep{
			{Name: "polar"}, {Name: "cartesian"},
		},
	}
	if err := IsValidScalar(bad); err == nil {
		t.Fatalf("expected ordered multi-possrep type without compare op to be invalid")
	}
	bad.CompareOp = "<"
	if err := IsValidScalar(bad); err != nil {
		t.Fatalf("expected valid once a comparison operator is declared: %v", err)
	}
}
