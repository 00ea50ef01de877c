package rtype

// Equal implements the structural-equality contract of spec §4.2: scalar
// types are equal iff both names are equal; tuple equality is
// attribute-set equality with types; relation/array equality reduces to
// their component type's equality; operator types compare signatures.
func Equal(s *Store, a, b Handle) bool {
	if a == b {
		return true
	}
	ta, tb := s.Get(a), s.Get(b)
	if ta == nil || tb == nil || ta.Kind != tb.Kind {
		return false
	}
	switch ta.Kind {
	case KindScalar:
		return ta.Name != "" && ta.Name == tb.Name
	case KindTuple:
		if len(ta.Attrs) != len(tb.Attrs) {
			return false
		}
		bByName := make(map[string]Handle, len(tb.Attrs))
		for _, a := range tb.Attrs {
			bByName[a.Name] = a.Type
		}
		for _, attr := range ta.Attrs {
			bh, ok := bByName[attr.Name]
			if !ok || !Equal(s, attr.Type, bh) {
				return false
			}
		}
		return true
	case KindRelation:
		return Equal(s, ta.Heading, tb.Heading)
	case KindArray:
		return Equal(s, ta.Elem, tb.Elem)
	case KindOperator:
		if len(ta.Params) != len(tb.Params) {
			return false
		}
		for i := range ta.Params {
			if !Equal(s, ta.Params[i], tb.Params[i]) {
				return false
			}
		}
		return Equal(s, ta.Returns, tb.Returns)
	default:
		return false
	}
}

// supertypesOf returns the declared supertype edges of h (one hop).
func (s *Store) supertypesOf(h Handle) []Handle {
	t := s.Get(h)
	if t == nil {
		return nil
	}
	return t.Supertypes
}

// SubtypeOf computes the transitive closure of the declared supertype
// edges (spec §3.3): reflexive and transitive by construction.
func SubtypeOf(s *Store, sub, super Handle) bool {
	if sub == super {
		return true
	}
	visited := map[Handle]bool{sub: true}
	queue := []Handle{sub}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range s.supertypesOf(cur) {
			if next == super {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// SharesSubtype reports whether some scalar type is a subtype of both a
// and b, used for operator-resolution feasibility per spec §3.3.
func SharesSubtype(s *Store, a, b Handle) bool {
	if a == b {
		return true
	}
	for h := range allScalarHandles(s) {
		if SubtypeOf(s, h, a) && SubtypeOf(s, h, b) {
			return true
		}
	}
	return false
}

func allScalarHandles(s *Store) map[Handle]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Handle]struct{})
	for i, t := range s.types {
		if t != nil && t.Kind == KindScalar {
			out[Handle(i)] = struct{}{}
		}
	}
	return out
}

// Matches implements spec §4.2's `matches(actual, expected)`: for a
// generic expected tuple/relation type, every named attribute of expected
// must exist in actual with an equal type; otherwise it falls back to
// SubtypeOf(actual, expected).
func Matches(s *Store, actual, expected Handle) bool {
	et := s.Get(expected)
	at := s.Get(actual)
	if et == nil || at == nil {
		return false
	}

	if et.Kind == KindTuple && et.IsGenericTuple() && at.Kind == KindTuple {
		return tupleMatchesGeneric(s, at, et)
	}
	if et.Kind == KindRelation && at.Kind == KindRelation {
		eh, ah := s.Get(et.Heading), s.Get(at.Heading)
		if eh != nil && eh.IsGenericTuple() && ah != nil {
			return tupleMatchesGeneric(s, ah, eh)
		}
	}
	return SubtypeOf(s, actual, expected)
}

func tupleMatchesGeneric(s *Store, actual, expected *Type) bool {
	for _, ea := range expected.Attrs {
		if ea.Name == "" {
			continue
		}
		ah, ok := actual.AttrType(ea.Name)
		if !ok || !Equal(s, ah, ea.Type) {
			return false
		}
	}
	return true
}
