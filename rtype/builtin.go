package rtype

// registerBuiltins installs the built-in scalar types at their sentinel
// handles (spec §9: "Scalar built-ins live at well-known sentinel
// handles"). It is called once by NewStore.
func (s *Store) registerBuiltins() {
	builtins := []struct {
		h       Handle
		name    string
		ordered bool
		ireplen int
	}{
		{HandleBoolean, "boolean", true, 1},
		{HandleInteger, "integer", true, 8},
		{HandleFloat, "float", true, 8},
		{HandleDatetime, "datetime", true, 7},
		{HandleString, "string", true, -1},
		{HandleBinary, "binary", false, -1},
	}
	for _, b := range builtins {
		t := &Type{
			Name: b.name,
			Kind: KindScalar,
			Locked: true,
			Flags: ScalarFlags{
				Builtin:           true,
				Ordered:           b.ordered,
				SystemImplemented: true,
			},
			Ireplen:      b.ireplen,
			IreplenFixed: b.ireplen >= 0,
		}
		if b.ordered {
			t.CompareOp = "="
		}
		got := s.alloc(t)
		if got != b.h {
			panic("rtype: builtin sentinel handle mismatch")
		}
		s.byName[b.name] = b.h
	}
}
