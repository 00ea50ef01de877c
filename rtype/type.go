package rtype

// Kind distinguishes the five type shapes of spec §3.2.
type Kind int

const (
	KindScalar Kind = iota
	KindTuple
	KindRelation
	KindArray
	KindOperator
)

// Attr is a named, typed heading slot (spec GLOSSARY: "Attribute"). An
// empty Name denotes the generic-tuple-type sentinel described in spec
// §3.2 ("Tuple: ... names may be absent ... to denote a generic tuple
// type").
type Attr struct {
	Name string
	Type Handle
}

// Possrep is one possible representation of a scalar type: a name plus
// its typed component slots (spec GLOSSARY: "Possrep").
type Possrep struct {
	Name       string
	Components []Attr
}

// ScalarFlags packs the {builtin, ordered, system-implemented, dummy} flag
// set from spec §3.2.
type ScalarFlags struct {
	Builtin         bool
	Ordered         bool
	SystemImplemented bool
	Dummy           bool
}

// Type is the union of the five type shapes. Only the fields relevant to
// Kind are meaningful; the rest are zero.
type Type struct {
	handle Handle
	Name   string
	Kind   Kind
	Locked bool // never freed even at zero refcount; used for built-ins

	// --- scalar ---
	Flags       ScalarFlags
	CompareOp   string // name of the comparison operator, if any
	IreplenFixed bool
	Ireplen     int // internal representation length; -1 means variable
	Possreps    []Possrep
	ActualRep   Handle // actual-representation type, for piggy-back user types
	// Constraint and InitExpr hold expr.Node values. rtype does not import
	// package expr (which itself needs type handles), so the cycle is
	// broken by storing these as opaque interface{} — the arena technique
	// of spec §9 applied one level up: types reference expressions
	// opaquely, expressions reference types by Handle.
	Constraint interface{}
	InitExpr   interface{}
	InitValue  interface{} // precomputed initial value, opaque to rtype
	Supertypes  []Handle
	Subtypes    []Handle
	Cleanup     func()

	// --- tuple ---
	Attrs []Attr // unique names; a zero-value Name entry marks a generic slot

	// --- relation ---
	Heading Handle // handle of a Kind==KindTuple Type

	// --- array ---
	Elem Handle

	// --- operator ---
	Params  []Handle
	Returns Handle // HandleNone if the operator returns nothing
}

// Handle returns the type's own handle within the Store that created it.
func (t *Type) Handle() Handle { return t.handle }

// IsGenericTuple reports whether t is a tuple type carrying at least one
// unnamed attribute slot, matching any heading that provides the named
// attributes with the declared types (spec GLOSSARY: "Generic type").
func (t *Type) IsGenericTuple() bool {
	if t.Kind != KindTuple {
		return false
	}
	for _, a := range t.Attrs {
		if a.Name == "" {
			return true
		}
	}
	return false
}

// AttrType returns the type handle of the named attribute, or HandleNone
// with ok=false if no such attribute exists.
func (t *Type) AttrType(name string) (Handle, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Type, true
		}
	}
	return HandleNone, false
}
