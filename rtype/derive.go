package rtype

import "fmt"

// ErrAttributeCollision is raised by derived-type constructors that would
// otherwise produce a heading with a duplicate attribute name.
type ErrAttributeCollision struct{ Name string }

func (e *ErrAttributeCollision) Error() string {
	return fmt.Sprintf("attribute collision: %s", e.Name)
}

// ErrAttributeNotFound is raised when a named attribute does not exist in
// the heading a derived-type constructor is operating on.
type ErrAttributeNotFound struct{ Name string }

func (e *ErrAttributeNotFound) Error() string {
	return fmt.Sprintf("attribute not found: %s", e.Name)
}

func tupleOf(s *Store, h Handle) (*Type, error) {
	t := s.Get(h)
	if t == nil || t.Kind != KindTuple {
		return nil, fmt.Errorf("rtype: handle %d is not a tuple type", h)
	}
	return t, nil
}

// Project returns the tuple type containing exactly the named attributes
// of base. Every name must exist in base (spec §4.2: "all named
// attributes exist").
func Project(s *Store, base Handle, names []string) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	attrs := make([]Attr, 0, len(names))
	for _, n := range names {
		at, ok := bt.AttrType(n)
		if !ok {
			return HandleNone, &ErrAttributeNotFound{n}
		}
		attrs = append(attrs, Attr{Name: n, Type: at})
	}
	return s.Add(&Type{Kind: KindTuple, Attrs: attrs}), nil
}

// Extend returns base's heading extended with the given attributes. Every
// new name must not already appear in base's heading.
func Extend(s *Store, base Handle, added []Attr) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	attrs := append([]Attr(nil), bt.Attrs...)
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		seen[a.Name] = true
	}
	for _, a := range added {
		if seen[a.Name] {
			return HandleNone, &ErrAttributeCollision{a.Name}
		}
		seen[a.Name] = true
		attrs = append(attrs, a)
	}
	return s.Add(&Type{Kind: KindTuple, Attrs: attrs}), nil
}

// Rename renames attributes of base per the (from, to) pairs in renaming.
// Every "from" name must exist and no "to" name may collide with a
// surviving attribute.
func Rename(s *Store, base Handle, renaming map[string]string) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	attrs := make([]Attr, len(bt.Attrs))
	copy(attrs, bt.Attrs)
	finalNames := make(map[string]bool, len(attrs))
	for i, a := range attrs {
		name := a.Name
		if to, ok := renaming[name]; ok {
			name = to
		}
		attrs[i].Name = name
		if finalNames[name] {
			return HandleNone, &ErrAttributeCollision{name}
		}
		finalNames[name] = true
	}
	for from := range renaming {
		if _, ok := bt.AttrType(from); !ok {
			return HandleNone, &ErrAttributeNotFound{from}
		}
	}
	return s.Add(&Type{Kind: KindTuple, Attrs: attrs}), nil
}

// Union returns the attribute-union of a and b: every attribute of a and
// b, where attributes that appear in both must have equal types (compatible
// overlap, spec §4.2).
func Union(s *Store, a, b Handle) (Handle, error) {
	at, err := tupleOf(s, a)
	if err != nil {
		return HandleNone, err
	}
	bt, err := tupleOf(s, b)
	if err != nil {
		return HandleNone, err
	}
	attrs := append([]Attr(nil), at.Attrs...)
	byName := make(map[string]Handle, len(attrs))
	for _, a := range attrs {
		byName[a.Name] = a.Type
	}
	for _, battr := range bt.Attrs {
		if existing, ok := byName[battr.Name]; ok {
			if !Equal(s, existing, battr.Type) {
				return HandleNone, &ErrAttributeCollision{battr.Name}
			}
			continue
		}
		byName[battr.Name] = battr.Type
		attrs = append(attrs, battr)
	}
	return s.Add(&Type{Kind: KindTuple, Attrs: attrs}), nil
}

// Join returns the relation-of-union type: the tuple type resulting from
// Union applied to the two relations' headings (spec §4.2: "join (=
// relation-of-union)").
func Join(s *Store, a, b Handle) (Handle, error) {
	ra, rb := s.Get(a), s.Get(b)
	if ra == nil || rb == nil || ra.Kind != KindRelation || rb.Kind != KindRelation {
		return HandleNone, fmt.Errorf("rtype: Join requires two relation types")
	}
	heading, err := Union(s, ra.Heading, rb.Heading)
	if err != nil {
		return HandleNone, err
	}
	return s.Add(&Type{Kind: KindRelation, Heading: heading}), nil
}

// Wrap replaces the named attributes of base with a single tuple-valued
// attribute called attrname, wrapping their values. attrname must not
// already be among the surviving (non-wrapped) attributes.
func Wrap(s *Store, base Handle, wrapped []string, attrname string) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	wrappedSet := make(map[string]bool, len(wrapped))
	for _, n := range wrapped {
		wrappedSet[n] = true
	}
	var inner []Attr
	var surviving []Attr
	for _, a := range bt.Attrs {
		if wrappedSet[a.Name] {
			inner = append(inner, a)
		} else {
			if a.Name == attrname {
				return HandleNone, &ErrAttributeCollision{attrname}
			}
			surviving = append(surviving, a)
		}
	}
	if len(inner) != len(wrapped) {
		for _, n := range wrapped {
			if _, ok := bt.AttrType(n); !ok {
				return HandleNone, &ErrAttributeNotFound{n}
			}
		}
	}
	innerHandle := s.Add(&Type{Kind: KindTuple, Attrs: inner})
	surviving = append(surviving, Attr{Name: attrname, Type: innerHandle})
	return s.Add(&Type{Kind: KindTuple, Attrs: surviving}), nil
}

// Unwrap is the inverse of Wrap: it replaces the tuple-valued attribute
// attrname with its components, which must not collide with the
// surviving attributes.
func Unwrap(s *Store, base Handle, attrname string) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	innerHandle, ok := bt.AttrType(attrname)
	if !ok {
		return HandleNone, &ErrAttributeNotFound{attrname}
	}
	innerType, err := tupleOf(s, innerHandle)
	if err != nil {
		return HandleNone, fmt.Errorf("rtype: Unwrap target %q is not tuple-valued", attrname)
	}
	var surviving []Attr
	seen := make(map[string]bool)
	for _, a := range bt.Attrs {
		if a.Name == attrname {
			continue
		}
		surviving = append(surviving, a)
		seen[a.Name] = true
	}
	for _, a := range innerType.Attrs {
		if seen[a.Name] {
			return HandleNone, &ErrAttributeCollision{a.Name}
		}
		seen[a.Name] = true
		surviving = append(surviving, a)
	}
	return s.Add(&Type{Kind: KindTuple, Attrs: surviving}), nil
}

// Group replaces the named attributes of base's heading with a single
// relation-valued attribute called attrname. attrname must not be among
// the surviving attributes (spec §4.6.1 GROUP target-name invariant).
func Group(s *Store, base Handle, grouped []string, attrname string) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	groupedSet := make(map[string]bool, len(grouped))
	for _, n := range grouped {
		groupedSet[n] = true
	}
	var inner []Attr
	var surviving []Attr
	for _, a := range bt.Attrs {
		if groupedSet[a.Name] {
			inner = append(inner, a)
		} else {
			if a.Name == attrname {
				return HandleNone, &ErrAttributeCollision{attrname}
			}
			surviving = append(surviving, a)
		}
	}
	innerTuple := s.Add(&Type{Kind: KindTuple, Attrs: inner})
	innerRel := s.Add(&Type{Kind: KindRelation, Heading: innerTuple})
	surviving = append(surviving, Attr{Name: attrname, Type: innerRel})
	return s.Add(&Type{Kind: KindTuple, Attrs: surviving}), nil
}

// Ungroup is the inverse of Group: it replaces the relation-valued
// attribute attrname with the attributes of its heading.
func Ungroup(s *Store, base Handle, attrname string) (Handle, error) {
	bt, err := tupleOf(s, base)
	if err != nil {
		return HandleNone, err
	}
	relHandle, ok := bt.AttrType(attrname)
	if !ok {
		return HandleNone, &ErrAttributeNotFound{attrname}
	}
	relType := s.Get(relHandle)
	if relType == nil || relType.Kind != KindRelation {
		return HandleNone, fmt.Errorf("rtype: Ungroup target %q is not relation-valued", attrname)
	}
	innerType, err := tupleOf(s, relType.Heading)
	if err != nil {
		return HandleNone, err
	}
	var surviving []Attr
	seen := make(map[string]bool)
	for _, a := range bt.Attrs {
		if a.Name == attrname {
			continue
		}
		surviving = append(surviving, a)
		seen[a.Name] = true
	}
	for _, a := range innerType.Attrs {
		if seen[a.Name] {
			return HandleNone, &ErrAttributeCollision{a.Name}
		}
		seen[a.Name] = true
		surviving = append(surviving, a)
	}
	return s.Add(&Type{Kind: KindTuple, Attrs: surviving}), nil
}
