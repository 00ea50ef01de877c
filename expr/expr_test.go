package expr

import (
	"testing"

	"reld/builtin"
	"reld/opregistry"
	"reld/rtype"
	"reld/value"
)

type fakeTable struct {
	name    string
	heading rtype.Handle
}

func (f *fakeTable) Name() string          { return f.name }
func (f *fakeTable) Heading() rtype.Handle { return f.heading }

func intLiteral(v int64) *Literal {
	val := value.New()
	value.SetInt(val, v)
	return &Literal{Value: val}
}

func TestIsConstantTrueForLiteralOnlySubtree(t *testing.T) {
	e := &OpApply{Op: "+", Args: []Node{intLiteral(1), intLiteral(2)}}
	if !IsConstant(e) {
		t.Fatalf("expected constant expression")
	}
}

func TestIsConstantFalseWhenVarRefPresent(t *testing.T) {
	e := &OpApply{Op: "+", Args: []Node{intLiteral(1), &VarRef{Name: "x"}}}
	if IsConstant(e) {
		t.Fatalf("expected non-constant expression")
	}
}

func TestResolveVarnamesSubstitutesAndDeepCopies(t *testing.T) {
	e := &OpApply{Op: "+", Args: []Node{&VarRef{Name: "x"}, intLiteral(1)}}
	repl := intLiteral(41)
	out := ResolveVarnames(e, map[string]Node{"x": repl})

	app := out.(*OpApply)
	lit := app.Args[0].(*Literal)
	got, err := value.Int(lit.Value)
	if err != nil || got != 41 {
		t.Fatalf("expected substituted literal value 41, got %d (err %v)", got, err)
	}
	// mutate the replacement's source value: the substituted copy must not alias it.
	value.SetInt(repl.Value, 999)
	got, err = value.Int(lit.Value)
	if err != nil || got != 41 {
		t.Fatalf("expected substitution to be independently copied, got %d (err %v)", got, err)
	}
}

func TestRefersToFindsTableInSubtree(t *testing.T) {
	tbl := &fakeTable{name: "t", heading: rtype.HandleNone}
	e := &AttrAccess{Arg: &TableRef{Table: tbl}, Attr: "a"}
	if !RefersTo(e, tbl) {
		t.Fatalf("expected RefersTo to find table")
	}
	other := &fakeTable{name: "u", heading: rtype.HandleNone}
	if RefersTo(e, other) {
		t.Fatalf("expected RefersTo to reject unrelated table")
	}
}

func TestDependsOnFindsSubexpressionByIdentity(t *testing.T) {
	inner := intLiteral(1)
	e := &OpApply{Op: "+", Args: []Node{inner, intLiteral(2)}}
	if !DependsOn(e, inner) {
		t.Fatalf("expected DependsOn to find inner node by identity")
	}
	if DependsOn(e, intLiteral(1)) {
		t.Fatalf("expected DependsOn to reject a structurally-equal but distinct node")
	}
}

func TestRefersToVarRecursesThroughOperatorApplication(t *testing.T) {
	e := &OpApply{Op: "+", Args: []Node{&VarRef{Name: "x"}, intLiteral(2)}}
	if !RefersToVar(e, "x") {
		t.Fatalf("expected RefersToVar to find x")
	}
	if RefersToVar(e, "y") {
		t.Fatalf("expected RefersToVar to reject y")
	}
}

func TestTypeOfInfersOperatorApplicationReturnType(t *testing.T) {
	store := rtype.NewStore()
	reg := opregistry.New(store)
	builtin.RegisterAll(reg)

	e := &OpApply{Op: "+", Args: []Node{intLiteral(1), intLiteral(2)}}
	for _, a := range e.Args {
		a.(*Literal).Value.SetType(store.Get(rtype.HandleInteger))
	}
	h, err := TypeOf(store, reg, e)
	if err != nil {
		t.Fatalf("TypeOf: %v", err)
	}
	if h != rtype.HandleInteger {
		t.Fatalf("expected integer return type, got %v", h)
	}
}

func TestTypeOfAttrAccessResolvesTupleAttribute(t *testing.T) {
	store := rtype.NewStore()
	tt := &rtype.Type{Kind: rtype.KindTuple, Attrs: []rtype.Attr{{Name: "a", Type: rtype.HandleInteger}}}
	h := store.Add(tt)

	val := value.NewTuple()
	val.SetType(store.Get(h))
	e := &AttrAccess{Arg: &Literal{Value: val}, Attr: "a"}

	reg := opregistry.New(store)
	got, err := TypeOf(store, reg, e)
	if err != nil {
		t.Fatalf("TypeOf: %v", err)
	}
	if got != rtype.HandleInteger {
		t.Fatalf("expected integer attribute type, got %v", got)
	}
}

func TestTypeOfAttrAccessUnknownAttributeIsNotFound(t *testing.T) {
	store := rtype.NewStore()
	tt := &rtype.Type{Kind: rtype.KindTuple, Attrs: []rtype.Attr{{Name: "a", Type: rtype.HandleInteger}}}
	h := store.Add(tt)

	val := value.NewTuple()
	val.SetType(store.Get(h))
	e := &AttrAccess{Arg: &Literal{Value: val}, Attr: "missing"}

	reg := opregistry.New(store)
	_, err := TypeOf(store, reg, e)
	if err == nil {
		t.Fatalf("expected not_found error for missing attribute")
	}
}

func TestDuplicateOpApplyDeepCopiesOptInfo(t *testing.T) {
	objv := value.New()
	value.SetInt(objv, 7)
	e := &OpApply{
		Op:   "=",
		Args: []Node{&VarRef{Name: "x"}, intLiteral(7)},
		OptInfo: &OptInfo{
			Objv:  []*value.Value{objv},
			AllEq: true,
		},
	}
	dup := e.Duplicate().(*OpApply)
	value.SetInt(dup.OptInfo.Objv[0], 99)
	got, err := value.Int(e.OptInfo.Objv[0])
	if err != nil || got != 7 {
		t.Fatalf("expected OptInfo.Objv to be independently duplicated, got %d (err %v)", got, err)
	}
}
