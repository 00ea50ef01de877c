package catalog

import (
	"context"
	"testing"

	"reld/builtin"
	"reld/execctx"
	"reld/expr"
	"reld/opregistry"
	"reld/query"
	"reld/record"
	"reld/record/rmem"
	"reld/rtype"
	"reld/value"
)

func floatVal(f float64) *value.Value {
	v := value.New()
	value.SetFloat(v, f)
	return v
}

func mustEnv(t *testing.T) (*query.Env, *Catalog, record.Transaction, func()) {
	t.Helper()
	recEnv := rmem.New()
	if err := recEnv.Create("/test"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store := rtype.NewStore()
	reg := opregistry.New(store)
	builtin.RegisterAll(reg)

	tx, err := recEnv.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	env := &query.Env{Store: store, Reg: reg, RecEnv: recEnv}
	cat, cerr := New(env, tx)
	if cerr != nil {
		t.Fatalf("New catalog: %v", cerr)
	}
	env.Idx = cat
	return env, cat, tx, func() { recEnv.Commit(tx) }
}

func wantErrKind(t *testing.T, err *execctx.Error, kind execctx.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", kind)
	}
	if err.Kind != kind {
		t.Fatalf("expected error kind %s, got %s (%s)", kind, err.Kind, err.Message)
	}
}

func TestCreateTableSynthesizesAllAttributeKey(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "name", Type: rtype.HandleString},
		{Name: "weight", Type: rtype.HandleFloat},
	}
	bt, err := cat.CreateTable(tx, "parts", attrs, nil)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if bt.Name() != "parts" {
		t.Errorf("expected table name parts, got %s", bt.Name())
	}
	if _, ok := cat.Table("parts"); !ok {
		t.Error("expected parts to be registered in the in-memory table index")
	}

	// No key was declared, so inserting two tuples identical on every
	// attribute should violate the synthesized all-attribute key on the
	// second insert.
	t1 := value.NewTuple()
	value.TupleSet(t1, "name", strVal("bolt"))
	value.TupleSet(t1, "weight", floatVal(1.5))
	if ierr := bt.Insert(tx, t1); ierr != nil {
		t.Fatalf("first insert: %v", ierr)
	}
	t2 := value.NewTuple()
	value.TupleSet(t2, "name", strVal("bolt"))
	value.TupleSet(t2, "weight", floatVal(1.5))
	ierr := bt.Insert(tx, t2)
	wantErrKind(t, ierr, execctx.ErrKeyViolation)
	_ = env
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	_, cat, tx, done := mustEnv(t)
	defer done()

	attrs := []rtype.Attr{{Name: "id", Type: rtype.HandleInteger}}
	if _, err := cat.CreateTable(tx, "widgets", attrs, [][]string{{"id"}}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	_, err := cat.CreateTable(tx, "widgets", attrs, [][]string{{"id"}})
	wantErrKind(t, err, execctx.ErrElementExists)
}

func TestCreateTableEnforcesDeclaredKey(t *testing.T) {
	_, cat, tx, done := mustEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "sno", Type: rtype.HandleString},
		{Name: "sname", Type: rtype.HandleString},
	}
	bt, err := cat.CreateTable(tx, "suppliers", attrs, [][]string{{"sno"}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	t1 := value.NewTuple()
	value.TupleSet(t1, "sno", strVal("S1"))
	value.TupleSet(t1, "sname", strVal("Smith"))
	if ierr := bt.Insert(tx, t1); ierr != nil {
		t.Fatalf("first insert: %v", ierr)
	}

	t2 := value.NewTuple()
	value.TupleSet(t2, "sno", strVal("S1"))
	value.TupleSet(t2, "sname", strVal("Jones"))
	ierr := bt.Insert(tx, t2)
	wantErrKind(t, ierr, execctx.ErrKeyViolation)
}

func TestDropTableRemovesFromIndex(t *testing.T) {
	_, cat, tx, done := mustEnv(t)
	defer done()

	attrs := []rtype.Attr{{Name: "id", Type: rtype.HandleInteger}}
	if _, err := cat.CreateTable(tx, "temp", attrs, [][]string{{"id"}}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.DropTable(tx, "temp"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, ok := cat.Table("temp"); ok {
		t.Error("expected temp to be removed from the in-memory table index")
	}
	if err := cat.DropTable(tx, "temp"); err == nil {
		t.Error("expected dropping an already-dropped table to fail")
	}
}

func TestCreateIndexRoundTripsThroughIndexesOf(t *testing.T) {
	_, cat, tx, done := mustEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "sno", Type: rtype.HandleString},
		{Name: "pno", Type: rtype.HandleString},
	}
	if _, err := cat.CreateTable(tx, "shipments", attrs, [][]string{{"sno", "pno"}}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.CreateIndex(tx, "shipments_sno_idx", "shipments", []string{"sno"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	infos := cat.IndexesOf("shipments")
	if len(infos) != 1 || infos[0].Name != "shipments_sno_idx" {
		t.Fatalf("expected one index named shipments_sno_idx, got %+v", infos)
	}
	if len(infos[0].Attrs) != 1 || infos[0].Attrs[0] != "sno" {
		t.Fatalf("unexpected index attrs: %+v", infos[0].Attrs)
	}

	if err := cat.DropIndex(tx, "shipments_sno_idx"); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	if infos := cat.IndexesOf("shipments"); len(infos) != 0 {
		t.Fatalf("expected no indexes after DropIndex, got %+v", infos)
	}
}

func TestCreateIndexRejectsUnknownTable(t *testing.T) {
	_, cat, tx, done := mustEnv(t)
	defer done()

	err := cat.CreateIndex(tx, "ghost_idx", "ghost", []string{"id"})
	wantErrKind(t, err, execctx.ErrNotFound)
}

func TestCreateScalarTypeRegistersPossreps(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	possreps := []rtype.Possrep{
		{Name: "point", Components: []rtype.Attr{
			{Name: "x", Type: rtype.HandleFloat},
			{Name: "y", Type: rtype.HandleFloat},
		}},
	}
	h, err := cat.CreateScalarType(tx, env.Reg, "point2d", possreps, rtype.ScalarFlags{Ordered: false}, nil, nil)
	if err != nil {
		t.Fatalf("CreateScalarType: %v", err)
	}
	if h == rtype.HandleNone {
		t.Fatal("expected a non-zero handle for the new type")
	}
	if _, err := cat.CreateScalarType(tx, env.Reg, "point2d", possreps, rtype.ScalarFlags{}, nil, nil); err == nil {
		t.Error("expected redefining point2d to fail")
	}
}

// TestCreateScalarTypeAutoRegistersSelectorGetterSetter exercises
// query.EvalScalar's ComponentAccess path against a type defined purely
// through the catalog DDL surface, the scenario that previously always
// raised operator_not_found.
func TestCreateScalarTypeAutoRegistersSelectorGetterSetter(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	possreps := []rtype.Possrep{
		{Name: "point", Components: []rtype.Attr{
			{Name: "x", Type: rtype.HandleFloat},
			{Name: "y", Type: rtype.HandleFloat},
		}},
	}
	typeHandle, err := cat.CreateScalarType(tx, env.Reg, "point2d", possreps, rtype.ScalarFlags{}, nil, nil)
	if err != nil {
		t.Fatalf("CreateScalarType: %v", err)
	}

	selector, rerr := env.Reg.Resolve("point", []rtype.Handle{rtype.HandleFloat, rtype.HandleFloat})
	if rerr != nil {
		t.Fatalf("expected a registered point selector, got %v", rerr)
	}
	pointVal, ierr := invokeForTest(env, selector, typedFloat(env, 1.5), typedFloat(env, 2.5))
	if ierr != nil {
		t.Fatalf("invoke selector: %v", ierr)
	}
	pointVal.SetType(env.Store.Get(typeHandle))

	getter, rerr := env.Reg.Resolve("x", []rtype.Handle{typeHandle})
	if rerr != nil {
		t.Fatalf("expected a registered x getter, got %v", rerr)
	}
	xVal, ierr := invokeForTest(env, getter, pointVal)
	if ierr != nil {
		t.Fatalf("invoke getter: %v", ierr)
	}
	x, ferr := value.Float(xVal)
	if ferr != nil || x != 1.5 {
		t.Fatalf("expected x component 1.5, got %v (%v)", x, ferr)
	}

	setter, rerr := env.Reg.Resolve("set_x", []rtype.Handle{typeHandle, rtype.HandleFloat})
	if rerr != nil {
		t.Fatalf("expected a registered set_x setter, got %v", rerr)
	}
	updated, ierr := invokeForTest(env, setter, pointVal, typedFloat(env, 9))
	if ierr != nil {
		t.Fatalf("invoke setter: %v", ierr)
	}
	updated.SetType(env.Store.Get(typeHandle))
	newX, ierr := invokeForTest(env, getter, updated)
	if ierr != nil {
		t.Fatalf("invoke getter after setter: %v", ierr)
	}
	nx, _ := value.Float(newX)
	if nx != 9 {
		t.Fatalf("expected x component 9 after set_x, got %v", nx)
	}
}

// TestCreateScalarTypeRejectsConstraintViolatingInitValue exercises
// spec §8.3's type-definition-time boundary behavior, grounded in the
// original engine's own DEFINE TYPE test (test_deftype.c): the
// constraint expression binds the candidate value to a variable named
// after the type itself and accesses its sole possrep component.
func TestCreateScalarTypeRejectsConstraintViolatingInitValue(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	possreps := []rtype.Possrep{
		{Name: "tinyint", Components: []rtype.Attr{{Name: "tinyint", Type: rtype.HandleInteger}}},
	}
	constraint := &expr.OpApply{
		Op: "<",
		Args: []expr.Node{
			&expr.ComponentAccess{Arg: &expr.VarRef{Name: "tinyint"}, Possrep: "tinyint", Component: "tinyint"},
			&expr.Literal{Value: typedInt(env, 100)},
		},
	}
	tinyintVal := func(i int64) *value.Value {
		t := value.NewTuple()
		value.TupleSet(t, "tinyint", intForTest(i))
		return t
	}

	if _, err := cat.CreateScalarType(tx, env.Reg, "tinyint", possreps, rtype.ScalarFlags{}, constraint, tinyintVal(200)); err == nil {
		t.Fatal("expected an out-of-range initial value to fail type definition")
	} else {
		wantErrKind(t, err, execctx.ErrTypeConstraintViolation)
	}
	if _, ok := env.Store.Lookup("tinyint"); ok {
		t.Error("a rejected type definition must not leave a resolvable type behind")
	}
	if _, rerr := env.Reg.Resolve("tinyint", []rtype.Handle{rtype.HandleInteger}); rerr == nil {
		t.Error("a rejected type definition must not leave its selector registered")
	}

	if _, err := cat.CreateScalarType(tx, env.Reg, "tinyint", possreps, rtype.ScalarFlags{}, constraint, tinyintVal(50)); err != nil {
		t.Fatalf("expected an in-range initial value to succeed, got %v", err)
	}
}

func intForTest(i int64) *value.Value {
	v := value.New()
	value.SetInt(v, i)
	return v
}

func typedInt(env *query.Env, i int64) *value.Value {
	v := intForTest(i)
	v.SetType(env.Store.Get(rtype.HandleInteger))
	return v
}

func typedFloat(env *query.Env, f float64) *value.Value {
	v := floatVal(f)
	v.SetType(env.Store.Get(rtype.HandleFloat))
	return v
}

func invokeForTest(env *query.Env, entry *opregistry.OpEntry, args ...*value.Value) (*value.Value, *execctx.Error) {
	row := value.NewTuple()
	argNodes := make([]expr.Node, len(args))
	for i, a := range args {
		name := "a" + string(rune('0'+i))
		value.TupleSet(row, name, a)
		argNodes[i] = &expr.VarRef{Name: name}
	}
	return query.EvalScalar(env, execctx.NewContext(), row, &expr.OpApply{Op: entry.Name, Args: argNodes})
}

func TestDropTypeFreesNameForRedefinition(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	possreps := []rtype.Possrep{{Name: "wrapped", Components: []rtype.Attr{{Name: "n", Type: rtype.HandleInteger}}}}
	if _, err := cat.CreateScalarType(tx, env.Reg, "wrapped_int", possreps, rtype.ScalarFlags{}, nil, nil); err != nil {
		t.Fatalf("CreateScalarType: %v", err)
	}
	if err := cat.DropType(tx, "wrapped_int"); err != nil {
		t.Fatalf("DropType: %v", err)
	}
	if _, ok := env.Store.Lookup("wrapped_int"); ok {
		t.Error("expected wrapped_int to no longer resolve by name")
	}
	if _, err := cat.CreateScalarType(tx, env.Reg, "wrapped_int", possreps, rtype.ScalarFlags{}, nil, nil); err != nil {
		t.Fatalf("expected wrapped_int to be redefinable after DropType, got %v", err)
	}
	if err := cat.DropType(tx, "ghost_type"); err == nil {
		t.Error("expected dropping an unknown type to fail")
	}
}

func TestDropOperatorRemovesOverload(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	entry := &opregistry.OpEntry{
		Name: "triple", Params: []rtype.Handle{rtype.HandleInteger}, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) { return args[0].(int64) * 3, nil },
	}
	if err := cat.CreateOperator(tx, env.Reg, entry); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if err := cat.DropOperator(tx, env.Reg, "triple", 1); err != nil {
		t.Fatalf("DropOperator: %v", err)
	}
	if _, rerr := env.Reg.Resolve("triple", []rtype.Handle{rtype.HandleInteger}); rerr == nil {
		t.Error("expected triple to no longer resolve after DropOperator")
	}
	if err := cat.DropOperator(tx, env.Reg, "triple", 1); err == nil {
		t.Error("expected dropping an already-dropped operator to fail")
	}
}

func TestCreateOperatorRegistersInRegistry(t *testing.T) {
	env, cat, tx, done := mustEnv(t)
	defer done()

	entry := &opregistry.OpEntry{
		Name:    "double",
		Params:  []rtype.Handle{rtype.HandleInteger},
		Returns: rtype.HandleInteger,
		Kind:    opregistry.KindNative,
		Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
			return args[0].(int64) * 2, nil
		},
	}
	if err := cat.CreateOperator(tx, env.Reg, entry); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if _, rerr := env.Reg.Resolve("double", []rtype.Handle{rtype.HandleInteger}); rerr != nil {
		t.Errorf("expected double to resolve after registration, got %v", rerr)
	}
}
