package query

import (
	"context"
	"testing"

	"reld/builtin"
	"reld/execctx"
	"reld/expr"
	"reld/opregistry"
	"reld/record"
	"reld/record/rmem"
	"reld/rtype"
	"reld/value"
)

func mustAlgebraEnv(t *testing.T) (*Env, record.Transaction, func()) {
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
	env := &Env{Store: store, Reg: reg, RecEnv: recEnv}
	return env, tx, func() { recEnv.Commit(tx) }
}

func typedStr(env *Env, s string) *value.Value {
	v := value.New()
	value.SetBytes(v, []byte(s))
	v.SetType(env.Store.Get(rtype.HandleString))
	return v
}

func typedIntVal(env *Env, i int64) *value.Value {
	v := value.New()
	value.SetInt(v, i)
	v.SetType(env.Store.Get(rtype.HandleInteger))
	return v
}

func drainAll(t *testing.T, env *Env, ctx *execctx.Context, tx record.Transaction, node expr.Node) []*value.Value {
	t.Helper()
	qr, _, err := Open(env, ctx, tx, node)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rows, derr := drain(qr)
	if derr != nil {
		t.Fatalf("drain: %v", derr)
	}
	return rows
}

// TestRenameThenWhere covers scenario 2: renaming an attribute and then
// filtering on its new name must see the renamed value, not the original.
func TestRenameThenWhere(t *testing.T) {
	env, tx, done := mustAlgebraEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "name", Type: rtype.HandleString},
		{Name: "dept", Type: rtype.HandleString},
	}
	heading := env.Store.Add(&rtype.Type{Kind: rtype.KindTuple, Attrs: attrs})
	bt, err := NewBaseTable(env, tx, "employees", heading, nil)
	if err != nil {
		t.Fatalf("NewBaseTable: %v", err)
	}
	for _, row := range [][2]string{{"alice", "eng"}, {"bob", "sales"}, {"carol", "eng"}} {
		tup := value.NewTuple()
		value.TupleSet(tup, "name", typedStr(env, row[0]))
		value.TupleSet(tup, "dept", typedStr(env, row[1]))
		if ierr := bt.Insert(tx, tup); ierr != nil {
			t.Fatalf("Insert: %v", ierr)
		}
	}

	renamed := Rename(&expr.TableRef{Table: bt}, RenamePair{From: "dept", To: "department"})
	pred := &expr.OpApply{Op: "=", Args: []expr.Node{
		&expr.VarRef{Name: "department"},
		&expr.Literal{Value: typedStr(env, "eng")},
	}}
	node := Where(renamed, pred)

	rows := drainAll(t, env, execctx.NewContext(), tx, node)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows in eng after rename, got %d", len(rows))
	}
	got := map[string]bool{}
	for _, r := range rows {
		if _, err := value.TupleGet(r, "dept"); err == nil {
			t.Error("renamed row must not still expose the old attribute name")
		}
		dv, gerr := value.TupleGet(r, "department")
		if gerr != nil {
			t.Fatalf("expected renamed attribute department: %v", gerr)
		}
		if b, _ := value.Bytes(dv); string(b) != "eng" {
			t.Errorf("expected department=eng, got %q", b)
		}
		nv, _ := value.TupleGet(r, "name")
		b, _ := value.Bytes(nv)
		got[string(b)] = true
	}
	if !got["alice"] || !got["carol"] {
		t.Errorf("expected alice and carol, got %v", got)
	}
}

// TestSummarizeSum covers scenario 3: grouping rows by one attribute and
// summing another.
func TestSummarizeSum(t *testing.T) {
	env, tx, done := mustAlgebraEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "region", Type: rtype.HandleString},
		{Name: "amount", Type: rtype.HandleInteger},
	}
	heading := env.Store.Add(&rtype.Type{Kind: rtype.KindTuple, Attrs: attrs})
	bt, err := NewBaseTable(env, tx, "orders", heading, nil)
	if err != nil {
		t.Fatalf("NewBaseTable: %v", err)
	}
	rowsIn := []struct {
		region string
		amount int64
	}{
		{"east", 10}, {"east", 20}, {"west", 5},
	}
	for _, r := range rowsIn {
		tup := value.NewTuple()
		value.TupleSet(tup, "region", typedStr(env, r.region))
		value.TupleSet(tup, "amount", typedIntVal(env, r.amount))
		if ierr := bt.Insert(tx, tup); ierr != nil {
			t.Fatalf("Insert: %v", ierr)
		}
	}

	node := Summarize(&expr.TableRef{Table: bt}, []string{"region"},
		AggSpec{Func: "sum", Arg: "amount", As: "total"})

	rows := drainAll(t, env, execctx.NewContext(), tx, node)
	if len(rows) != 2 {
		t.Fatalf("expected 2 grouped rows, got %d", len(rows))
	}
	totals := map[string]int64{}
	for _, r := range rows {
		rv, _ := value.TupleGet(r, "region")
		b, _ := value.Bytes(rv)
		tv, gerr := value.TupleGet(r, "total")
		if gerr != nil {
			t.Fatalf("expected total attribute: %v", gerr)
		}
		i, ierr := value.Int(tv)
		if ierr != nil {
			t.Fatalf("total should be integer-valued: %v", ierr)
		}
		totals[string(b)] = i
	}
	if totals["east"] != 30 {
		t.Errorf("expected east total 30, got %d", totals["east"])
	}
	if totals["west"] != 5 {
		t.Errorf("expected west total 5, got %d", totals["west"])
	}
}

// TestTcloseTransitiveClosure covers scenario 4: the fixpoint over a
// chain a->b->c->d must produce every reachable pair, not just the
// direct edges.
func TestTcloseTransitiveClosure(t *testing.T) {
	env, tx, done := mustAlgebraEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "from", Type: rtype.HandleString},
		{Name: "to", Type: rtype.HandleString},
	}
	tupleHandle := env.Store.Add(&rtype.Type{Kind: rtype.KindTuple, Attrs: attrs})
	tupleType := env.Store.Get(tupleHandle)

	edge := func(from, to string) *value.Value {
		tup := value.NewTuple()
		tup.SetType(tupleType)
		value.TupleSet(tup, "from", typedStr(env, from))
		value.TupleSet(tup, "to", typedStr(env, to))
		return tup
	}
	edges := []*value.Value{edge("a", "b"), edge("b", "c"), edge("c", "d")}

	node := Tclose(RelationLiteral(tupleHandle, edges))
	rows := drainAll(t, env, execctx.NewContext(), tx, node)

	want := map[string]bool{"a-b": true, "a-c": true, "a-d": true, "b-c": true, "b-d": true, "c-d": true}
	if len(rows) != len(want) {
		t.Fatalf("expected %d transitively-closed pairs, got %d", len(want), len(rows))
	}
	for _, r := range rows {
		fv, _ := value.TupleGet(r, "from")
		tv, _ := value.TupleGet(r, "to")
		fb, _ := value.Bytes(fv)
		tb, _ := value.Bytes(tv)
		key := string(fb) + "-" + string(tb)
		if !want[key] {
			t.Errorf("unexpected pair %s in transitive closure", key)
		}
		delete(want, key)
	}
	if len(want) != 0 {
		t.Errorf("missing expected pairs: %v", want)
	}
}

// TestUpdateMatchingSelfReferentialIsTwoPass covers scenario 5 and
// comment (c): a set expression that reads the table it is updating must
// see every row's pre-update value, not a mix of old and already-written
// values from earlier in the same pass.
func TestUpdateMatchingSelfReferentialIsTwoPass(t *testing.T) {
	env, tx, done := mustAlgebraEnv(t)
	defer done()

	attrs := []rtype.Attr{
		{Name: "id", Type: rtype.HandleInteger},
		{Name: "val", Type: rtype.HandleInteger},
	}
	heading := env.Store.Add(&rtype.Type{Kind: rtype.KindTuple, Attrs: attrs})
	bt, err := NewBaseTable(env, tx, "balances", heading, [][]string{{"id"}})
	if err != nil {
		t.Fatalf("NewBaseTable: %v", err)
	}
	for _, v := range []int64{1, 2, 3} {
		tup := value.NewTuple()
		value.TupleSet(tup, "id", typedIntVal(env, v))
		value.TupleSet(tup, "val", typedIntVal(env, v))
		if ierr := bt.Insert(tx, tup); ierr != nil {
			t.Fatalf("Insert: %v", ierr)
		}
	}

	match := func(*value.Value) bool { return true }
	update := func(tup *value.Value) (*value.Value, *execctx.Error) {
		qr, serr := bt.Scan(tx)
		if serr != nil {
			return nil, serr
		}
		snapshot, derr := drain(qr)
		if derr != nil {
			return nil, derr
		}
		var total int64
		for _, r := range snapshot {
			v, _ := value.TupleGet(r, "val")
			i, _ := value.Int(v)
			total += i
		}
		id, _ := value.TupleGet(tup, "id")
		cur, _ := value.TupleGet(tup, "val")
		curI, _ := value.Int(cur)

		out := value.NewTuple()
		out.SetType(tup.Type())
		value.TupleSet(out, "id", id)
		value.TupleSet(out, "val", typedIntVal(env, total-curI))
		return out, nil
	}

	n, uerr := bt.UpdateMatching(tx, match, update)
	if uerr != nil {
		t.Fatalf("UpdateMatching: %v", uerr)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows updated, got %d", n)
	}

	qr, serr := bt.Scan(tx)
	if serr != nil {
		t.Fatalf("Scan: %v", serr)
	}
	rows, derr := drain(qr)
	if derr != nil {
		t.Fatalf("drain: %v", derr)
	}
	got := map[int64]int64{}
	for _, r := range rows {
		idv, _ := value.TupleGet(r, "id")
		valv, _ := value.TupleGet(r, "val")
		id, _ := value.Int(idv)
		val, _ := value.Int(valv)
		got[id] = val
	}
	want := map[int64]int64{1: 5, 2: 4, 3: 3}
	for id, wantVal := range want {
		if got[id] != wantVal {
			t.Errorf("id %d: expected val %d (pre-update total 6 minus original val), got %d", id, wantVal, got[id])
		}
	}
}
