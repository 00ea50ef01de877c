package rmem

import (
	"context"
	"testing"

	"reld/record"
)

func mustEnv(t *testing.T) *Environment {
	t.Helper()
	env := New()
	if err := env.Create("/test"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return env
}

var fields = []record.FieldSpec{
	{Name: "id", Width: 8},
	{Name: "name", Width: -1},
}

func TestInsertContainsAndCursorScan(t *testing.T) {
	env := mustEnv(t)
	tx, err := env.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	rm, err := env.CreateRecmap("emps", "db", fields, []int{0}, tx)
	if err != nil {
		t.Fatalf("CreateRecmap: %v", err)
	}

	row := joinFields([][]byte{{0, 0, 0, 0, 0, 0, 0, 1}, []byte("Smith")}, fields)
	if err := rm.Insert(tx, []byte{0, 0, 0, 0, 0, 0, 0, 1}, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ok, err := rm.Contains(tx, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	if err != nil || !ok {
		t.Fatalf("expected Contains to report the inserted key: ok=%v err=%v", ok, err)
	}

	cur, err := rm.Cursor(tx, false)
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if err := cur.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	name, err := cur.Get(1)
	if err != nil || string(name) != "Smith" {
		t.Fatalf("expected name field Smith, got %q err=%v", name, err)
	}
	if err := cur.Next(); err == nil {
		t.Fatalf("expected not_found at end of cursor scan")
	}

	if err := env.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestDuplicateKeyRaisesKeyViolation(t *testing.T) {
	env := mustEnv(t)
	tx, _ := env.BeginTx(context.Background(), nil)
	rm, _ := env.CreateRecmap("emps", "db", fields, []int{0}, tx)
	row := joinFields([][]byte{{0, 0, 0, 0, 0, 0, 0, 1}, []byte("Smith")}, fields)
	if err := rm.Insert(tx, []byte{0, 0, 0, 0, 0, 0, 0, 1}, row); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := rm.Insert(tx, []byte{0, 0, 0, 0, 0, 0, 0, 1}, row)
	if err == nil {
		t.Fatalf("expected key_violation on duplicate insert")
	}
	if record.TranslateError(err) != "key_violation" {
		t.Fatalf("expected key_violation, got %v", record.TranslateError(err))
	}
}

func TestAbortRollsBackWritesAndCommitPersists(t *testing.T) {
	env := mustEnv(t)
	setupTx, _ := env.BeginTx(context.Background(), nil)
	rm, _ := env.CreateRecmap("emps", "db", fields, []int{0}, setupTx)
	env.Commit(setupTx)

	key := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	row := joinFields([][]byte{key, []byte("Smith")}, fields)

	abortTx, _ := env.BeginTx(context.Background(), nil)
	if err := rm.Insert(abortTx, key, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	env.Abort(abortTx)
	if ok, _ := rm.Contains(abortTx, key); ok {
		t.Fatalf("expected abort to roll back the insert")
	}

	commitTx, _ := env.BeginTx(context.Background(), nil)
	if err := rm.Insert(commitTx, key, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	env.Commit(commitTx)
	readTx, _ := env.BeginTx(context.Background(), nil)
	ok, err := rm.Contains(readTx, key)
	if err != nil || !ok {
		t.Fatalf("expected commit to persist the insert: ok=%v err=%v", ok, err)
	}
}

func TestNestedTransactionAbortOfParentUndoesChildCommit(t *testing.T) {
	env := mustEnv(t)
	setupTx, _ := env.BeginTx(context.Background(), nil)
	rm, _ := env.CreateRecmap("emps", "db", fields, []int{0}, setupTx)
	env.Commit(setupTx)

	key := []byte{0, 0, 0, 0, 0, 0, 0, 2}
	row := joinFields([][]byte{key, []byte("Jones")}, fields)

	parent, _ := env.BeginTx(context.Background(), nil)
	child, err := env.BeginTx(context.Background(), parent)
	if err != nil {
		t.Fatalf("BeginTx nested: %v", err)
	}
	if err := rm.Insert(child, key, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := env.Commit(child); err != nil {
		t.Fatalf("Commit child: %v", err)
	}
	if err := env.Abort(parent); err != nil {
		t.Fatalf("Abort parent: %v", err)
	}
	readTx, _ := env.BeginTx(context.Background(), nil)
	if ok, _ := rm.Contains(readTx, key); ok {
		t.Fatalf("expected aborting the parent to undo the committed child's write")
	}
}

func TestSequenceNextIsMonotonic(t *testing.T) {
	env := mustEnv(t)
	tx, _ := env.BeginTx(context.Background(), nil)
	seq, err := env.OpenSequence("ids", "db", tx)
	if err != nil {
		t.Fatalf("OpenSequence: %v", err)
	}
	first, _ := seq.Next()
	second, _ := seq.Next()
	if second != first+1 {
		t.Fatalf("expected monotonic sequence, got %d then %d", first, second)
	}
}
