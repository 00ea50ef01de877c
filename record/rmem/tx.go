package rmem

import (
	"fmt"
	"sync"

	"reld/record"
)

// Transaction is rmem's record.Transaction: writes apply immediately to
// the shared recmap storage, and an undo log lets Abort (or a parent's
// later Abort) roll them back. This mirrors the teacher's
// PureGoStorageEngine approach of keeping a single authoritative map and
// layering transactional semantics on top of it, rather than maintaining
// per-transaction copy-on-write snapshots.
type Transaction struct {
	env      *Environment
	id       int
	parent   *Transaction
	mu       sync.Mutex
	done     bool
	undoLog  []func()
}

func (t *Transaction) Parent() record.Transaction {
	if t.parent == nil {
		return nil
	}
	return t.parent
}

func (t *Transaction) idString() string { return fmt.Sprintf("tx-%d", t.id) }

// recordUndo appends an undo action. Recmap write operations call this so
// Abort can restore prior state.
func (t *Transaction) recordUndo(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undoLog = append(t.undoLog, fn)
}

// commit folds tx's undo log into its parent's (so an abort of the parent
// still undoes the child's writes) or discards it if tx is top-level.
func (t *Transaction) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return record.NewError(record.CodeInvalidArgument, "transaction already closed")
	}
	t.done = true
	if t.parent != nil {
		t.parent.mu.Lock()
		t.parent.undoLog = append(t.parent.undoLog, t.undoLog...)
		t.parent.mu.Unlock()
	}
	return nil
}

// abort runs tx's undo log in reverse order, restoring the state every
// write made under it (spec §5: "an aborted transaction invalidates
// every iterator it owns").
func (t *Transaction) abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return record.NewError(record.CodeInvalidArgument, "transaction already closed")
	}
	t.done = true
	for i := len(t.undoLog) - 1; i >= 0; i-- {
		t.undoLog[i]()
	}
	t.undoLog = nil
	return nil
}
