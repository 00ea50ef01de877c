// Package rmem is a map-backed, in-process implementation of the
// record-layer contract (spec §6.1), grounded on the teacher's
// PureGoStorageEngine: a mutex-guarded map standing in for a real storage
// engine (storage/storage_pure.go). It is a reference implementation for
// the kernel's own test suite, not a production backend — the real
// transactional B-tree and distributed-KV backends are out of scope
// (spec §1).
package rmem

import (
	"context"
	"sort"
	"sync"

	"reld/record"
)

// Environment is a single in-process record-layer environment. Its own
// mutex guards only the recmap and sequence registries; each Recmap locks
// its own data and each Sequence counts atomically. Locking stays this
// coarse, matching the kernel's single-threaded-per-execution-context
// model (spec §5), rather than attempting fine-grained concurrency
// control, which belongs to a real backend's lock manager.
type Environment struct {
	mu        sync.Mutex
	open      bool
	recmaps   map[string]*Recmap
	sequences map[string]*Sequence
	nextTxID  int
}

// New constructs an unopened Environment.
func New() *Environment {
	return &Environment{recmaps: make(map[string]*Recmap), sequences: make(map[string]*Sequence)}
}

func (e *Environment) Open(path string, flags record.OpenFlags) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !flags.Create && !e.open {
		return record.NewError(record.CodeResourceNotFound, "environment not created: "+path)
	}
	e.open = true
	return nil
}

func (e *Environment) Create(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	return nil
}

func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	e.recmaps = make(map[string]*Recmap)
	e.sequences = make(map[string]*Sequence)
	return nil
}

func (e *Environment) CreateRecmap(name, file string, fields []record.FieldSpec, keyFields []int, tx record.Transaction) (record.Recmap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := file + "/" + name
	if _, exists := e.recmaps[key]; exists {
		return nil, record.NewError(record.CodeElementExists, "recmap exists: "+key)
	}
	rm := &Recmap{
		env:       e,
		fields:    append([]record.FieldSpec(nil), fields...),
		keyFields: append([]int(nil), keyFields...),
		data:      make(map[string][]byte),
	}
	e.recmaps[key] = rm
	return rm, nil
}

func (e *Environment) OpenRecmap(name, file string, fields []record.FieldSpec, tx record.Transaction) (record.Recmap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := file + "/" + name
	rm, exists := e.recmaps[key]
	if !exists {
		return nil, record.NewError(record.CodeResourceNotFound, "recmap not found: "+key)
	}
	return rm, nil
}

func (e *Environment) OpenSequence(name, file string, tx record.Transaction) (record.Sequence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := file + "/" + name
	seq, exists := e.sequences[key]
	if !exists {
		seq = &Sequence{env: e, key: key}
		e.sequences[key] = seq
	}
	return seq, nil
}

func (e *Environment) RenameSequence(oldName, newName, file string, tx record.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	oldKey, newKey := file+"/"+oldName, file+"/"+newName
	seq, exists := e.sequences[oldKey]
	if !exists {
		return record.NewError(record.CodeResourceNotFound, "sequence not found: "+oldKey)
	}
	if _, clash := e.sequences[newKey]; clash {
		return record.NewError(record.CodeElementExists, "sequence exists: "+newKey)
	}
	delete(e.sequences, oldKey)
	seq.key = newKey
	e.sequences[newKey] = seq
	return nil
}

func (e *Environment) BeginTx(ctx context.Context, parent record.Transaction) (record.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextTxID++
	var p *Transaction
	if parent != nil {
		var ok bool
		p, ok = parent.(*Transaction)
		if !ok {
			return nil, record.NewError(record.CodeInvalidArgument, "parent transaction from a different environment")
		}
	}
	return &Transaction{env: e, id: e.nextTxID, parent: p}, nil
}

func (e *Environment) Commit(tx record.Transaction) error {
	t, ok := tx.(*Transaction)
	if !ok {
		return record.NewError(record.CodeInvalidArgument, "not an rmem transaction")
	}
	return t.commit()
}

func (e *Environment) Abort(tx record.Transaction) error {
	t, ok := tx.(*Transaction)
	if !ok {
		return record.NewError(record.CodeInvalidArgument, "not an rmem transaction")
	}
	return t.abort()
}

func (e *Environment) TxID(tx record.Transaction) string {
	t, ok := tx.(*Transaction)
	if !ok {
		return ""
	}
	return t.idString()
}

// sortedKeys returns rm's keys in ascending byte order, used by Cursor to
// provide a stable, ordered scan the way a real B-tree recmap would.
func sortedKeys(data map[string][]byte) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
