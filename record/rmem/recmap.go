package rmem

import (
	"sync"

	"reld/record"
)

// Recmap is a map-backed record.Recmap keyed by the raw encoded key
// bytes, storing each record as a single encoded blob split into fields
// on demand (see encode.go).
type Recmap struct {
	env       *Environment
	fields    []record.FieldSpec
	keyFields []int

	mu   sync.RWMutex
	data map[string][]byte
}

func (r *Recmap) txOf(tx record.Transaction) (*Transaction, error) {
	t, ok := tx.(*Transaction)
	if !ok {
		return nil, record.NewError(record.CodeInvalidArgument, "not an rmem transaction")
	}
	return t, nil
}

func (r *Recmap) Insert(tx record.Transaction, key, value []byte) error {
	t, err := r.txOf(tx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := string(key)
	if _, exists := r.data[k]; exists {
		return record.NewError(record.CodeKeyViolation, "duplicate key")
	}
	r.data[k] = append([]byte(nil), value...)
	t.recordUndo(func() {
		r.mu.Lock()
		delete(r.data, k)
		r.mu.Unlock()
	})
	return nil
}

func (r *Recmap) UpdateByKey(tx record.Transaction, key, value []byte) error {
	t, err := r.txOf(tx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := string(key)
	old, exists := r.data[k]
	if !exists {
		return record.NewError(record.CodeNotFound, "key not found")
	}
	r.data[k] = append([]byte(nil), value...)
	t.recordUndo(func() {
		r.mu.Lock()
		r.data[k] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *Recmap) DeleteByKey(tx record.Transaction, key []byte) error {
	t, err := r.txOf(tx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := string(key)
	old, exists := r.data[k]
	if !exists {
		return record.NewError(record.CodeNotFound, "key not found")
	}
	delete(r.data, k)
	t.recordUndo(func() {
		r.mu.Lock()
		r.data[k] = old
		r.mu.Unlock()
	})
	return nil
}

func (r *Recmap) Contains(tx record.Transaction, key []byte) (bool, error) {
	if _, err := r.txOf(tx); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.data[string(key)]
	return exists, nil
}

func (r *Recmap) Cursor(tx record.Transaction, write bool) (record.Cursor, error) {
	t, err := r.txOf(tx)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	keys := sortedKeys(r.data)
	r.mu.RUnlock()
	return &Cursor{rm: r, tx: t, write: write, keys: keys, pos: -1}, nil
}
