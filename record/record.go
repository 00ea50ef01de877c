// Package record defines the record-layer contract the kernel consumes
// but does not implement (spec §6.1): an environment exposing recmaps,
// sequences, and transactions backed by an external key-value store. The
// kernel is written against these interfaces only; the transactional
// B-tree and distributed-KV backends named in the specification are out
// of scope and live outside this module. Package rmem provides an
// in-memory implementation used by the kernel's own test suite.
package record

import "context"

// Environment is the top-level handle on a record-layer backend.
type Environment interface {
	// Open opens an existing environment at path with the given flags.
	Open(path string, flags OpenFlags) error
	// Create creates a new environment at path.
	Create(path string) error
	// Close releases the environment and everything it opened.
	Close() error

	// CreateRecmap creates a new named recmap with the given field widths
	// (a negative width marks a variable-length field) and key field
	// indices, within tx.
	CreateRecmap(name, file string, fields []FieldSpec, keyFields []int, tx Transaction) (Recmap, error)
	// OpenRecmap opens an existing recmap.
	OpenRecmap(name, file string, fields []FieldSpec, tx Transaction) (Recmap, error)
	// OpenSequence opens (creating if necessary) a named counter backed by
	// one well-known key in file.
	OpenSequence(name, file string, tx Transaction) (Sequence, error)
	// RenameSequence renames a sequence in place.
	RenameSequence(oldName, newName, file string, tx Transaction) error

	// BeginTx starts a transaction, nested under parent if parent is
	// non-nil. Backends that do not support nesting return not_supported
	// (spec §5: "Nested transactions are supported iff the record-layer
	// backend supports them").
	BeginTx(ctx context.Context, parent Transaction) (Transaction, error)
	// Commit commits tx and everything nested under it.
	Commit(tx Transaction) error
	// Abort aborts tx, invalidating every iterator it owns (spec §5).
	Abort(tx Transaction) error
	// TxID returns a backend-assigned identifier for tx, for logging.
	TxID(tx Transaction) string
}

// OpenFlags controls Environment.Open.
type OpenFlags struct {
	Create   bool
	ReadOnly bool
}

// FieldSpec describes one attribute's on-the-wire shape, derived from its
// type's internal representation length (spec §6.1: "Value encoding ...
// derived from the type's internal representation length").
type FieldSpec struct {
	Name  string
	Width int // fixed byte width; -1 means variable-length, length-prefixed
}

// Recmap is a persistent key-value map of encoded tuples, keyed by the
// recmap's declared key fields (spec §6.1).
type Recmap interface {
	Insert(tx Transaction, key, value []byte) error
	UpdateByKey(tx Transaction, key, value []byte) error
	DeleteByKey(tx Transaction, key []byte) error
	Contains(tx Transaction, key []byte) (bool, error)
	Cursor(tx Transaction, write bool) (Cursor, error)
}

// Cursor provides positioned, sequential access over a Recmap.
type Cursor interface {
	// Seek positions the cursor at key, or the first key greater than it
	// if key is absent; it returns not_found if no such key exists.
	Seek(key []byte) error
	// Next advances the cursor, returning not_found at end-of-map.
	Next() error
	// Get reads one field of the record at the cursor's current position.
	Get(field int) ([]byte, error)
	// Set overwrites one field of the record at the cursor's current
	// position, within the transaction that opened the cursor.
	Set(field int, value []byte) error
	// Delete removes the record at the cursor's current position.
	Delete() error
	Close() error
}

// Sequence is a backend-durable monotonic counter (spec §6.1).
type Sequence interface {
	Next() (int64, error)
	Delete() error
}

// Transaction is an opaque handle returned by Environment.BeginTx. The
// kernel never inspects it; it only threads it through subsequent record
// layer calls (spec §5: "A transaction is obtained from the record
// layer ... and associated with zero or more open iterators").
type Transaction interface {
	Parent() Transaction
}
