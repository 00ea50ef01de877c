package query

import (
	"reld/codec"
	"reld/execctx"
	"reld/record"
	"reld/rtype"
	"reld/value"
)

// Table is the relation-reference surface, matching expr.Table so a
// TableRef node can hold either a BaseTable or a materialized view. The
// handle returned by Heading is a KindRelation type; its own .Heading
// field names the tuple type.
type Table interface {
	Name() string
	Heading() rtype.Handle
}

// BaseTable is a persistent relation backed by one record-layer recmap
// per spec §6.1/§6.3, with zero or more declared candidate keys enforced
// on insert (spec §8.4 scenario 1).
type BaseTable struct {
	env       *Env
	name      string
	relHandle rtype.Handle
	keys      [][]string // candidate keys, each a set of attribute names
	rm        record.Recmap
	seq       record.Sequence
}

// NewBaseTable creates a new persistent relation named name with the
// given tuple heading and candidate keys, committing its recmap creation
// within tx.
func NewBaseTable(env *Env, tx record.Transaction, name string, tupleHeading rtype.Handle, keys [][]string) (*BaseTable, *execctx.Error) {
	relHandle := env.Store.Add(&rtype.Type{Kind: rtype.KindRelation, Heading: tupleHeading, Name: name})
	fields := codec.FieldSpecsForHeading(env.Store, tupleHeading)
	rm, err := env.RecEnv.CreateRecmap(name, "reld", fields, nil, tx)
	if err != nil {
		return nil, execctx.Wrap(record.TranslateError(err), "create recmap for "+name, err)
	}
	seq, err := env.RecEnv.OpenSequence(name+"_seq", "reld", tx)
	if err != nil {
		return nil, execctx.Wrap(record.TranslateError(err), "open sequence for "+name, err)
	}
	return &BaseTable{env: env, name: name, relHandle: relHandle, keys: keys, rm: rm, seq: seq}, nil
}

func (t *BaseTable) Name() string          { return t.name }
func (t *BaseTable) Heading() rtype.Handle { return t.relHandle }
func (t *BaseTable) tupleType() *rtype.Type {
	return t.env.Store.Get(t.env.Store.Get(t.relHandle).Heading)
}

type storedRow struct {
	key   []byte
	tuple *value.Value
}

// decodeCursorRow reassembles the tuple at cur's current position. Each
// declared attribute occupies its own recmap field (spec §6.1), so the
// row is read back one field at a time rather than as a single blob.
func decodeCursorRow(store *rtype.Store, heading *rtype.Type, cur record.Cursor) (*value.Value, *execctx.Error) {
	tup := value.NewTuple()
	tup.SetType(heading)
	for i, a := range heading.Attrs {
		raw, gerr := cur.Get(i)
		if gerr != nil {
			return nil, execctx.Wrap(record.TranslateError(gerr), "cursor get field "+a.Name, gerr)
		}
		av, derr := codec.DecodeScalar(store, store.Get(a.Type), raw)
		if derr != nil {
			return nil, derr
		}
		if serr := value.TupleSet(tup, a.Name, av); serr != nil {
			return nil, execctx.Wrap(execctx.ErrInternal, "decode row: tuple_set", serr)
		}
	}
	return tup, nil
}

func (t *BaseTable) scanAll(tx record.Transaction) ([]storedRow, *execctx.Error) {
	cur, err := t.rm.Cursor(tx, false)
	if err != nil {
		return nil, execctx.Wrap(record.TranslateError(err), "open cursor on "+t.name, err)
	}
	defer cur.Close()
	heading := t.tupleType()
	var rows []storedRow
	for {
		nerr := cur.Next()
		if nerr != nil {
			if record.TranslateError(nerr) == execctx.ErrNotFound {
				break
			}
			return nil, execctx.Wrap(record.TranslateError(nerr), "cursor scan on "+t.name, nerr)
		}
		tup, derr := decodeCursorRow(t.env.Store, heading, cur)
		if derr != nil {
			return nil, derr
		}
		rows = append(rows, storedRow{tuple: tup})
	}
	return rows, nil
}

// Scan opens a QResult over every tuple currently in the table.
func (t *BaseTable) Scan(tx record.Transaction) (QResult, *execctx.Error) {
	rows, err := t.scanAll(tx)
	if err != nil {
		return nil, err
	}
	tuples := make([]*value.Value, len(rows))
	for i, r := range rows {
		tuples[i] = r.tuple
	}
	return newSliceResult(tuples), nil
}

func keyMatches(store *rtype.Store, key []string, a, b *value.Value) bool {
	for _, attr := range key {
		av, aerr := value.TupleGet(a, attr)
		bv, berr := value.TupleGet(b, attr)
		if aerr != nil || berr != nil {
			return false
		}
		eq, eerr := value.Equals(av, bv)
		if eerr != nil || !eq {
			return false
		}
	}
	return true
}

// checkKeyViolation scans the table for an existing tuple sharing any
// declared candidate key with candidate, raising key_violation (spec
// §8.3: "Inserting a tuple whose key attributes duplicate an existing
// tuple raises key_violation").
func (t *BaseTable) checkKeyViolation(tx record.Transaction, candidate *value.Value) *execctx.Error {
	if len(t.keys) == 0 {
		return nil
	}
	rows, err := t.scanAll(tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		for _, key := range t.keys {
			if keyMatches(t.env.Store, key, row.tuple, candidate) {
				return execctx.New(execctx.ErrKeyViolation, "duplicate key in "+t.name)
			}
		}
	}
	return nil
}

// Insert validates every declared key and then appends tup.
func (t *BaseTable) Insert(tx record.Transaction, tup *value.Value) *execctx.Error {
	if kerr := t.checkKeyViolation(tx, tup); kerr != nil {
		return kerr
	}
	enc, eerr := codec.EncodeTuple(t.env.Store, t.tupleType(), tup)
	if eerr != nil {
		return eerr
	}
	id, serr := t.seq.Next()
	if serr != nil {
		return execctx.Wrap(record.TranslateError(serr), "sequence", serr)
	}
	key := encodeSeqKey(id)
	if ierr := t.rm.Insert(tx, key, enc); ierr != nil {
		return execctx.Wrap(record.TranslateError(ierr), "insert into "+t.name, ierr)
	}
	return nil
}

// DeleteMatching deletes every stored tuple for which match returns true.
func (t *BaseTable) DeleteMatching(tx record.Transaction, match func(*value.Value) bool) (int, *execctx.Error) {
	cur, err := t.rm.Cursor(tx, true)
	if err != nil {
		return 0, execctx.Wrap(record.TranslateError(err), "open write cursor on "+t.name, err)
	}
	defer cur.Close()
	heading := t.tupleType()
	n := 0
	for {
		nerr := cur.Next()
		if nerr != nil {
			if record.TranslateError(nerr) == execctx.ErrNotFound {
				break
			}
			return n, execctx.Wrap(record.TranslateError(nerr), "cursor scan on "+t.name, nerr)
		}
		tup, derr := decodeCursorRow(t.env.Store, heading, cur)
		if derr != nil {
			return n, derr
		}
		if match(tup) {
			if derr := cur.Delete(); derr != nil {
				return n, execctx.Wrap(record.TranslateError(derr), "cursor delete on "+t.name, derr)
			}
			n++
		}
	}
	return n, nil
}

// UpdateMatching applies update to every stored tuple for which match
// returns true, replacing the stored encoding in place. A set expression
// that consults the table it updates (spec §4.6.6) must see the table's
// state as of the start of the statement, so this runs in two passes: the
// first scans the whole table and computes every matched row's new value
// into an in-memory buffer without writing anything back; the second
// revisits the same rows, in the same cursor order, and applies the
// buffered writes. Interleaving compute and write in a single pass would
// let a later row's update see an earlier row's already-written value,
// which is exactly what the pre-update snapshot rules out.
func (t *BaseTable) UpdateMatching(tx record.Transaction, match func(*value.Value) bool, update func(*value.Value) (*value.Value, *execctx.Error)) (int, *execctx.Error) {
	heading := t.tupleType()

	buffered, berr := t.bufferUpdates(tx, heading, match, update)
	if berr != nil {
		return 0, berr
	}
	if len(buffered) == 0 {
		return 0, nil
	}
	return t.applyUpdates(tx, heading, buffered)
}

// bufferUpdates performs UpdateMatching's read-only first pass, computing
// update(tup) for every matched row without touching the stored encoding.
// The result is keyed by ordinal cursor position so the second pass can
// line writes back up against the same rows (spec §6.1's record layer
// exposes no per-row key the kernel can seek back to).
func (t *BaseTable) bufferUpdates(tx record.Transaction, heading *rtype.Type, match func(*value.Value) bool, update func(*value.Value) (*value.Value, *execctx.Error)) (map[int]*value.Value, *execctx.Error) {
	cur, err := t.rm.Cursor(tx, false)
	if err != nil {
		return nil, execctx.Wrap(record.TranslateError(err), "open cursor on "+t.name, err)
	}
	defer cur.Close()
	buffered := make(map[int]*value.Value)
	idx := 0
	for {
		nerr := cur.Next()
		if nerr != nil {
			if record.TranslateError(nerr) == execctx.ErrNotFound {
				break
			}
			return nil, execctx.Wrap(record.TranslateError(nerr), "cursor scan on "+t.name, nerr)
		}
		tup, derr := decodeCursorRow(t.env.Store, heading, cur)
		if derr != nil {
			return nil, derr
		}
		if match(tup) {
			newTup, uerr := update(tup)
			if uerr != nil {
				return nil, uerr
			}
			buffered[idx] = newTup
		}
		idx++
	}
	return buffered, nil
}

// applyUpdates performs UpdateMatching's write second pass, re-scanning
// the table in the same order as bufferUpdates and writing back the
// buffered value for each ordinal position that was matched.
func (t *BaseTable) applyUpdates(tx record.Transaction, heading *rtype.Type, buffered map[int]*value.Value) (int, *execctx.Error) {
	cur, err := t.rm.Cursor(tx, true)
	if err != nil {
		return 0, execctx.Wrap(record.TranslateError(err), "open write cursor on "+t.name, err)
	}
	defer cur.Close()
	n := 0
	idx := 0
	for {
		nerr := cur.Next()
		if nerr != nil {
			if record.TranslateError(nerr) == execctx.ErrNotFound {
				break
			}
			return n, execctx.Wrap(record.TranslateError(nerr), "cursor scan on "+t.name, nerr)
		}
		newTup, ok := buffered[idx]
		idx++
		if !ok {
			continue
		}
		for i, a := range heading.Attrs {
			av, gerr := value.TupleGet(newTup, a.Name)
			if gerr != nil {
				return n, execctx.New(execctx.ErrInvalidArgument, "update: missing attribute "+a.Name)
			}
			if av.Type() == nil {
				av.SetType(t.env.Store.Get(a.Type))
			}
			enc, eerr := codec.EncodeScalar(t.env.Store, av)
			if eerr != nil {
				return n, eerr
			}
			if serr := cur.Set(i, enc); serr != nil {
				return n, execctx.Wrap(record.TranslateError(serr), "cursor set field "+a.Name, serr)
			}
		}
		n++
	}
	return n, nil
}

func encodeSeqKey(id int64) []byte {
	// big-endian so keys sort numerically, matching insertion order for a
	// stable scan (not a spec requirement, just a convenience for tests).
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}
