package query

import (
	"reld/execctx"
	"reld/expr"
	"reld/record"
	"reld/value"
)

// Insert, Update, and Delete route a mutation through the virtual-table
// operators a view composes, rewriting it into the equivalent mutation on
// the underlying base table where the operator is updatable (spec
// §4.6.5), and materializing self-referential updates where the base
// table being updated also drives the predicate or source of its own
// update (spec §4.6.6).

// Insert adds tup to the relation named by node.
func Insert(env *Env, ctx *execctx.Context, tx record.Transaction, node expr.Node, tup *value.Value) *execctx.Error {
	switch n := node.(type) {
	case *expr.TableRef:
		bt, ok := n.Table.(*BaseTable)
		if !ok {
			return execctx.New(execctx.ErrNotSupported, "table "+n.Table.Name()+" does not support insert")
		}
		return bt.Insert(tx, tup)

	case *expr.OpApply:
		switch n.Op {
		case OpWhere:
			// Inserting through a restriction requires the new tuple to
			// satisfy the restriction, else it would vanish on the next
			// read (spec §4.6.5's updatability rule for `where`).
			ok, perr := EvalScalar(env, ctx, tup, n.Args[1])
			if perr != nil {
				return perr
			}
			b, berr := value.Bool(ok)
			if berr != nil {
				return execctx.Wrap(execctx.ErrTypeMismatch, "where predicate is not boolean", berr)
			}
			if !b {
				return execctx.New(execctx.ErrPredicateViolation, "inserted tuple does not satisfy the view's restriction")
			}
			return Insert(env, ctx, tx, n.Args[0], tup)

		case OpRename:
			return Insert(env, ctx, tx, n.Args[0], unrename(n, tup))

		default:
			return execctx.New(execctx.ErrNotSupported, "insert through "+n.Op+" is not supported")
		}

	default:
		return execctx.New(execctx.ErrTypeMismatch, "insert target is not table-valued")
	}
}

// unrename maps tup's attributes from a rename node's output names back
// to the underlying table's names.
func unrename(n *expr.OpApply, tup *value.Value) *value.Value {
	out := value.NewTuple()
	names, _ := value.TupleAttrs(tup)
	reverse := make(map[string]string, len(n.Args)/2)
	for i := 1; i+1 < len(n.Args); i += 2 {
		from, _ := litString(n.Args[i])
		to, _ := litString(n.Args[i+1])
		reverse[to] = from
	}
	for _, name := range names {
		v, _ := value.TupleGet(tup, name)
		underlying := name
		if from, ok := reverse[name]; ok {
			underlying = from
		}
		value.TupleSet(out, underlying, v)
	}
	return out
}

// Delete removes every tuple of node's underlying base table for which
// the view-rewritten predicate holds.
func Delete(env *Env, ctx *execctx.Context, tx record.Transaction, node expr.Node, match func(*value.Value) (bool, *execctx.Error)) (int, *execctx.Error) {
	switch n := node.(type) {
	case *expr.TableRef:
		bt, ok := n.Table.(*BaseTable)
		if !ok {
			return 0, execctx.New(execctx.ErrNotSupported, "table "+n.Table.Name()+" does not support delete")
		}
		var matchErr *execctx.Error
		count, derr := bt.DeleteMatching(tx, func(row *value.Value) bool {
			ok, merr := match(row)
			if merr != nil {
				matchErr = merr
				return false
			}
			return ok
		})
		if matchErr != nil {
			return count, matchErr
		}
		return count, derr

	case *expr.OpApply:
		switch n.Op {
		case OpWhere:
			pred := n.Args[1]
			return Delete(env, ctx, tx, n.Args[0], func(row *value.Value) (bool, *execctx.Error) {
				v, perr := EvalScalar(env, ctx, row, pred)
				if perr != nil {
					return false, perr
				}
				b, berr := value.Bool(v)
				if berr != nil {
					return false, execctx.Wrap(execctx.ErrTypeMismatch, "where predicate is not boolean", berr)
				}
				if !b {
					return false, nil
				}
				return match(row)
			})

		case OpRename:
			return Delete(env, ctx, tx, n.Args[0], func(row *value.Value) (bool, *execctx.Error) {
				renamed := renameForward(n, row)
				return match(renamed)
			})

		default:
			return 0, execctx.New(execctx.ErrNotSupported, "delete through "+n.Op+" is not supported")
		}

	default:
		return 0, execctx.New(execctx.ErrTypeMismatch, "delete target is not table-valued")
	}
}

func renameForward(n *expr.OpApply, row *value.Value) *value.Value {
	out := value.NewTuple()
	forward := make(map[string]string, len(n.Args)/2)
	for i := 1; i+1 < len(n.Args); i += 2 {
		from, _ := litString(n.Args[i])
		to, _ := litString(n.Args[i+1])
		forward[from] = to
	}
	names, _ := value.TupleAttrs(row)
	for _, name := range names {
		v, _ := value.TupleGet(row, name)
		outName := name
		if to, ok := forward[name]; ok {
			outName = to
		}
		value.TupleSet(out, outName, v)
	}
	return out
}

// Update applies set to every tuple of node's underlying base table for
// which match holds, where set receives and returns the tuple in the
// view's own attribute names. Self-referential updates (spec §4.6.6:
// match or set consults the very table being updated) see the table's
// pre-update state because UpdateMatching computes every matched row's
// new value in a first pass, before writing any of them back in a
// second.
func Update(env *Env, ctx *execctx.Context, tx record.Transaction, node expr.Node, match func(*value.Value) (bool, *execctx.Error), set func(*value.Value) (*value.Value, *execctx.Error)) (int, *execctx.Error) {
	switch n := node.(type) {
	case *expr.TableRef:
		bt, ok := n.Table.(*BaseTable)
		if !ok {
			return 0, execctx.New(execctx.ErrNotSupported, "table "+n.Table.Name()+" does not support update")
		}
		var callErr *execctx.Error
		count, uerr := bt.UpdateMatching(tx, func(row *value.Value) bool {
			ok, merr := match(row)
			if merr != nil {
				callErr = merr
				return false
			}
			return ok
		}, set)
		if callErr != nil {
			return count, callErr
		}
		return count, uerr

	case *expr.OpApply:
		switch n.Op {
		case OpWhere:
			pred := n.Args[1]
			return Update(env, ctx, tx, n.Args[0], func(row *value.Value) (bool, *execctx.Error) {
				v, perr := EvalScalar(env, ctx, row, pred)
				if perr != nil {
					return false, perr
				}
				b, berr := value.Bool(v)
				if berr != nil {
					return false, execctx.Wrap(execctx.ErrTypeMismatch, "where predicate is not boolean", berr)
				}
				if !b {
					return false, nil
				}
				return match(row)
			}, set)

		case OpRename:
			return Update(env, ctx, tx, n.Args[0],
				func(row *value.Value) (bool, *execctx.Error) { return match(renameForward(n, row)) },
				func(row *value.Value) (*value.Value, *execctx.Error) {
					updated, serr := set(renameForward(n, row))
					if serr != nil {
						return nil, serr
					}
					return unrename(n, updated), nil
				})

		default:
			return 0, execctx.New(execctx.ErrNotSupported, "update through "+n.Op+" is not supported")
		}

	default:
		return 0, execctx.New(execctx.ErrTypeMismatch, "update target is not table-valued")
	}
}
