// Package catalog implements the kernel's system relations and DDL
// surface (spec §4.7): rtables, vtables, dbtables, keys,
// table_attr_defaults, indexes, types, possreps, possrepcomps, operators,
// and constraints, stored through the same record layer and query engine
// as user tables.
package catalog

import (
	"sync"

	"reld/execctx"
	"reld/query"
	"reld/record"
	"reld/rtype"
)

// Catalog owns the fixed system relations plus an in-memory index into
// every base table it has opened or created, so callers can build
// expr.TableRef nodes by name without re-deriving headings.
type Catalog struct {
	env *query.Env

	mu      sync.RWMutex
	tables  map[string]*query.BaseTable
	indexes map[string][]query.IndexInfo // tableName -> indexes, the in-memory
	// mirror of the `indexes` system relation query.Env.Idx reads without a
	// transaction (spec §4.6.4's planner consults it synchronously; the
	// persisted relation remains the durable source of truth, and this map
	// is filled only by CreateIndex/DropIndex within the running process).

	rtables           *query.BaseTable
	vtables           *query.BaseTable
	dbtables          *query.BaseTable
	keys              *query.BaseTable
	tableAttrDefaults *query.BaseTable
	indexesRel        *query.BaseTable
	types             *query.BaseTable
	possreps          *query.BaseTable
	possrepcomps      *query.BaseTable
	operators         *query.BaseTable
	constraints       *query.BaseTable
}

func tupleType(store *rtype.Store, attrs ...rtype.Attr) rtype.Handle {
	return store.Add(&rtype.Type{Kind: rtype.KindTuple, Attrs: attrs})
}

func attr(name string, h rtype.Handle) rtype.Attr { return rtype.Attr{Name: name, Type: h} }

// New bootstraps the eleven system relations within tx and returns a
// ready Catalog. It must be called once per fresh database; opening an
// existing one is not yet supported (see DESIGN.md).
func New(env *query.Env, tx record.Transaction) (*Catalog, *execctx.Error) {
	s := env.Store
	c := &Catalog{
		env:     env,
		tables:  make(map[string]*query.BaseTable),
		indexes: make(map[string][]query.IndexInfo),
	}

	mk := func(name string, keys [][]string, attrs ...rtype.Attr) (*query.BaseTable, *execctx.Error) {
		h := tupleType(s, attrs...)
		bt, err := query.NewBaseTable(env, tx, name, h, keys)
		if err != nil {
			return nil, err
		}
		c.tables[name] = bt
		return bt, nil
	}

	var err *execctx.Error
	if c.rtables, err = mk("rtables", [][]string{{"table_name"}},
		attr("table_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.vtables, err = mk("vtables", [][]string{{"table_name"}},
		attr("table_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.dbtables, err = mk("dbtables", [][]string{{"table_name", "db_name"}},
		attr("table_name", rtype.HandleString), attr("db_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.keys, err = mk("keys", [][]string{{"table_name", "key_no", "attr_name"}},
		attr("table_name", rtype.HandleString), attr("key_no", rtype.HandleInteger), attr("attr_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.tableAttrDefaults, err = mk("table_attr_defaults", [][]string{{"table_name", "attr_name"}},
		attr("table_name", rtype.HandleString), attr("attr_name", rtype.HandleString), attr("default_value", rtype.HandleBinary)); err != nil {
		return nil, err
	}
	if c.indexesRel, err = mk("indexes", [][]string{{"index_name"}},
		attr("index_name", rtype.HandleString), attr("table_name", rtype.HandleString),
		attr("attr_no", rtype.HandleInteger), attr("attr_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.types, err = mk("types", [][]string{{"type_name"}},
		attr("type_name", rtype.HandleString), attr("builtin", rtype.HandleBoolean)); err != nil {
		return nil, err
	}
	if c.possreps, err = mk("possreps", [][]string{{"type_name", "possrep_name"}},
		attr("type_name", rtype.HandleString), attr("possrep_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.possrepcomps, err = mk("possrepcomps", [][]string{{"type_name", "possrep_name", "comp_no", "comp_name"}},
		attr("type_name", rtype.HandleString), attr("possrep_name", rtype.HandleString),
		attr("comp_no", rtype.HandleInteger), attr("comp_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	if c.operators, err = mk("operators", [][]string{{"op_name", "arity"}},
		attr("op_name", rtype.HandleString), attr("arity", rtype.HandleInteger)); err != nil {
		return nil, err
	}
	if c.constraints, err = mk("constraints", [][]string{{"constraint_name"}},
		attr("constraint_name", rtype.HandleString), attr("table_name", rtype.HandleString)); err != nil {
		return nil, err
	}
	return c, nil
}

// IndexesOf implements query.IndexCatalog.
func (c *Catalog) IndexesOf(tableName string) []query.IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]query.IndexInfo(nil), c.indexes[tableName]...)
}

// Table returns the base table registered under name, if any.
func (c *Catalog) Table(name string) (*query.BaseTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

var _ query.IndexCatalog = (*Catalog)(nil)
