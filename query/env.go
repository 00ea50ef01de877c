// Package query implements the virtual-table query engine of spec §4.6:
// algebraic operators over the expression graph, an iterator protocol for
// evaluating them, transitive closure, index-aware planning, and update
// propagation through updatable views.
package query

import (
	"reld/execctx"
	"reld/opregistry"
	"reld/record"
	"reld/rtype"
)

// IndexInfo describes one index over a named table, surfaced to the
// planner (spec §4.6.4).
type IndexInfo struct {
	Name  string
	Attrs []string // index-attribute order
}

// IndexCatalog is the minimal surface query needs from the catalog's
// indexes relation (spec §4.6.7). Implemented by package catalog; query
// does not import catalog directly to avoid a cycle.
type IndexCatalog interface {
	IndexesOf(tableName string) []IndexInfo
}

// Env bundles everything an open/evaluate call needs: the shared type
// store and operator registry, the record-layer environment backing
// persistent tables, and the index catalog used by the planner.
type Env struct {
	Store  *rtype.Store
	Reg    *opregistry.Registry
	RecEnv record.Environment
	Idx    IndexCatalog

	// ErrorTypes maps each canonical execctx.ErrorKind to the locked
	// scalar type builtin.RegisterErrorTypes installed for it, so a
	// front-end can select an error value with the kind's type name
	// (spec GLOSSARY: "ErrorKind") rather than inventing its own error
	// representation. Nil until bootstrap.Start populates it.
	ErrorTypes map[execctx.ErrorKind]rtype.Handle
}
