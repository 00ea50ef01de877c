// Package expr implements the algebraic expression graph of spec §4.5:
// literal, table-reference, variable-reference, tuple-attribute
// projection, possrep-component projection, and read-only operator
// application nodes, typed lazily against a type store and an operator
// registry.
package expr

import (
	"reld/rtype"
	"reld/value"
)

// NodeKind distinguishes the six expression node shapes of spec §4.5.
type NodeKind int

const (
	KindLiteral NodeKind = iota
	KindTableRef
	KindVarRef
	KindAttrAccess
	KindComponentAccess
	KindOpApply
)

// Table is the minimal surface expr needs from a referenced relation: its
// name and heading. The query package's virtual/materialized tables
// satisfy this without expr importing query (avoiding a cycle).
type Table interface {
	Name() string
	Heading() rtype.Handle
}

// OptInfo is the query optimizer's scratch space attached to an
// operator-application node (spec §4.5): a precomputed bound-object
// vector, an ascending flag, an all-equality flag, and an optional
// upper-bound "stop" expression for a one-sided range scan (spec
// §4.6.4).
type OptInfo struct {
	Objv    []*value.Value // precomputed bound values, one per indexed attribute
	Objpv   []*value.Value // argument-pointer vector, index-ordered
	Asc     bool
	AllEq   bool
	StopExp Node // optional upper-bound expression
}

// Node is an expression graph node. Every node owns its children; a
// table-reference node does NOT own the Table it refers to (spec §3.4).
type Node interface {
	Kind() NodeKind
	// Duplicate returns a deep copy of the node, independently duplicating
	// any owned OptInfo bound values.
	Duplicate() Node
}

// Literal wraps a constant value.
type Literal struct {
	Value *value.Value
}

func (n *Literal) Kind() NodeKind { return KindLiteral }
func (n *Literal) Duplicate() Node {
	return &Literal{Value: value.DeepCopy(n.Value)}
}

// TableRef refers to a named relation without owning it.
type TableRef struct {
	Table Table
}

func (n *TableRef) Kind() NodeKind  { return KindTableRef }
func (n *TableRef) Duplicate() Node { return &TableRef{Table: n.Table} }

// VarRef refers to a variable by name, resolved against the caller's
// local environment at evaluation time.
type VarRef struct {
	Name string
}

func (n *VarRef) Kind() NodeKind  { return KindVarRef }
func (n *VarRef) Duplicate() Node { return &VarRef{Name: n.Name} }

// AttrAccess projects a tuple's attribute: `<arg>.<attr>`.
type AttrAccess struct {
	Arg  Node
	Attr string
}

func (n *AttrAccess) Kind() NodeKind { return KindAttrAccess }
func (n *AttrAccess) Duplicate() Node {
	return &AttrAccess{Arg: n.Arg.Duplicate(), Attr: n.Attr}
}

// ComponentAccess projects a scalar's possrep component.
type ComponentAccess struct {
	Arg       Node
	Possrep   string
	Component string
}

func (n *ComponentAccess) Kind() NodeKind { return KindComponentAccess }
func (n *ComponentAccess) Duplicate() Node {
	return &ComponentAccess{Arg: n.Arg.Duplicate(), Possrep: n.Possrep, Component: n.Component}
}

// OpApply is a read-only operator application: an operator name plus an
// ordered argument list, with an OptInfo block the query optimizer may
// populate (spec §4.5/§4.6.4).
type OpApply struct {
	Op      string
	Args    []Node
	OptInfo *OptInfo
}

func (n *OpApply) Kind() NodeKind { return KindOpApply }
func (n *OpApply) Duplicate() Node {
	args := make([]Node, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.Duplicate()
	}
	dup := &OpApply{Op: n.Op, Args: args}
	if n.OptInfo != nil {
		oi := &OptInfo{Asc: n.OptInfo.Asc, AllEq: n.OptInfo.AllEq}
		for _, v := range n.OptInfo.Objv {
			oi.Objv = append(oi.Objv, value.DeepCopy(v))
		}
		for _, v := range n.OptInfo.Objpv {
			oi.Objpv = append(oi.Objpv, value.DeepCopy(v))
		}
		if n.OptInfo.StopExp != nil {
			oi.StopExp = n.OptInfo.StopExp.Duplicate()
		}
		dup.OptInfo = oi
	}
	return dup
}
