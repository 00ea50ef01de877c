package catalog

import (
	"reld/execctx"
	"reld/expr"
	"reld/opregistry"
	"reld/query"
	"reld/record"
	"reld/rtype"
	"reld/value"
)

func strVal(s string) *value.Value {
	v := value.New()
	value.SetBytes(v, []byte(s))
	return v
}

func intVal(i int64) *value.Value {
	v := value.New()
	value.SetInt(v, i)
	return v
}

func boolVal(b bool) *value.Value {
	v := value.New()
	value.SetBool(v, b)
	return v
}

func row(pairs ...interface{}) *value.Value {
	t := value.NewTuple()
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		v := pairs[i+1].(*value.Value)
		value.TupleSet(t, name, v)
	}
	return t
}

// allAttrNames synthesizes the all-attribute key spec §4.7 requires when
// no candidate key is declared.
func allAttrNames(attrs []rtype.Attr) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names
}

// CreateTable creates a new base relation named name with the given
// attributes and candidate keys, committing the table's own recmap
// creation plus its catalog metadata within tx. An empty keys list
// synthesizes an all-attribute key (spec §4.7).
func (c *Catalog) CreateTable(tx record.Transaction, name string, attrs []rtype.Attr, keys [][]string) (*query.BaseTable, *execctx.Error) {
	c.mu.Lock()
	if _, exists := c.tables[name]; exists {
		c.mu.Unlock()
		return nil, execctx.New(execctx.ErrElementExists, "table "+name+" already exists")
	}
	c.mu.Unlock()

	if len(keys) == 0 {
		keys = [][]string{allAttrNames(attrs)}
	}
	tupleHandle := tupleType(c.env.Store, attrs...)
	bt, err := query.NewBaseTable(c.env, tx, name, tupleHandle, keys)
	if err != nil {
		return nil, err
	}

	if ierr := c.rtables.Insert(tx, row("table_name", strVal(name))); ierr != nil {
		return nil, ierr
	}
	for ki, key := range keys {
		for _, attrName := range key {
			if ierr := c.keys.Insert(tx, row(
				"table_name", strVal(name),
				"key_no", intVal(int64(ki)),
				"attr_name", strVal(attrName),
			)); ierr != nil {
				return nil, ierr
			}
		}
	}

	c.mu.Lock()
	c.tables[name] = bt
	c.mu.Unlock()
	return bt, nil
}

// DropTable removes name's catalog metadata and unregisters it from the
// in-memory table index. The record layer exposes no recmap-deletion
// primitive (spec §6.1 lists create/open but no drop), so the underlying
// storage is not reclaimed; this matches the external interface the
// kernel is specified to consume, not a kernel limitation (see
// DESIGN.md).
func (c *Catalog) DropTable(tx record.Transaction, name string) *execctx.Error {
	c.mu.Lock()
	if _, exists := c.tables[name]; !exists {
		c.mu.Unlock()
		return execctx.New(execctx.ErrNotFound, "table "+name+" does not exist")
	}
	delete(c.tables, name)
	delete(c.indexes, name)
	c.mu.Unlock()

	match := func(t *value.Value) bool {
		v, gerr := value.TupleGet(t, "table_name")
		if gerr != nil {
			return false
		}
		b, _ := value.Bytes(v)
		return string(b) == name
	}
	if _, err := c.rtables.DeleteMatching(tx, match); err != nil {
		return err
	}
	if _, err := c.keys.DeleteMatching(tx, match); err != nil {
		return err
	}
	if _, err := c.indexesRel.DeleteMatching(tx, match); err != nil {
		return err
	}
	return nil
}

// CreateIndex registers an index named indexName over tableName's
// attrs, committing its catalog metadata within tx and refreshing the
// in-memory IndexesOf cache the planner reads synchronously.
func (c *Catalog) CreateIndex(tx record.Transaction, indexName, tableName string, attrs []string) *execctx.Error {
	c.mu.RLock()
	_, exists := c.tables[tableName]
	c.mu.RUnlock()
	if !exists {
		return execctx.New(execctx.ErrNotFound, "table "+tableName+" does not exist")
	}
	for i, a := range attrs {
		if ierr := c.indexesRel.Insert(tx, row(
			"index_name", strVal(indexName),
			"table_name", strVal(tableName),
			"attr_no", intVal(int64(i)),
			"attr_name", strVal(a),
		)); ierr != nil {
			return ierr
		}
	}
	c.mu.Lock()
	c.indexes[tableName] = append(c.indexes[tableName], query.IndexInfo{Name: indexName, Attrs: append([]string(nil), attrs...)})
	c.mu.Unlock()
	return nil
}

// DropIndex removes indexName's catalog metadata and in-memory entry.
func (c *Catalog) DropIndex(tx record.Transaction, indexName string) *execctx.Error {
	match := func(t *value.Value) bool {
		v, gerr := value.TupleGet(t, "index_name")
		if gerr != nil {
			return false
		}
		b, _ := value.Bytes(v)
		return string(b) == indexName
	}
	if _, err := c.indexesRel.DeleteMatching(tx, match); err != nil {
		return err
	}
	c.mu.Lock()
	for table, infos := range c.indexes {
		kept := infos[:0]
		for _, info := range infos {
			if info.Name != indexName {
				kept = append(kept, info)
			}
		}
		c.indexes[table] = kept
	}
	c.mu.Unlock()
	return nil
}

// wrapPrimitive builds a *value.Value of declared type h from a native
// operator's raw Go result, the inverse of query.toPrimitive. It mirrors
// query.fromPrimitive rather than importing it, the same package-boundary
// tradeoff query.toPrimitive already makes for scalarHandle: the two
// packages reason about the conversion for different purposes (possrep
// construction here, general operator return values there). A raw
// *value.Value (a nested possrep's own selector result, or a component
// access result passed straight through) is returned as-is.
func wrapPrimitive(store *rtype.Store, h rtype.Handle, raw interface{}) *value.Value {
	if existing, ok := raw.(*value.Value); ok {
		return existing
	}
	v := value.New()
	if t := store.Get(h); t != nil {
		v.SetType(t)
	}
	switch rv := raw.(type) {
	case bool:
		value.SetBool(v, rv)
	case int64:
		value.SetInt(v, rv)
	case float64:
		value.SetFloat(v, rv)
	case value.Datetime:
		value.SetDatetime(v, rv)
	case string:
		value.SetBytes(v, []byte(rv))
	case []byte:
		value.SetBytes(v, rv)
	}
	return v
}

// registerPossrepOperators installs the selector/getter/setter triad
// spec.md expects every possrep to carry (GLOSSARY: "Possrep ... typed
// components and selector/getter/setter operators"), grounded on
// builtin/datetime.go's registerDatetime — the one place the kernel
// already wires a possrep this way. Unlike datetime's fixed Go struct,
// a user-defined possrep's physical storage is represented uniformly as
// a tuple-shaped *value.Value keyed by component name, regardless of
// component count, so the same three closures work for every type
// CreateScalarType is asked to define.
func registerPossrepOperators(store *rtype.Store, reg *opregistry.Registry, typeHandle rtype.Handle, pr rtype.Possrep) []*opregistry.OpEntry {
	comps := append([]rtype.Attr(nil), pr.Components...)
	var registered []*opregistry.OpEntry

	selectorParams := make([]rtype.Handle, len(comps))
	for i, c := range comps {
		selectorParams[i] = c.Type
	}
	selector := &opregistry.OpEntry{
		Name: pr.Name, Params: selectorParams, Returns: typeHandle, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) {
			t := value.NewTuple()
			for i, c := range comps {
				value.TupleSet(t, c.Name, wrapPrimitive(store, c.Type, args[i]))
			}
			return t, nil
		},
	}
	reg.Register(selector)
	registered = append(registered, selector)

	for _, comp := range comps {
		comp := comp
		getter := &opregistry.OpEntry{
			Name: comp.Name, Params: []rtype.Handle{typeHandle}, Returns: comp.Type, Kind: opregistry.KindNative,
			Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
				raise := func(e *execctx.Error) (interface{}, error) {
					if ctx != nil {
						ctx.Raise(e)
					}
					return nil, e
				}
				tup, ok := args[0].(*value.Value)
				if !ok {
					return raise(execctx.New(execctx.ErrTypeMismatch, "component getter: not a possrep value"))
				}
				v, gerr := value.TupleGet(tup, comp.Name)
				if gerr != nil {
					return raise(execctx.New(execctx.ErrName, "unknown component "+comp.Name))
				}
				return v, nil
			},
		}
		setter := &opregistry.OpEntry{
			Name: "set_" + comp.Name, Params: []rtype.Handle{typeHandle, comp.Type}, Returns: typeHandle, Kind: opregistry.KindNative,
			Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
				tup, ok := args[0].(*value.Value)
				if !ok {
					e := execctx.New(execctx.ErrTypeMismatch, "component setter: not a possrep value")
					if ctx != nil {
						ctx.Raise(e)
					}
					return nil, e
				}
				out := value.NewTuple()
				names, _ := value.TupleAttrs(tup)
				for _, n := range names {
					v, _ := value.TupleGet(tup, n)
					value.TupleSet(out, n, v)
				}
				value.TupleSet(out, comp.Name, wrapPrimitive(store, comp.Type, args[1]))
				return out, nil
			},
		}
		reg.Register(getter)
		reg.Register(setter)
		registered = append(registered, getter, setter)
	}
	return registered
}

// checkInitValue evaluates constraint against initValue, bound to a
// one-attribute tuple whose sole attribute is named after the type
// itself and carries the candidate value typed as the type under
// definition, so a ComponentAccess in constraint resolves through the
// possrep getters registerPossrepOperators just installed. This mirrors
// the original engine's own DEFINE TYPE tests, which bind a VAR_REF
// named after the type and read it through its possrep components. It
// raises type_constraint_violation on failure (spec §8.3: "Creating a
// type whose constraint is violated by its initial value must fail at
// type-definition time").
func checkInitValue(env *query.Env, name string, typeHandle rtype.Handle, constraint expr.Node, initValue *value.Value) *execctx.Error {
	initValue.SetType(env.Store.Get(typeHandle))
	row := value.NewTuple()
	if serr := value.TupleSet(row, name, initValue); serr != nil {
		return execctx.Wrap(execctx.ErrInternal, "type "+name+": bind initial value", serr)
	}
	result, eerr := query.EvalScalar(env, execctx.NewContext(), row, constraint)
	if eerr != nil {
		return eerr
	}
	ok, berr := value.Bool(result)
	if berr != nil {
		return execctx.Wrap(execctx.ErrTypeMismatch, "type "+name+": constraint is not boolean", berr)
	}
	if !ok {
		return execctx.New(execctx.ErrTypeConstraintViolation, "initial value for type "+name+" violates its constraint")
	}
	return nil
}

// CreateScalarType registers a new scalar type in the store, auto-
// registers a selector/getter/setter operator for every possrep
// component into reg, and records the possreps in the
// types/possreps/possrepcomps system relations. If constraint and
// initValue are both given, the constraint is checked against the
// initial value once the possrep operators exist to evaluate it
// through (spec §8.3); a failing constraint unwinds the type and its
// operators so nothing is left resolvable. A nil constraint or
// initValue skips the check, matching the original engine's
// "constraint and init expression are optional" type definition.
func (c *Catalog) CreateScalarType(tx record.Transaction, reg *opregistry.Registry, name string, possreps []rtype.Possrep, flags rtype.ScalarFlags, constraint expr.Node, initValue *value.Value) (rtype.Handle, *execctx.Error) {
	if _, exists := c.env.Store.Lookup(name); exists {
		return rtype.HandleNone, execctx.New(execctx.ErrElementExists, "type "+name+" already exists")
	}

	h := c.env.Store.Add(&rtype.Type{
		Kind: rtype.KindScalar, Name: name, Flags: flags, Possreps: possreps,
		Constraint: constraint, InitExpr: constraint, InitValue: initValue,
	})
	var allOps []*opregistry.OpEntry
	for _, pr := range possreps {
		allOps = append(allOps, registerPossrepOperators(c.env.Store, reg, h, pr)...)
	}

	if constraint != nil && initValue != nil {
		if cerr := checkInitValue(c.env, name, h, constraint, initValue); cerr != nil {
			for _, op := range allOps {
				reg.Unload(op)
			}
			c.env.Store.Remove(name)
			return rtype.HandleNone, cerr
		}
	}

	if ierr := c.types.Insert(tx, row("type_name", strVal(name), "builtin", boolVal(flags.Builtin))); ierr != nil {
		return rtype.HandleNone, ierr
	}
	for _, pr := range possreps {
		if ierr := c.possreps.Insert(tx, row("type_name", strVal(name), "possrep_name", strVal(pr.Name))); ierr != nil {
			return rtype.HandleNone, ierr
		}
		for ci, comp := range pr.Components {
			if ierr := c.possrepcomps.Insert(tx, row(
				"type_name", strVal(name),
				"possrep_name", strVal(pr.Name),
				"comp_no", intVal(int64(ci)),
				"comp_name", strVal(comp.Name),
			)); ierr != nil {
				return rtype.HandleNone, ierr
			}
		}
	}
	return h, nil
}

// DropType removes name's catalog metadata and frees it for redefinition
// by a later CreateScalarType. As with DropTable, the type's Handle
// remains resolvable for any value that already references it (spec
// gives no reference-counted type teardown); only the name index and
// catalog bookkeeping are cleared.
func (c *Catalog) DropType(tx record.Transaction, name string) *execctx.Error {
	if _, exists := c.env.Store.Lookup(name); !exists {
		return execctx.New(execctx.ErrNotFound, "type "+name+" does not exist")
	}
	c.env.Store.Remove(name)

	match := func(t *value.Value) bool {
		v, gerr := value.TupleGet(t, "type_name")
		if gerr != nil {
			return false
		}
		b, _ := value.Bytes(v)
		return string(b) == name
	}
	if _, err := c.types.DeleteMatching(tx, match); err != nil {
		return err
	}
	if _, err := c.possreps.DeleteMatching(tx, match); err != nil {
		return err
	}
	if _, err := c.possrepcomps.DeleteMatching(tx, match); err != nil {
		return err
	}
	return nil
}

// CreateOperator registers a native operator overload in reg and records
// its signature in the operators system relation.
func (c *Catalog) CreateOperator(tx record.Transaction, reg *opregistry.Registry, entry *opregistry.OpEntry) *execctx.Error {
	reg.Register(entry)
	return c.operators.Insert(tx, row("op_name", strVal(entry.Name), "arity", intVal(int64(len(entry.Params)))))
}

// DropOperator removes the arity-fixed overload named name from reg,
// running its Cleanup callback via opregistry.Registry.Unload, and
// deletes its catalog metadata.
func (c *Catalog) DropOperator(tx record.Transaction, reg *opregistry.Registry, name string, arity int) *execctx.Error {
	var target *opregistry.OpEntry
	for _, e := range reg.Chain(name) {
		if len(e.Params) == arity {
			target = e
			break
		}
	}
	if target == nil {
		return execctx.New(execctx.ErrNotFound, "operator "+name+" does not exist")
	}
	if uerr := reg.Unload(target); uerr != nil {
		return execctx.Wrap(execctx.ErrInternal, "unload operator "+name, uerr)
	}

	match := func(t *value.Value) bool {
		nameV, nerr := value.TupleGet(t, "op_name")
		arityV, aerr := value.TupleGet(t, "arity")
		if nerr != nil || aerr != nil {
			return false
		}
		b, _ := value.Bytes(nameV)
		a, _ := value.Int(arityV)
		return string(b) == name && a == int64(arity)
	}
	_, err := c.operators.DeleteMatching(tx, match)
	return err
}
