package query

import (
	"encoding/binary"
	"math"

	"reld/execctx"
	"reld/expr"
	"reld/record"
	"reld/rtype"
	"reld/value"
)

// The algebraic operators of spec §4.6.1 are represented as expr.OpApply
// nodes: Op names one of where/project/rename/union/minus/intersect/
// join/extend/summarize/group/ungroup/wrap/unwrap/divide/semijoin/
// semiminus/tclose/relation, and Args carries the operator's operands.
// Attribute names and other non-expression operands are carried as
// string literals (expr.Literal wrapping a KindBytes value) since the
// expression graph has no dedicated name-list node.
const (
	OpWhere     = "where"
	OpProject   = "project"
	OpRename    = "rename"
	OpUnion     = "union"
	OpMinus     = "minus"
	OpIntersect = "intersect"
	OpJoin      = "join"
	OpExtend    = "extend"
	OpSummarize = "summarize"
	OpGroup     = "group"
	OpUngroup   = "ungroup"
	OpWrap      = "wrap"
	OpUnwrap    = "unwrap"
	OpDivide    = "divide"
	OpSemijoin  = "semijoin"
	OpSemiminus = "semiminus"
	OpTclose    = "tclose"
	OpRelation  = "relation"
)

func strLit(s string) *expr.Literal {
	v := value.New()
	value.SetBytes(v, []byte(s))
	return &expr.Literal{Value: v}
}

func litString(n expr.Node) (string, *execctx.Error) {
	lit, ok := n.(*expr.Literal)
	if !ok {
		return "", execctx.New(execctx.ErrTypeMismatch, "expected a literal name operand")
	}
	b, err := value.Bytes(lit.Value)
	if err != nil {
		return "", execctx.Wrap(execctx.ErrTypeMismatch, "literal name operand is not textual", err)
	}
	return string(b), nil
}

// ExtendSpec names one added attribute of an extend node.
type ExtendSpec struct {
	Name string
	Expr expr.Node
}

// AggSpec names one added aggregate of a summarize node (spec §4.6.1:
// "count, sum, avg, min, max, all, any"). Arg is empty for count.
type AggSpec struct {
	Func string
	Arg  string
	As   string
}

// Where builds a restriction node.
func Where(table expr.Node, pred expr.Node) *expr.OpApply {
	return &expr.OpApply{Op: OpWhere, Args: []expr.Node{table, pred}}
}

// Project builds a projection node over the named attributes.
func Project(table expr.Node, attrs ...string) *expr.OpApply {
	args := []expr.Node{table}
	for _, a := range attrs {
		args = append(args, strLit(a))
	}
	return &expr.OpApply{Op: OpProject, Args: args}
}

// RenamePair is one (from, to) renaming.
type RenamePair struct{ From, To string }

// Rename builds a rename node.
func Rename(table expr.Node, pairs ...RenamePair) *expr.OpApply {
	args := []expr.Node{table}
	for _, p := range pairs {
		args = append(args, strLit(p.From), strLit(p.To))
	}
	return &expr.OpApply{Op: OpRename, Args: args}
}

func Union(a, b expr.Node) *expr.OpApply     { return &expr.OpApply{Op: OpUnion, Args: []expr.Node{a, b}} }
func Minus(a, b expr.Node) *expr.OpApply     { return &expr.OpApply{Op: OpMinus, Args: []expr.Node{a, b}} }
func Intersect(a, b expr.Node) *expr.OpApply { return &expr.OpApply{Op: OpIntersect, Args: []expr.Node{a, b}} }
func Join(a, b expr.Node) *expr.OpApply      { return &expr.OpApply{Op: OpJoin, Args: []expr.Node{a, b}} }
func Semijoin(a, b expr.Node) *expr.OpApply  { return &expr.OpApply{Op: OpSemijoin, Args: []expr.Node{a, b}} }
func Semiminus(a, b expr.Node) *expr.OpApply { return &expr.OpApply{Op: OpSemiminus, Args: []expr.Node{a, b}} }
func Tclose(table expr.Node) *expr.OpApply   { return &expr.OpApply{Op: OpTclose, Args: []expr.Node{table}} }

// Divide builds the ternary A DIVIDEBY B PER C relational divide.
func Divide(dividend, divisor, mediator expr.Node) *expr.OpApply {
	return &expr.OpApply{Op: OpDivide, Args: []expr.Node{dividend, divisor, mediator}}
}

// Extend builds an extend node adding the named computed attributes.
func Extend(table expr.Node, specs ...ExtendSpec) *expr.OpApply {
	args := []expr.Node{table}
	for _, s := range specs {
		args = append(args, strLit(s.Name), s.Expr)
	}
	return &expr.OpApply{Op: OpExtend, Args: args}
}

// Wrap builds a wrap node.
func Wrap(table expr.Node, wrapped []string, attrname string) *expr.OpApply {
	args := []expr.Node{table, strLit(attrname)}
	for _, w := range wrapped {
		args = append(args, strLit(w))
	}
	return &expr.OpApply{Op: OpWrap, Args: args}
}

func Unwrap(table expr.Node, attrname string) *expr.OpApply {
	return &expr.OpApply{Op: OpUnwrap, Args: []expr.Node{table, strLit(attrname)}}
}

func Group(table expr.Node, grouped []string, attrname string) *expr.OpApply {
	args := []expr.Node{table, strLit(attrname)}
	for _, g := range grouped {
		args = append(args, strLit(g))
	}
	return &expr.OpApply{Op: OpGroup, Args: args}
}

func Ungroup(table expr.Node, attrname string) *expr.OpApply {
	return &expr.OpApply{Op: OpUngroup, Args: []expr.Node{table, strLit(attrname)}}
}

// Summarize builds a summarize node: source, an integer literal holding
// the number of per-grouping attributes, those attribute names, then
// (func, arg, as) triples per aggregate.
func Summarize(source expr.Node, perAttrs []string, aggs ...AggSpec) *expr.OpApply {
	countLit := value.New()
	value.SetInt(countLit, int64(len(perAttrs)))
	args := []expr.Node{source, &expr.Literal{Value: countLit}}
	for _, p := range perAttrs {
		args = append(args, strLit(p))
	}
	for _, a := range aggs {
		args = append(args, strLit(a.Func), strLit(a.Arg), strLit(a.As))
	}
	return &expr.OpApply{Op: OpSummarize, Args: args}
}

// RelationLiteral builds a constant relation node (the `relation`
// constructor of spec §4.6.1): the heading handle as an integer literal,
// followed by one tuple-valued literal per row.
func RelationLiteral(heading rtype.Handle, tuples []*value.Value) *expr.OpApply {
	h := value.New()
	value.SetInt(h, int64(heading))
	args := []expr.Node{&expr.Literal{Value: h}}
	for _, t := range tuples {
		args = append(args, &expr.Literal{Value: t})
	}
	return &expr.OpApply{Op: OpRelation, Args: args}
}

// Open evaluates node as a virtual or base table and returns a cursor
// over it (spec §4.6.2's open(expr, tx)), plus the relation type handle
// of its result heading.
func Open(env *Env, ctx *execctx.Context, tx record.Transaction, node expr.Node) (QResult, rtype.Handle, *execctx.Error) {
	switch n := node.(type) {
	case *expr.TableRef:
		sc, ok := n.Table.(Scannable)
		if !ok {
			return nil, rtype.HandleNone, execctx.New(execctx.ErrNotSupported, "table "+n.Table.Name()+" is not scannable")
		}
		qr, err := sc.Scan(tx)
		if err != nil {
			return nil, rtype.HandleNone, err
		}
		return qr, n.Table.Heading(), nil

	case *expr.OpApply:
		return openOpApply(env, ctx, tx, n)

	default:
		return nil, rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "expression is not table-valued")
	}
}

// relHandleFor wraps a tuple heading handle in a fresh relation type, or
// returns h unchanged if it is already a relation handle.
func (env *Env) relHandleFor(h rtype.Handle) rtype.Handle {
	t := env.Store.Get(h)
	if t != nil && t.Kind == rtype.KindRelation {
		return h
	}
	return env.Store.Add(&rtype.Type{Kind: rtype.KindRelation, Heading: h})
}

// Scannable is the subset of Table that can produce a fresh iterator,
// implemented by BaseTable and any materialized view.
type Scannable interface {
	Table
	Scan(tx record.Transaction) (QResult, *execctx.Error)
}

func tupleHeadingOf(env *Env, relHandle rtype.Handle) *rtype.Type {
	rt := env.Store.Get(relHandle)
	if rt == nil {
		return nil
	}
	return env.Store.Get(rt.Heading)
}

func openOpApply(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	switch n.Op {
	case OpWhere:
		return openWhere(env, ctx, tx, n)
	case OpProject:
		return openProject(env, ctx, tx, n)
	case OpRename:
		return openRename(env, ctx, tx, n)
	case OpUnion:
		return openUnion(env, ctx, tx, n)
	case OpMinus:
		return openMinus(env, ctx, tx, n)
	case OpIntersect:
		return openIntersect(env, ctx, tx, n)
	case OpJoin:
		return openJoin(env, ctx, tx, n)
	case OpSemijoin:
		return openSemijoin(env, ctx, tx, n)
	case OpSemiminus:
		return openSemiminus(env, ctx, tx, n)
	case OpExtend:
		return openExtend(env, ctx, tx, n)
	case OpWrap:
		return openWrap(env, ctx, tx, n)
	case OpUnwrap:
		return openUnwrap(env, ctx, tx, n)
	case OpGroup:
		return openGroup(env, ctx, tx, n)
	case OpUngroup:
		return openUngroup(env, ctx, tx, n)
	case OpSummarize:
		return openSummarize(env, ctx, tx, n)
	case OpDivide:
		return openDivide(env, ctx, tx, n)
	case OpTclose:
		return openTclose(env, ctx, tx, n)
	case OpRelation:
		return openRelation(env, n)
	default:
		return nil, rtype.HandleNone, execctx.New(execctx.ErrOperatorNotFound, n.Op)
	}
}

func openRelation(env *Env, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	headingLit, ok := n.Args[0].(*expr.Literal)
	if !ok {
		return nil, rtype.HandleNone, execctx.New(execctx.ErrInternal, "relation: malformed heading literal")
	}
	hi, herr := value.Int(headingLit.Value)
	if herr != nil {
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInternal, "relation: malformed heading literal", herr)
	}
	tuples := make([]*value.Value, 0, len(n.Args)-1)
	for _, a := range n.Args[1:] {
		lit, ok := a.(*expr.Literal)
		if !ok {
			return nil, rtype.HandleNone, execctx.New(execctx.ErrInternal, "relation: malformed tuple literal")
		}
		tuples = append(tuples, value.DeepCopy(lit.Value))
	}
	return newSliceResult(tuples), env.relHandleFor(rtype.Handle(hi)), nil
}

func openWhere(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, heading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	pred := n.Args[1]
	return &filterResult{src: src, keep: func(tup *value.Value) (bool, *execctx.Error) {
		v, perr := EvalScalar(env, ctx, tup, pred)
		if perr != nil {
			return false, perr
		}
		b, berr := value.Bool(v)
		if berr != nil {
			return false, execctx.Wrap(execctx.ErrTypeMismatch, "where predicate is not boolean", berr)
		}
		return b, nil
	}}, heading, nil
}

func openProject(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	names := make([]string, 0, len(n.Args)-1)
	for _, a := range n.Args[1:] {
		name, lerr := litString(a)
		if lerr != nil {
			src.Close()
			return nil, rtype.HandleNone, lerr
		}
		names = append(names, name)
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	tupleHandle, derr := rtype.Project(env.Store, srcTuple.Handle(), names)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "project", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	projected, err := drain(&mapResult{src: src, fn: func(tup *value.Value) (*value.Value, *execctx.Error) {
		out := value.NewTuple()
		out.SetType(env.Store.Get(tupleHandle))
		for _, name := range names {
			v, gerr := value.TupleGet(tup, name)
			if gerr != nil {
				return nil, execctx.New(execctx.ErrName, "project: missing attribute "+name)
			}
			if serr := value.TupleSet(out, name, v); serr != nil {
				return nil, execctx.Wrap(execctx.ErrInternal, "project: tuple_set", serr)
			}
		}
		return out, nil
	}})
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	return newSliceResult(dedupe(projected)), resultHeading, nil
}

func openRename(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	renaming := make(map[string]string)
	order := make([]RenamePair, 0)
	for i := 1; i+1 < len(n.Args); i += 2 {
		from, ferr := litString(n.Args[i])
		if ferr != nil {
			src.Close()
			return nil, rtype.HandleNone, ferr
		}
		to, terr := litString(n.Args[i+1])
		if terr != nil {
			src.Close()
			return nil, rtype.HandleNone, terr
		}
		renaming[from] = to
		order = append(order, RenamePair{From: from, To: to})
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	tupleHandle, derr := rtype.Rename(env.Store, srcTuple.Handle(), renaming)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "rename", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	return &mapResult{src: src, fn: func(tup *value.Value) (*value.Value, *execctx.Error) {
		out := value.NewTuple()
		out.SetType(env.Store.Get(tupleHandle))
		for _, a := range env.Store.Get(tupleHandle).Attrs {
			from := a.Name
			for _, p := range order {
				if p.To == a.Name {
					from = p.From
				}
			}
			v, gerr := value.TupleGet(tup, from)
			if gerr != nil {
				return nil, execctx.New(execctx.ErrName, "rename: missing attribute "+from)
			}
			if serr := value.TupleSet(out, a.Name, v); serr != nil {
				return nil, execctx.Wrap(execctx.ErrInternal, "rename: tuple_set", serr)
			}
		}
		return out, nil
	}}, resultHeading, nil
}

// encodeKeyPart renders v as a byte string suitable for equality-keyed
// deduplication (not a candidate key, just a value digest).
func encodeKeyPart(v *value.Value) ([]byte, error) {
	switch v.Kind() {
	case value.KindBoolean:
		b, _ := value.Bool(v)
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case value.KindInt:
		i, _ := value.Int(v)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(i))
		return buf, nil
	case value.KindFloat:
		f, _ := value.Float(v)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil
	case value.KindBytes:
		b, _ := value.Bytes(v)
		return b, nil
	default:
		return nil, nil
	}
}

func dedupe(tuples []*value.Value) []*value.Value {
	seen := make(map[string]bool, len(tuples))
	out := make([]*value.Value, 0, len(tuples))
	for _, t := range tuples {
		k := tupleKeyAllAttrs(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func tupleKeyAllAttrs(tup *value.Value) string {
	attrs, _ := value.TupleAttrs(tup)
	sorted := append([]string(nil), attrs...)
	sortStrings(sorted)
	var key []byte
	for _, name := range sorted {
		v, err := value.TupleGet(tup, name)
		if err != nil {
			continue
		}
		enc, _ := encodeKeyPart(v)
		key = append(key, []byte(name)...)
		key = append(key, 0)
		key = append(key, enc...)
		key = append(key, 0)
	}
	return string(key)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func openUnion(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	left, leftHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	right, _, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		left.Close()
		return nil, rtype.HandleNone, err
	}
	leftTuples, err := drain(left)
	if err != nil {
		right.Close()
		return nil, rtype.HandleNone, err
	}
	rightTuples, err := drain(right)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	all := append(append([]*value.Value(nil), leftTuples...), rightTuples...)
	return newSliceResult(dedupe(all)), leftHeading, nil
}

func openMinus(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	left, leftHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	right, _, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		left.Close()
		return nil, rtype.HandleNone, err
	}
	leftTuples, err := drain(left)
	if err != nil {
		right.Close()
		return nil, rtype.HandleNone, err
	}
	rightTuples, err := drain(right)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	exclude := make(map[string]bool, len(rightTuples))
	for _, t := range rightTuples {
		exclude[tupleKeyAllAttrs(t)] = true
	}
	var out []*value.Value
	for _, t := range leftTuples {
		if !exclude[tupleKeyAllAttrs(t)] {
			out = append(out, t)
		}
	}
	return newSliceResult(out), leftHeading, nil
}

func openIntersect(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	left, leftHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	right, _, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		left.Close()
		return nil, rtype.HandleNone, err
	}
	leftTuples, err := drain(left)
	if err != nil {
		right.Close()
		return nil, rtype.HandleNone, err
	}
	rightTuples, err := drain(right)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	include := make(map[string]bool, len(rightTuples))
	for _, t := range rightTuples {
		include[tupleKeyAllAttrs(t)] = true
	}
	var out []*value.Value
	for _, t := range leftTuples {
		if include[tupleKeyAllAttrs(t)] {
			out = append(out, t)
		}
	}
	return newSliceResult(out), leftHeading, nil
}

// overlappingAttrs returns the attribute names common to both headings.
func overlappingAttrs(a, b *rtype.Type) []string {
	bset := make(map[string]bool, len(b.Attrs))
	for _, at := range b.Attrs {
		bset[at.Name] = true
	}
	var out []string
	for _, at := range a.Attrs {
		if bset[at.Name] {
			out = append(out, at.Name)
		}
	}
	return out
}

func tuplesMatchOn(a, b *value.Value, attrs []string) bool {
	for _, name := range attrs {
		av, aerr := value.TupleGet(a, name)
		bv, berr := value.TupleGet(b, name)
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

func openJoin(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	left, leftHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	right, rightHeading, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		left.Close()
		return nil, rtype.HandleNone, err
	}
	leftTuples, err := drain(left)
	if err != nil {
		right.Close()
		return nil, rtype.HandleNone, err
	}
	rightTuples, err := drain(right)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	leftTuple := tupleHeadingOf(env, leftHeading)
	rightTuple := tupleHeadingOf(env, rightHeading)
	common := overlappingAttrs(leftTuple, rightTuple)
	joinTupleHandle, derr := rtype.Union(env.Store, leftTuple.Handle(), rightTuple.Handle())
	if derr != nil {
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "join", derr)
	}
	resultHeading := env.relHandleFor(joinTupleHandle)
	joinTupleType := env.Store.Get(joinTupleHandle)
	var out []*value.Value
	for _, lt := range leftTuples {
		for _, rt := range rightTuples {
			if !tuplesMatchOn(lt, rt, common) {
				continue
			}
			merged := value.NewTuple()
			merged.SetType(joinTupleType)
			for _, a := range joinTupleType.Attrs {
				var v *value.Value
				if lv, lerr := value.TupleGet(lt, a.Name); lerr == nil {
					v = lv
				} else if rv, rerr := value.TupleGet(rt, a.Name); rerr == nil {
					v = rv
				}
				if v != nil {
					value.TupleSet(merged, a.Name, v)
				}
			}
			out = append(out, merged)
		}
	}
	return newSliceResult(dedupe(out)), resultHeading, nil
}

func openSemijoin(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	left, leftHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	right, rightHeading, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		left.Close()
		return nil, rtype.HandleNone, err
	}
	leftTuples, err := drain(left)
	if err != nil {
		right.Close()
		return nil, rtype.HandleNone, err
	}
	rightTuples, err := drain(right)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	common := overlappingAttrs(tupleHeadingOf(env, leftHeading), tupleHeadingOf(env, rightHeading))
	var out []*value.Value
	for _, lt := range leftTuples {
		for _, rt := range rightTuples {
			if tuplesMatchOn(lt, rt, common) {
				out = append(out, lt)
				break
			}
		}
	}
	return newSliceResult(out), leftHeading, nil
}

func openSemiminus(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	left, leftHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	right, rightHeading, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		left.Close()
		return nil, rtype.HandleNone, err
	}
	leftTuples, err := drain(left)
	if err != nil {
		right.Close()
		return nil, rtype.HandleNone, err
	}
	rightTuples, err := drain(right)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	common := overlappingAttrs(tupleHeadingOf(env, leftHeading), tupleHeadingOf(env, rightHeading))
	var out []*value.Value
	for _, lt := range leftTuples {
		matched := false
		for _, rt := range rightTuples {
			if tuplesMatchOn(lt, rt, common) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, lt)
		}
	}
	return newSliceResult(out), leftHeading, nil
}

func openExtend(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	type pending struct {
		name string
		expr expr.Node
	}
	var specs []pending
	for i := 1; i+1 < len(n.Args); i += 2 {
		name, lerr := litString(n.Args[i])
		if lerr != nil {
			src.Close()
			return nil, rtype.HandleNone, lerr
		}
		specs = append(specs, pending{name: name, expr: n.Args[i+1]})
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	var newAttrs []rtype.Attr
	for _, s := range specs {
		t, terr := expr.TypeOfInScope(env.Store, env.Reg, srcTuple.Handle(), s.expr)
		if terr != nil {
			src.Close()
			return nil, rtype.HandleNone, terr
		}
		newAttrs = append(newAttrs, rtype.Attr{Name: s.name, Type: t})
	}
	tupleHandle, derr := rtype.Extend(env.Store, srcTuple.Handle(), newAttrs)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "extend", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)
	return &mapResult{src: src, fn: func(tup *value.Value) (*value.Value, *execctx.Error) {
		out := value.NewTuple()
		out.SetType(tupleType)
		for _, a := range srcTuple.Attrs {
			v, _ := value.TupleGet(tup, a.Name)
			value.TupleSet(out, a.Name, v)
		}
		for _, s := range specs {
			v, eerr := EvalScalar(env, ctx, tup, s.expr)
			if eerr != nil {
				return nil, eerr
			}
			if serr := value.TupleSet(out, s.name, v); serr != nil {
				return nil, execctx.Wrap(execctx.ErrInternal, "extend: tuple_set", serr)
			}
		}
		return out, nil
	}}, resultHeading, nil
}

func openWrap(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	attrname, aerr := litString(n.Args[1])
	if aerr != nil {
		src.Close()
		return nil, rtype.HandleNone, aerr
	}
	var wrapped []string
	for _, a := range n.Args[2:] {
		w, werr := litString(a)
		if werr != nil {
			src.Close()
			return nil, rtype.HandleNone, werr
		}
		wrapped = append(wrapped, w)
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	tupleHandle, derr := rtype.Wrap(env.Store, srcTuple.Handle(), wrapped, attrname)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "wrap", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)
	innerHandle, _ := tupleType.AttrType(attrname)
	innerType := env.Store.Get(innerHandle)
	wrappedSet := make(map[string]bool, len(wrapped))
	for _, w := range wrapped {
		wrappedSet[w] = true
	}
	return &mapResult{src: src, fn: func(tup *value.Value) (*value.Value, *execctx.Error) {
		out := value.NewTuple()
		out.SetType(tupleType)
		inner := value.NewTuple()
		inner.SetType(innerType)
		for _, a := range srcTuple.Attrs {
			v, _ := value.TupleGet(tup, a.Name)
			if wrappedSet[a.Name] {
				value.TupleSet(inner, a.Name, v)
			} else {
				value.TupleSet(out, a.Name, v)
			}
		}
		value.TupleSet(out, attrname, inner)
		return out, nil
	}}, resultHeading, nil
}

func openUnwrap(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	attrname, aerr := litString(n.Args[1])
	if aerr != nil {
		src.Close()
		return nil, rtype.HandleNone, aerr
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	tupleHandle, derr := rtype.Unwrap(env.Store, srcTuple.Handle(), attrname)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "unwrap", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)
	return &mapResult{src: src, fn: func(tup *value.Value) (*value.Value, *execctx.Error) {
		out := value.NewTuple()
		out.SetType(tupleType)
		for _, a := range srcTuple.Attrs {
			v, _ := value.TupleGet(tup, a.Name)
			if a.Name == attrname {
				innerNames, _ := value.TupleAttrs(v)
				for _, inner := range innerNames {
					iv, _ := value.TupleGet(v, inner)
					value.TupleSet(out, inner, iv)
				}
				continue
			}
			value.TupleSet(out, a.Name, v)
		}
		return out, nil
	}}, resultHeading, nil
}

func openGroup(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	attrname, aerr := litString(n.Args[1])
	if aerr != nil {
		src.Close()
		return nil, rtype.HandleNone, aerr
	}
	var grouped []string
	for _, a := range n.Args[2:] {
		g, gerr := litString(a)
		if gerr != nil {
			src.Close()
			return nil, rtype.HandleNone, gerr
		}
		grouped = append(grouped, g)
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	tupleHandle, derr := rtype.Group(env.Store, srcTuple.Handle(), grouped, attrname)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "group", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)
	innerHandle, _ := tupleType.AttrType(attrname)
	innerRelType := env.Store.Get(innerHandle)
	innerTupleType := env.Store.Get(innerRelType.Heading)
	groupedSet := make(map[string]bool, len(grouped))
	for _, g := range grouped {
		groupedSet[g] = true
	}
	var survivingNames []string
	for _, a := range srcTuple.Attrs {
		if !groupedSet[a.Name] {
			survivingNames = append(survivingNames, a.Name)
		}
	}
	tuples, err := drain(src)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	type bucket struct {
		key    *value.Value
		inners []*value.Value
	}
	var buckets []bucket
	for _, tup := range tuples {
		surviving := value.NewTuple()
		for _, name := range survivingNames {
			v, _ := value.TupleGet(tup, name)
			value.TupleSet(surviving, name, v)
		}
		inner := value.NewTuple()
		inner.SetType(innerTupleType)
		for _, g := range grouped {
			v, _ := value.TupleGet(tup, g)
			value.TupleSet(inner, g, v)
		}
		found := false
		for i := range buckets {
			eq, _ := value.TupleEquals(buckets[i].key, surviving)
			if eq {
				buckets[i].inners = append(buckets[i].inners, inner)
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, bucket{key: surviving, inners: []*value.Value{inner}})
		}
	}
	var out []*value.Value
	for _, b := range buckets {
		row := value.NewTuple()
		row.SetType(tupleType)
		for _, name := range survivingNames {
			v, _ := value.TupleGet(b.key, name)
			value.TupleSet(row, name, v)
		}
		rel := newGroupRelation(env, innerHandle, b.inners)
		relVal := value.New()
		relVal.SetType(innerRelType)
		value.SetRelation(relVal, rel)
		value.TupleSet(row, attrname, relVal)
		out = append(out, row)
	}
	return newSliceResult(out), resultHeading, nil
}

// groupRelation is a small in-memory relation produced by GROUP/the
// summarize "per" aggregation, satisfying both expr.Table (for nested
// scalar evaluation) and Scannable (for further query composition).
type groupRelation struct {
	env     *Env
	heading rtype.Handle
	tuples  []*value.Value
}

func newGroupRelation(env *Env, relHandle rtype.Handle, tuples []*value.Value) *groupRelation {
	return &groupRelation{env: env, heading: relHandle, tuples: tuples}
}

func (g *groupRelation) Name() string          { return "" }
func (g *groupRelation) Heading() rtype.Handle { return g.heading }
func (g *groupRelation) Scan(record.Transaction) (QResult, *execctx.Error) {
	return newSliceResult(append([]*value.Value(nil), g.tuples...)), nil
}

func openUngroup(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	attrname, aerr := litString(n.Args[1])
	if aerr != nil {
		src.Close()
		return nil, rtype.HandleNone, aerr
	}
	srcTuple := tupleHeadingOf(env, srcHeading)
	tupleHandle, derr := rtype.Ungroup(env.Store, srcTuple.Handle(), attrname)
	if derr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "ungroup", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)
	tuples, err := drain(src)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	var out []*value.Value
	for _, tup := range tuples {
		relVal, gerr := value.TupleGet(tup, attrname)
		if gerr != nil {
			return nil, rtype.HandleNone, execctx.New(execctx.ErrName, "ungroup: missing attribute "+attrname)
		}
		rel, rerr := value.GetRelation(relVal)
		if rerr != nil {
			return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrTypeMismatch, "ungroup: not a relation", rerr)
		}
		gr, ok := rel.(*groupRelation)
		if !ok {
			return nil, rtype.HandleNone, execctx.New(execctx.ErrNotSupported, "ungroup: unsupported relation representation")
		}
		for _, inner := range gr.tuples {
			row := value.NewTuple()
			row.SetType(tupleType)
			for _, a := range srcTuple.Attrs {
				if a.Name == attrname {
					continue
				}
				v, _ := value.TupleGet(tup, a.Name)
				value.TupleSet(row, a.Name, v)
			}
			innerNames, _ := value.TupleAttrs(inner)
			for _, inAttr := range innerNames {
				v, _ := value.TupleGet(inner, inAttr)
				value.TupleSet(row, inAttr, v)
			}
			out = append(out, row)
		}
	}
	return newSliceResult(out), resultHeading, nil
}

// openSummarize implements `summarize source per {perAttrs} add f(arg) as
// name, ...` (spec §4.6.1/§4.6's scenario 3) as group-then-aggregate.
func openSummarize(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, srcHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	countV, cerr := value.Int(n.Args[1].(*expr.Literal).Value)
	if cerr != nil {
		src.Close()
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInternal, "summarize: malformed per-count", cerr)
	}
	idx := 2
	var perAttrs []string
	for i := int64(0); i < countV; i++ {
		name, lerr := litString(n.Args[idx])
		if lerr != nil {
			src.Close()
			return nil, rtype.HandleNone, lerr
		}
		perAttrs = append(perAttrs, name)
		idx++
	}
	var aggs []AggSpec
	for idx+2 < len(n.Args) {
		fn, _ := litString(n.Args[idx])
		arg, _ := litString(n.Args[idx+1])
		as, _ := litString(n.Args[idx+2])
		aggs = append(aggs, AggSpec{Func: fn, Arg: arg, As: as})
		idx += 3
	}

	srcTuple := tupleHeadingOf(env, srcHeading)
	tuples, derr := drain(src)
	if derr != nil {
		return nil, rtype.HandleNone, derr
	}
	type bucket struct {
		key  *value.Value
		rows []*value.Value
	}
	var buckets []bucket
	for _, tup := range tuples {
		key := value.NewTuple()
		for _, p := range perAttrs {
			v, _ := value.TupleGet(tup, p)
			value.TupleSet(key, p, v)
		}
		found := false
		for i := range buckets {
			eq, _ := value.TupleEquals(buckets[i].key, key)
			if eq {
				buckets[i].rows = append(buckets[i].rows, tup)
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, bucket{key: key, rows: []*value.Value{tup}})
		}
	}

	var perAttrTypes []rtype.Attr
	for _, p := range perAttrs {
		at, _ := srcTuple.AttrType(p)
		perAttrTypes = append(perAttrTypes, rtype.Attr{Name: p, Type: at})
	}
	perTupleHandle := env.Store.Add(&rtype.Type{Kind: rtype.KindTuple, Attrs: perAttrTypes})
	var aggAttrs []rtype.Attr
	for _, a := range aggs {
		aggAttrs = append(aggAttrs, rtype.Attr{Name: a.As, Type: aggregateReturnType(a.Func, srcTuple, a.Arg)})
	}
	tupleHandle, aerr := rtype.Extend(env.Store, perTupleHandle, aggAttrs)
	if aerr != nil {
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "summarize", aerr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)

	var out []*value.Value
	for _, b := range buckets {
		row := value.NewTuple()
		row.SetType(tupleType)
		for _, p := range perAttrs {
			v, _ := value.TupleGet(b.key, p)
			value.TupleSet(row, p, v)
		}
		for _, a := range aggs {
			v, aerr := aggregate(a.Func, a.Arg, b.rows)
			if aerr != nil {
				return nil, rtype.HandleNone, aerr
			}
			value.TupleSet(row, a.As, v)
		}
		out = append(out, row)
	}
	return newSliceResult(out), resultHeading, nil
}

func aggregateReturnType(fn string, srcTuple *rtype.Type, arg string) rtype.Handle {
	switch fn {
	case "count":
		return rtype.HandleInteger
	case "all", "any":
		return rtype.HandleBoolean
	default:
		if at, ok := srcTuple.AttrType(arg); ok {
			return at
		}
		return rtype.HandleFloat
	}
}

func aggregate(fn, arg string, rows []*value.Value) (*value.Value, *execctx.Error) {
	out := value.New()
	switch fn {
	case "count":
		value.SetInt(out, int64(len(rows)))
		return out, nil
	case "sum", "avg":
		var sum float64
		isInt := true
		var isum int64
		for _, r := range rows {
			v, err := value.TupleGet(r, arg)
			if err != nil {
				return nil, execctx.New(execctx.ErrName, "summarize: missing aggregate argument "+arg)
			}
			if v.Kind() == value.KindInt {
				i, _ := value.Int(v)
				isum += i
				sum += float64(i)
			} else {
				isInt = false
				f, _ := value.Float(v)
				sum += f
			}
		}
		if fn == "avg" {
			if len(rows) == 0 {
				return nil, execctx.New(execctx.ErrAggregateUndefined, "avg of an empty group")
			}
			value.SetFloat(out, sum/float64(len(rows)))
			return out, nil
		}
		if isInt {
			value.SetInt(out, isum)
		} else {
			value.SetFloat(out, sum)
		}
		return out, nil
	case "min", "max":
		if len(rows) == 0 {
			return nil, execctx.New(execctx.ErrAggregateUndefined, fn+" of an empty group")
		}
		best, err := value.TupleGet(rows[0], arg)
		if err != nil {
			return nil, execctx.New(execctx.ErrName, "summarize: missing aggregate argument "+arg)
		}
		for _, r := range rows[1:] {
			v, _ := value.TupleGet(r, arg)
			less, _ := numericLess(v, best)
			if (fn == "min" && less) || (fn == "max" && !less) {
				best = v
			}
		}
		return best, nil
	case "all", "any":
		acc := fn == "all"
		for _, r := range rows {
			v, err := value.TupleGet(r, arg)
			if err != nil {
				return nil, execctx.New(execctx.ErrName, "summarize: missing aggregate argument "+arg)
			}
			b, _ := value.Bool(v)
			if fn == "all" {
				acc = acc && b
			} else {
				acc = acc || b
			}
		}
		value.SetBool(out, acc)
		return out, nil
	default:
		return nil, execctx.New(execctx.ErrAggregateUndefined, fn)
	}
}

func numericLess(a, b *value.Value) (bool, *execctx.Error) {
	if a.Kind() == value.KindInt {
		av, _ := value.Int(a)
		bv, _ := value.Int(b)
		return av < bv, nil
	}
	af, _ := value.Float(a)
	bf, _ := value.Float(b)
	return af < bf, nil
}

// openDivide implements the ternary relational divide A DIVIDEBY B PER C:
// a tuple of A's non-C attributes is in the result iff, for every tuple
// of B, the matching combination (via C) also appears in A.
func openDivide(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	dividend, dividendHeading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	divisor, divisorHeading, err := Open(env, ctx, tx, n.Args[1])
	if err != nil {
		dividend.Close()
		return nil, rtype.HandleNone, err
	}
	mediator, _, err := Open(env, ctx, tx, n.Args[2])
	if err != nil {
		dividend.Close()
		divisor.Close()
		return nil, rtype.HandleNone, err
	}
	aTuples, err := drain(dividend)
	if err != nil {
		divisor.Close()
		mediator.Close()
		return nil, rtype.HandleNone, err
	}
	bTuples, err := drain(divisor)
	if err != nil {
		mediator.Close()
		return nil, rtype.HandleNone, err
	}
	cTuples, err := drain(mediator)
	if err != nil {
		return nil, rtype.HandleNone, err
	}

	aTuple := tupleHeadingOf(env, dividendHeading)
	bTuple := tupleHeadingOf(env, divisorHeading)
	bAttrNames := attrNames(bTuple)
	resultAttrs := make([]string, 0)
	for _, a := range aTuple.Attrs {
		if !containsStr(bAttrNames, a.Name) {
			resultAttrs = append(resultAttrs, a.Name)
		}
	}
	tupleHandle, derr := rtype.Project(env.Store, aTuple.Handle(), resultAttrs)
	if derr != nil {
		return nil, rtype.HandleNone, execctx.Wrap(execctx.ErrInvalidArgument, "divide", derr)
	}
	resultHeading := env.relHandleFor(tupleHandle)
	tupleType := env.Store.Get(tupleHandle)

	var out []*value.Value
	for _, a := range aTuples {
		candidate := value.NewTuple()
		candidate.SetType(tupleType)
		for _, name := range resultAttrs {
			v, _ := value.TupleGet(a, name)
			value.TupleSet(candidate, name, v)
		}
		satisfies := true
		for _, b := range bTuples {
			found := false
			for _, c := range cTuples {
				if tuplesMatchOn(c, b, bAttrNames) && tuplesMatchOn(c, candidate, resultAttrs) {
					found = true
					break
				}
			}
			if !found {
				satisfies = false
				break
			}
		}
		if satisfies {
			out = append(out, candidate)
		}
	}
	return newSliceResult(dedupe(out)), resultHeading, nil
}

func attrNames(t *rtype.Type) []string {
	out := make([]string, len(t.Attrs))
	for i, a := range t.Attrs {
		out[i] = a.Name
	}
	return out
}

func containsStr(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// openTclose implements the fixpoint iteration of spec §4.6.3 over a
// binary relation.
func openTclose(env *Env, ctx *execctx.Context, tx record.Transaction, n *expr.OpApply) (QResult, rtype.Handle, *execctx.Error) {
	src, heading, err := Open(env, ctx, tx, n.Args[0])
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	input, err := drain(src)
	if err != nil {
		return nil, rtype.HandleNone, err
	}
	tupleType := tupleHeadingOf(env, heading)
	if len(tupleType.Attrs) != 2 {
		return nil, rtype.HandleNone, execctx.New(execctx.ErrTypeMismatch, "tclose requires a binary relation")
	}
	first, second := tupleType.Attrs[0].Name, tupleType.Attrs[1].Name

	present := make(map[string]bool, len(input))
	for _, t := range input {
		present[tupleKeyAllAttrs(t)] = true
	}
	all := append([]*value.Value(nil), input...)
	var buf []*value.Value

	extend := func(from []*value.Value) bool {
		inserted := false
		for _, t := range from {
			tSecond, _ := value.TupleGet(t, second)
			for _, u := range all {
				uFirst, _ := value.TupleGet(u, first)
				eq, _ := value.Equals(tSecond, uFirst)
				if !eq {
					continue
				}
				tFirst, _ := value.TupleGet(t, first)
				uSecond, _ := value.TupleGet(u, second)
				cand := value.NewTuple()
				cand.SetType(tupleType)
				value.TupleSet(cand, first, tFirst)
				value.TupleSet(cand, second, uSecond)
				key := tupleKeyAllAttrs(cand)
				if present[key] {
					continue
				}
				present[key] = true
				buf = append(buf, cand)
				all = append(all, cand)
				inserted = true
			}
		}
		return inserted
	}

	for {
		if !extend(input) && !extend(buf) {
			break
		}
	}
	return newSliceResult(append(append([]*value.Value(nil), input...), buf...)), heading, nil
}
