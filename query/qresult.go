package query

import (
	"reld/execctx"
	"reld/value"
)

// QResult is the open/next/close iterator protocol of spec §4.6.2.
// Operators compose by wrapping each other's QResult rather than
// materializing intermediate relations, except where an operator's
// semantics require a full pass (spec §4.6.1's duplicate-elimination and
// grouping operators, transitive closure's fixpoint).
type QResult interface {
	// Next advances to the next tuple and returns it, or returns
	// (nil, nil) at end of iteration.
	Next() (*value.Value, *execctx.Error)
	// Close releases any resources (record-layer cursors) the result
	// holds open. Safe to call more than once.
	Close() *execctx.Error
}

// sliceResult is a QResult over an already-materialized tuple slice, used
// by operators that must buffer (duplicate elimination, sort, group) and
// by BaseTable.Scan, which buffers its record-layer cursor up front so
// the cursor need not outlive the call.
type sliceResult struct {
	tuples []*value.Value
	pos    int
}

func newSliceResult(tuples []*value.Value) *sliceResult {
	return &sliceResult{tuples: tuples}
}

func (r *sliceResult) Next() (*value.Value, *execctx.Error) {
	if r.pos >= len(r.tuples) {
		return nil, nil
	}
	t := r.tuples[r.pos]
	r.pos++
	return t, nil
}

func (r *sliceResult) Close() *execctx.Error { return nil }

// drain exhausts src into a slice, closing it whether or not an error
// occurs. Used by operators that need the full input before producing
// any output.
func drain(src QResult) ([]*value.Value, *execctx.Error) {
	defer src.Close()
	var out []*value.Value
	for {
		tup, err := src.Next()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			return out, nil
		}
		out = append(out, tup)
	}
}

// filterResult wraps src, yielding only tuples for which keep returns
// true (spec §4.6.1 "where").
type filterResult struct {
	src  QResult
	keep func(*value.Value) (bool, *execctx.Error)
}

func (r *filterResult) Next() (*value.Value, *execctx.Error) {
	for {
		tup, err := r.src.Next()
		if err != nil || tup == nil {
			return tup, err
		}
		ok, kerr := r.keep(tup)
		if kerr != nil {
			return nil, kerr
		}
		if ok {
			return tup, nil
		}
	}
}

func (r *filterResult) Close() *execctx.Error { return r.src.Close() }

// mapResult wraps src, transforming each tuple with fn (spec §4.6.1
// "extend"/"project"/"rename"/"wrap"/"unwrap").
type mapResult struct {
	src QResult
	fn  func(*value.Value) (*value.Value, *execctx.Error)
}

func (r *mapResult) Next() (*value.Value, *execctx.Error) {
	tup, err := r.src.Next()
	if err != nil || tup == nil {
		return tup, err
	}
	return r.fn(tup)
}

func (r *mapResult) Close() *execctx.Error { return r.src.Close() }
