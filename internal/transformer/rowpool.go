// Package transformer implements the transformation stage of the country
// pipeline: schema validation, outer row expansion, null normalization and
// type coercion, composed into one atomic run.
//
// This file defines a pooled Row type used across flatten → normalize →
// coerce to reduce heap churn on wide datasets.
package transformer

import "sync"

// Row is a pooled container holding one positional flat row.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer must call Free() AFTER it is fully done with the
//     Row (and anything referencing r.V).
//
// On cancellation paths use Drop() instead of Free(): re-pooling a row while
// a drain-safe stage may still read it lets the producer reuse and overwrite
// it concurrently.
type Row struct {
	V []any

	// Line is the 1-based source record number the row expanded from.
	// Seq is the expansion sequence within that record. Together they give
	// every flat row a stable identity, used both for error reporting and
	// for restoring deterministic output order after parallel stages.
	Line int
	Seq  int
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount and all elements zeroed.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		r.Seq = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
// Call this ONLY when no other goroutine can observe r or r.V.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row WITHOUT returning it to the pool.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
	r.Seq = 0
}
