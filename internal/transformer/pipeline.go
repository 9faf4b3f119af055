package transformer

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"countryetl/internal/metrics"
	"countryetl/internal/schema"
)

// Logger is the minimal logging interface used by the pipeline.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Options controls one pipeline run. The zero value is usable: one worker,
// default buffers, abort-on-coercion-failure, no dedupe.
type Options struct {
	// TransformWorkers sets the normalize and coerce parallelism. Row
	// transforms are independent, so any worker count produces the same
	// table; output order is restored from row provenance.
	TransformWorkers int
	ChannelBuffer    int

	// Distinct drops duplicate finalized rows (first occurrence wins).
	Distinct bool

	// CoercePolicy is PolicyAbort (default) or PolicyDefault.
	CoercePolicy string

	// Job tags metrics for this run.
	Job    string
	Logger Logger
}

// Table is the finalized tabular dataset handed to the load collaborator:
// fixed columns, declared types, no nulls in any declared-default column.
type Table struct {
	Columns []string
	Types   map[string]string
	Rows    [][]any
}

// Run executes the transformation stage: validate → flatten → normalize →
// coerce (→ distinct), strictly in that order.
//
// The run is atomic: any stage failure returns a nil table and frees every
// row produced so far; there is no partial output. The transformation is
// pure over the immutable input records, so re-running on the same input
// yields a byte-identical table.
func Run(ctx context.Context, contract schema.Contract, records []RawRecord, opts Options) (*Table, error) {
	logf := pipelineLogger(opts.Logger)
	totalStart := time.Now()

	if err := contract.Validate(); err != nil {
		return nil, err
	}

	validateStart := time.Now()
	err := ValidateRecords(records, contract.RequiredPaths)
	metrics.RecordStage(opts.Job, "validate", err, time.Since(validateStart))
	if err != nil {
		return nil, err
	}
	logf("stage=validate ok records=%d required_paths=%d duration=%s",
		len(records), len(contract.RequiredPaths), durMS(validateStart))

	columns := contract.ColumnNames()
	flattenSpec := CompileFlatten(contract)
	normSpec := CompileNormalize(columns, contract.Defaults())
	coerceSpec := CoerceSpec{
		Types:    contract.Types(),
		Policy:   opts.CoercePolicy,
		Defaults: contract.Defaults(),
	}

	buf := opts.ChannelBuffer
	if buf <= 0 {
		buf = 256
	}
	workers := opts.TransformWorkers
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First failure wins and cancels the whole run.
	var failOnce sync.Once
	var failErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		failOnce.Do(func() {
			failErr = err
			cancel()
		})
	}

	flatCh := make(chan *Row, buf)
	normCh := make(chan *Row, buf)
	finalCh := make(chan *Row, buf)

	expandStart := time.Now()

	// Producer: expand records into flat rows.
	var wgFlatten sync.WaitGroup
	wgFlatten.Add(1)
	go func() {
		defer wgFlatten.Done()
		defer close(flatCh)
		if err := FlattenRecords(ctx, flattenSpec, records, flatCh); err != nil && ctx.Err() == nil {
			fail(err)
		}
	}()

	// Normalize workers.
	var wgNorm sync.WaitGroup
	wgNorm.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wgNorm.Done()
			NormalizeLoopRows(ctx, normSpec, flatCh, normCh)
		}()
	}
	go func() {
		wgNorm.Wait()
		close(normCh)
	}()

	// Coerce workers.
	var wgCoerce sync.WaitGroup
	wgCoerce.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wgCoerce.Done()
			CoerceLoopRows(ctx, columns, coerceSpec, normCh, finalCh, func(cerr *CoercionError) {
				fail(cerr)
			})
		}()
	}
	go func() {
		wgCoerce.Wait()
		close(finalCh)
	}()

	// Collect. Parallel stages reorder rows; provenance restores determinism.
	rows := make([]*Row, 0, len(records))
	for r := range finalCh {
		rows = append(rows, r)
	}

	if failErr == nil && ctx.Err() != nil {
		fail(ctx.Err())
	}
	if failErr != nil {
		for _, r := range rows {
			r.Free()
		}
		metrics.RecordStage(opts.Job, "transform", failErr, time.Since(expandStart))
		return nil, failErr
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Line != rows[j].Line {
			return rows[i].Line < rows[j].Line
		}
		return rows[i].Seq < rows[j].Seq
	})

	metrics.RecordStage(opts.Job, "transform", nil, time.Since(expandStart))
	metrics.RecordRows(opts.Job, "flattened", len(rows))
	logf("stage=transform ok records=%d rows=%d workers=%d duration=%s",
		len(records), len(rows), workers, durMS(expandStart))

	if opts.Distinct {
		distinctStart := time.Now()
		var dropped int
		rows, dropped = DedupeRows(rows)
		metrics.RecordRows(opts.Job, "duplicate", dropped)
		logf("stage=distinct ok kept=%d dropped=%d duration=%s",
			len(rows), dropped, durMS(distinctStart))
	}

	if n := countNegative(columns, "population", rows); n > 0 {
		// Warn-only quality check; negative populations are suspicious but
		// not a batch failure.
		metrics.RecordRows(opts.Job, "invalid_population", n)
		logf("stage=quality warn=invalid_population rows=%d", n)
	}

	table := &Table{
		Columns: columns,
		Types:   contract.Types(),
		Rows:    make([][]any, len(rows)),
	}
	for i, r := range rows {
		out := make([]any, len(r.V))
		copy(out, r.V)
		table.Rows[i] = out
		r.Free()
	}

	metrics.RecordRows(opts.Job, "final", len(table.Rows))
	logf("stage=pipeline ok rows=%d duration=%s", len(table.Rows), durMS(totalStart))
	return table, nil
}

func countNegative(columns []string, name string, rows []*Row) int {
	idx := -1
	for i, c := range columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0
	}
	n := 0
	for _, r := range rows {
		switch v := r.V[idx].(type) {
		case int64:
			if v < 0 {
				n++
			}
		case float64:
			if v < 0 {
				n++
			}
		}
	}
	return n
}

func pipelineLogger(l Logger) func(format string, v ...any) {
	if l == nil {
		nop := log.New(discardWriter{}, "", 0)
		return nop.Printf
	}
	return l.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
