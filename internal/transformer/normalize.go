package transformer

import (
	"context"

	"golang.org/x/text/unicode/norm"
)

// NormalizeSpec carries the per-column coalesce defaults, aligned with the
// column order.
type NormalizeSpec struct {
	defaults []any
}

// CompileNormalize aligns a column -> default mapping with the column order.
// Columns absent from the mapping keep nil (no substitution).
func CompileNormalize(columns []string, defaults map[string]any) NormalizeSpec {
	out := NormalizeSpec{defaults: make([]any, len(columns))}
	for i, c := range columns {
		out.defaults[i] = defaults[c]
	}
	return out
}

// NormalizeLoopRows applies first-non-null-wins substitution per column:
// the resolved value if non-null, otherwise the declared default. After this
// stage no column with a declared default holds nil.
//
// String values are additionally NFC-normalized. Country and currency names
// arrive in many scripts with mixed Unicode composition; normalizing here
// keeps reruns byte-identical and dedupe stable.
//
// Rows pass through in place (pooled, ownership forwarded to out). On
// cancellation remaining rows are dropped, not re-pooled.
func NormalizeLoopRows(ctx context.Context, spec NormalizeSpec, in <-chan *Row, out chan<- *Row) {
	for r := range in {
		select {
		case <-ctx.Done():
			r.Drop()
			continue
		default:
		}

		for i, v := range r.V {
			if v == nil {
				r.V[i] = spec.defaults[i]
				continue
			}
			if s, ok := v.(string); ok && !norm.NFC.IsNormalString(s) {
				r.V[i] = norm.NFC.String(s)
			}
		}

		select {
		case out <- r:
		case <-ctx.Done():
			r.Drop()
		}
	}
}
