package transformer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"countryetl/internal/schema"
)

// Coercion policies for values that are non-null but cannot be cast.
const (
	// PolicyAbort fails the batch on the first uncastable value. This is
	// the default: silently defaulting genuinely malformed numerics hides
	// data-quality defects from downstream analytics.
	PolicyAbort = "abort"

	// PolicyDefault substitutes the column's declared default and counts
	// the substitution instead of failing.
	PolicyDefault = "default"
)

// CoerceSpec declares target types per column and the failure policy.
type CoerceSpec struct {
	// Types maps column name -> schema type (text, integer, real).
	// Columns absent from the map pass through untouched.
	Types map[string]string

	// Policy is PolicyAbort (default when empty) or PolicyDefault.
	Policy string

	// Defaults supplies substitution values for PolicyDefault.
	Defaults map[string]any
}

type plan struct {
	cols []planCol
}

type planCol struct {
	name string
	typ  string
	def  any

	// coerce writes the cast of v into *dst and reports success. A nil
	// coerce func means the column has no declared type.
	coerce func(dst *any, v any) bool
}

func compilePlan(columns []string, spec CoerceSpec) plan {
	p := plan{cols: make([]planCol, len(columns))}
	for i, name := range columns {
		pc := planCol{name: name, typ: spec.Types[name], def: spec.Defaults[name]}
		switch pc.typ {
		case schema.TypeText:
			pc.coerce = coerceText
		case schema.TypeInteger:
			pc.coerce = coerceInteger
		case schema.TypeReal:
			pc.coerce = coerceReal
		}
		p.cols[i] = pc
	}
	return p
}

// CoerceLoopRows casts each declared column to its canonical Go type:
// text -> string, integer -> int64, real -> float64.
//
// Nil values pass through (the normalizer owns null substitution; a nil here
// means the column declared no default, which is a deliberate contract
// choice). Uncastable non-nil values follow spec.Policy: onErr receives a
// *CoercionError identifying the column, record and offending value, and for
// PolicyAbort the caller is expected to cancel ctx. The row is freed on
// abort so no partial output leaks.
func CoerceLoopRows(
	ctx context.Context,
	columns []string,
	spec CoerceSpec,
	in <-chan *Row,
	out chan<- *Row,
	onErr func(err *CoercionError),
) {
	p := compilePlan(columns, spec)
	substitute := spec.Policy == PolicyDefault

	for r := range in {
		select {
		case <-ctx.Done():
			r.Drop()
			continue
		default:
		}

		bad := false
		for i, pc := range p.cols {
			if pc.coerce == nil || r.V[i] == nil {
				continue
			}
			if pc.coerce(&r.V[i], r.V[i]) {
				continue
			}
			if substitute && pc.def != nil {
				var dst any = pc.def
				// Declared defaults are trusted to match the column type;
				// normalize int defaults to int64 for stable row typing.
				if pc.coerce(&dst, pc.def) {
					r.V[i] = dst
					continue
				}
			}
			if onErr != nil {
				onErr(&CoercionError{Column: pc.name, Type: pc.typ, Line: r.Line, Value: r.V[i]})
			}
			bad = true
			break
		}
		if bad {
			r.Free()
			continue
		}

		select {
		case out <- r:
		case <-ctx.Done():
			r.Drop()
		}
	}
}

func coerceText(dst *any, v any) bool {
	switch t := v.(type) {
	case string:
		*dst = t
	case json.Number:
		*dst = t.String()
	case bool:
		*dst = strconv.FormatBool(t)
	case int64:
		*dst = strconv.FormatInt(t, 10)
	case float64:
		*dst = strconv.FormatFloat(t, 'g', -1, 64)
	default:
		*dst = fmt.Sprintf("%v", t)
	}
	return true
}

// coerceInteger truncates fractional input the way an analytical engine's
// int cast does: 12.9 becomes 12, not an error.
func coerceInteger(dst *any, v any) bool {
	switch t := v.(type) {
	case int64:
		*dst = t
		return true
	case int:
		*dst = int64(t)
		return true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return false
		}
		*dst = int64(t)
		return true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			*dst = n
			return true
		}
		if f, err := t.Float64(); err == nil {
			*dst = int64(f)
			return true
		}
		return false
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*dst = n
			return true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			*dst = int64(f)
			return true
		}
		return false
	default:
		return false
	}
}

func coerceReal(dst *any, v any) bool {
	switch t := v.(type) {
	case float64:
		*dst = t
		return true
	case int64:
		*dst = float64(t)
		return true
	case int:
		*dst = float64(t)
		return true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false
		}
		*dst = f
		return true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return false
		}
		*dst = f
		return true
	default:
		return false
	}
}
