package transformer

import (
	"context"
	"sort"
	"strings"

	"countryetl/internal/schema"
)

// FlattenSpec is a compiled expansion plan. Column sources are resolved to
// either an explosion index plus a sub-path, or a plain record path, once at
// compile time so the per-record loop does no string parsing.
type FlattenSpec struct {
	fields []string  // explodable field names, in declared order
	cols   []flatCol // aligned with the contract's column order
}

type flatCol struct {
	exIdx int    // index into fields, or -1 for a record path
	sub   string // "key", "value" or "value.<path>" when exIdx >= 0
	path  string // record path when exIdx < 0
}

// CompileFlatten builds the expansion plan for a contract. The contract is
// assumed to have passed Validate.
func CompileFlatten(c schema.Contract) FlattenSpec {
	spec := FlattenSpec{fields: make([]string, len(c.Explode))}

	aliasIdx := make(map[string]int, len(c.Explode))
	for i, ex := range c.Explode {
		spec.fields[i] = ex.Field
		aliasIdx[ex.As] = i
	}

	spec.cols = make([]flatCol, len(c.Columns))
	for i, col := range c.Columns {
		fc := flatCol{exIdx: -1, path: col.Source}
		if alias, rest, ok := strings.Cut(col.Source, "."); ok {
			if idx, isAlias := aliasIdx[alias]; isAlias {
				fc = flatCol{exIdx: idx, sub: rest}
			}
		}
		spec.cols[i] = fc
	}
	return spec
}

// entry is one (key, value) pair of an exploded map field. ok=false marks
// the null placeholder entry an absent or empty field contributes.
type entry struct {
	key   string
	value any
	ok    bool
}

// FlattenRecords expands every record into flat rows on out.
//
// Expansion is sequential outer expansion: each explodable field multiplies
// the row count by max(|entries|, 1), so a record nets the Cartesian product
// of its entry counts and a record with no entries in any explodable field
// still yields exactly one row. Map entries are visited in sorted key order
// so reruns produce identical output.
//
// Rows are pooled; ownership transfers to the consumer of out. The producer
// stops at the first ctx cancellation.
func FlattenRecords(ctx context.Context, spec FlattenSpec, records []RawRecord, out chan<- *Row) error {
	for i, rec := range records {
		line := i + 1
		if err := flattenRecord(ctx, spec, rec, line, out); err != nil {
			return err
		}
	}
	return nil
}

func flattenRecord(ctx context.Context, spec FlattenSpec, rec RawRecord, line int, out chan<- *Row) error {
	perField := make([][]entry, len(spec.fields))
	for i, field := range spec.fields {
		perField[i] = mapEntries(rec[field])
	}

	// Odometer over the per-field entry lists. Every list has at least the
	// placeholder entry, so the product is never empty.
	idx := make([]int, len(perField))
	emitted := 0
	for {
		row := GetRow(len(spec.cols))
		row.Line = line
		row.Seq = emitted

		for c, fc := range spec.cols {
			if fc.exIdx < 0 {
				row.V[c] = ResolvePath(rec, fc.path)
				continue
			}
			row.V[c] = resolveEntry(perField[fc.exIdx][idx[fc.exIdx]], fc.sub)
		}

		select {
		case out <- row:
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
		emitted++

		carry := len(idx) - 1
		for carry >= 0 {
			idx[carry]++
			if idx[carry] < len(perField[carry]) {
				break
			}
			idx[carry] = 0
			carry--
		}
		if carry < 0 {
			break
		}
	}

	if emitted == 0 {
		return &FlattenIntegrityError{Line: line}
	}
	return nil
}

// mapEntries lists an explodable field's entries sorted by key. Anything
// that is not a non-empty map (absent, null, empty, or a malformed scalar)
// contributes the single null placeholder entry instead.
func mapEntries(v any) []entry {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return []entry{{}}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]entry, len(keys))
	for i, k := range keys {
		out[i] = entry{key: k, value: m[k], ok: true}
	}
	return out
}

// resolveEntry reads a sub-path of an exploded entry. Malformed entries
// (missing value half, scalar where an object was expected) resolve to nil
// for that row rather than erroring.
func resolveEntry(e entry, sub string) any {
	if !e.ok {
		return nil
	}
	switch {
	case sub == "key":
		return e.key
	case sub == "value":
		return firstOfList(e.value)
	case strings.HasPrefix(sub, "value."):
		return ResolvePath(e.value, sub[len("value."):])
	default:
		return nil
	}
}
