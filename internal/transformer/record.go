package transformer

import "strings"

// RawRecord is one entity as parsed from the source document: a tree of
// scalar, object, array and map-typed fields. Fields may be absent or null.
// Records are treated as immutable once received from extraction; no stage
// writes into them.
type RawRecord map[string]any

// ResolvePath walks a dotted path into v.
//
// Maps descend by key. When a step lands on an ordered list, the first
// element is taken before descending further (an empty list resolves to
// nil). This mirrors element_at(field, 1) semantics and never multiplies
// rows: list-typed fields that should expand belong in the contract's
// explode list instead.
//
// Any shape mismatch along the way (missing key, scalar where an object was
// expected) resolves to nil rather than erroring; null propagation is the
// normalizer's concern.
func ResolvePath(v any, path string) any {
	cur := v
	for path != "" {
		var seg string
		seg, path, _ = strings.Cut(path, ".")

		m, ok := asObject(firstOfList(cur))
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return firstOfList(cur)
}

// HasPath reports whether the dotted path exists structurally in rec. The
// check is about key presence, not value: a key holding an explicit null
// still counts as present.
func HasPath(rec RawRecord, path string) bool {
	var cur any = rec
	for path != "" {
		var seg string
		seg, path, _ = strings.Cut(path, ".")

		m, ok := asObject(firstOfList(cur))
		if !ok {
			return false
		}
		if cur, ok = m[seg]; !ok {
			return false
		}
	}
	return true
}

// asObject unwraps both spellings of a decoded JSON object. A record enters
// path resolution as its named RawRecord type, not the raw map, so matching
// only map[string]any would miss the top level.
func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case RawRecord:
		return t, true
	}
	return nil, false
}

func firstOfList(v any) any {
	for {
		l, ok := v.([]any)
		if !ok {
			return v
		}
		if len(l) == 0 {
			return nil
		}
		v = l[0]
	}
}
