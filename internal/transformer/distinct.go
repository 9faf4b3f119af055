package transformer

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

// DedupeRows drops rows whose canonical encoding was already seen, keeping
// the first occurrence. It runs over the already-sorted finalized rows, so
// "first" is deterministic regardless of worker count. Dropped rows are
// freed; the kept slice reuses the input backing array.
func DedupeRows(rows []*Row) (kept []*Row, dropped int) {
	seen := make(map[[32]byte]struct{}, len(rows))
	kept = rows[:0]

	var b strings.Builder
	for _, r := range rows {
		b.Reset()
		for i, v := range r.V {
			if i > 0 {
				b.WriteByte('\x1f')
			}
			appendCanonicalValue(&b, v)
		}
		key := sha256.Sum256([]byte(b.String()))
		if _, dup := seen[key]; dup {
			r.Free()
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
	}
	return kept, dropped
}

// appendCanonicalValue writes a stable textual form of v. Missing values are
// encoded as a NUL byte so nil differs from empty string. Rows reach this
// point already coerced, so only the canonical post-coercion types matter;
// the fallback quotes anything exotic via strconv to stay deterministic.
func appendCanonicalValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte(0x00)
	case string:
		b.WriteString(t)
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(t))
	default:
		// Stable-ish representation for anything exotic.
		fmt.Fprintf(b, "%v", t)
	}
}
