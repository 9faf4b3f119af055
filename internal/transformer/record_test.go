package transformer

import "testing"

func TestResolvePath_AcceptsRawRecordAtTopLevel(t *testing.T) {
	rec := RawRecord{
		"name":       map[string]any{"common": "Testland"},
		"population": "1000",
	}

	// The record arrives as its named type, never pre-converted to the
	// bare map. Both top-level and nested paths must resolve.
	if got := ResolvePath(rec, "population"); got != "1000" {
		t.Fatalf("expected 1000, got %v", got)
	}
	if got := ResolvePath(rec, "name.common"); got != "Testland" {
		t.Fatalf("expected Testland, got %v", got)
	}
}

func TestResolvePath_FirstListElementAtEachStep(t *testing.T) {
	rec := RawRecord{
		"capital": []any{"First City", "Second City"},
		"nested":  []any{map[string]any{"x": "hit"}},
	}

	if got := ResolvePath(rec, "capital"); got != "First City" {
		t.Fatalf("expected first element, got %v", got)
	}
	if got := ResolvePath(rec, "nested.x"); got != "hit" {
		t.Fatalf("expected descent through first list element, got %v", got)
	}
}

func TestResolvePath_ShapeMismatchResolvesToNil(t *testing.T) {
	rec := RawRecord{
		"scalar":  "leaf",
		"capital": []any{},
	}

	if got := ResolvePath(rec, "missing"); got != nil {
		t.Fatalf("expected nil for absent key, got %v", got)
	}
	if got := ResolvePath(rec, "scalar.deeper"); got != nil {
		t.Fatalf("expected nil when descending into a scalar, got %v", got)
	}
	if got := ResolvePath(rec, "capital"); got != nil {
		t.Fatalf("expected nil for empty list, got %v", got)
	}
}
