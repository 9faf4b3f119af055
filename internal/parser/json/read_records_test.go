package json

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestReadRecords_ArrayOfObjects(t *testing.T) {
	doc := `[
	  {"name": {"common": "Testland"}, "population": 1000},
	  null,
	  {"name": {"common": "Otherland"}, "area": 12.5}
	]`

	records, err := ReadRecords(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (null skipped), got %d", len(records))
	}

	name, _ := records[0]["name"].(map[string]any)
	if name["common"] != "Testland" {
		t.Fatalf("expected Testland, got %v", name)
	}

	// Numbers stay textual so the coercer owns parsing.
	if _, ok := records[0]["population"].(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", records[0]["population"])
	}
}

func TestReadRecords_SingleObject(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(`{"name": {"common": "Solo"}}`))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestReadRecords_NonObjectElementReportsIndex(t *testing.T) {
	_, err := ReadRecords(strings.NewReader(`[{"a": 1}, 42]`))
	if err == nil {
		t.Fatalf("expected error for scalar element")
	}
	if !strings.Contains(err.Error(), "element 2") {
		t.Fatalf("expected 1-based element index in error, got %v", err)
	}
}

func TestReadRecords_EmptyDocument(t *testing.T) {
	if _, err := ReadRecords(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestReadRecords_ScalarRootRejected(t *testing.T) {
	if _, err := ReadRecords(strings.NewReader(`"just a string"`)); err == nil {
		t.Fatalf("expected error for scalar root")
	}
}

func TestReadRecords_EmptyArrayYieldsZeroRecords(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected 0 records, got %d", len(records))
	}
}
