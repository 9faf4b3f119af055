// Package json parses the raw country document into RawRecords.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"countryetl/internal/transformer"
)

// ReadRecords decodes the raw document from r into the ordered record
// collection the transformation stage consumes.
//
// Accepted shapes:
//   - a JSON array of objects (the countries API shape); elements are
//     decoded one at a time so large documents never buffer twice, and
//     null elements are skipped
//   - a single JSON object, yielding one record
//
// Numbers are decoded as json.Number: the coercer owns numeric parsing, and
// float64 round-trips would corrupt large populations.
//
// Errors carry the 1-based element index so a malformed record is easy to
// find in the raw file.
func ReadRecords(r io.Reader) ([]transformer.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("json: empty document")
		}
		return nil, fmt.Errorf("json: read first token: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}

	switch delim {
	case '[':
		var records []transformer.RawRecord
		idx := 0
		for dec.More() {
			idx++
			var raw any
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("json: decode element %d: %w", idx, err)
			}
			if raw == nil {
				continue
			}
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("json: element %d is not an object (got %T)", idx, raw)
			}
			records = append(records, transformer.RawRecord(obj))
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read array end: %w", err)
		} else if end != json.Delim(']') {
			return nil, fmt.Errorf("json: expected array end ']', got %v", end)
		}
		return records, nil

	case '{':
		// Single root object: one record. Re-decode from the buffered
		// token stream by walking the object fields.
		obj := make(map[string]any)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read object key: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("json: object key not a string (got %T)", keyTok)
			}
			var val any
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("json: decode field %q: %w", key, err)
			}
			obj[key] = val
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read object end: %w", err)
		} else if end != json.Delim('}') {
			return nil, fmt.Errorf("json: expected object end '}', got %v", end)
		}
		return []transformer.RawRecord{obj}, nil

	default:
		return nil, fmt.Errorf("json: unsupported root delimiter %q", delim)
	}
}

// ReadRecordsFile opens path and decodes it with ReadRecords.
func ReadRecordsFile(path string) ([]transformer.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("json: open raw document: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}
