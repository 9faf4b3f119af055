package transformer

import (
	"fmt"
	"strings"
)

// The transformation failure taxonomy. All errors are typed so callers can
// branch with errors.As, and all carry enough context (stage, field, row) to
// diagnose a failed run without re-running with added instrumentation.

// EmptyDatasetError reports a zero-record input collection. This is a
// distinct failure, not a trivially-valid batch: an empty upstream response
// almost always means the extraction contract broke.
type EmptyDatasetError struct{}

func (e *EmptyDatasetError) Error() string {
	return "validate: dataset is empty; refusing to treat zero records as a valid batch"
}

// SchemaValidationError reports every required field path missing from the
// collection's structural schema, so one run surfaces all schema drift.
type SchemaValidationError struct {
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("validate: required paths missing from dataset schema: %s",
		strings.Join(e.Missing, ", "))
}

// FlattenIntegrityError reports a record that produced zero rows during
// expansion. Outer expansion guarantees at least one row per record, so this
// signals an implementation bug, never bad data.
type FlattenIntegrityError struct {
	Line int
}

func (e *FlattenIntegrityError) Error() string {
	return fmt.Sprintf("flatten: record %d expanded to zero rows; outer expansion must never drop a record", e.Line)
}

// CoercionError reports a value that survived normalization but cannot be
// cast to its column's declared type.
type CoercionError struct {
	Column string
	Type   string
	Line   int
	Value  any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce: column %q record %d: cannot cast %v (%T) to %s",
		e.Column, e.Line, e.Value, e.Value, e.Type)
}
