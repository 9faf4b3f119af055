package transformer

// ValidateRecords confirms every required dotted path exists in the
// collection's structural schema before any transformation runs.
//
// Presence is structural and collection-wide: a path is satisfied when ANY
// record carries the column, even with a null value. This mirrors how a
// dataframe engine unions per-record schemas during inference, except the
// required set is declared instead of inferred.
//
// Failure modes:
//   - zero records: *EmptyDatasetError
//   - one or more paths absent from every record: *SchemaValidationError
//     listing all of them, in the order they were declared
//
// This is a pure gate: no records are modified and no partial results leak.
func ValidateRecords(records []RawRecord, requiredPaths []string) error {
	if len(records) == 0 {
		return &EmptyDatasetError{}
	}

	var missing []string
	for _, path := range requiredPaths {
		found := false
		for _, rec := range records {
			if HasPath(rec, path) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return &SchemaValidationError{Missing: missing}
	}
	return nil
}
