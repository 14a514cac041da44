package core

// Classify validates every row independently and partitions the batch.
//
// Each decoded row lands in exactly one of ValidRows or InvalidRows, and
// both sets keep the original row order. Classify has no side effects and
// returns identical results for identical input.
func Classify(schema RecordSchema, rows []RawRow) ClassificationResult {
	result := ClassificationResult{
		Schema: schema.Name,
		Total:  len(rows),
	}

	if len(rows) > 0 {
		result.Columns = CheckColumns(schema, rows[0].Columns)
	}

	for _, row := range rows {
		rec, errs := ToRecord(schema, row)
		if len(errs) > 0 {
			result.InvalidRows = append(result.InvalidRows, ClassifiedRow{
				Index:  row.Index,
				Line:   row.Line,
				Row:    row,
				Errors: errs,
			})
			continue
		}
		result.ValidRows = append(result.ValidRows, rec)
	}

	return result
}
