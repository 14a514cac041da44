package core

// encode.go is the export direction: records back to delimited text.
//
// Quoting follows RFC 4180 through encoding/csv: a field containing the
// separator, a quote, CR or LF (or starting with a space) is wrapped in
// quotes and inner quotes are doubled. That is exactly what DecodeBytes
// undoes, so decoding an encoded batch reproduces the records.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// ExportFile is encoded text ready for a delivery collaborator.
type ExportFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// Encode renders a header from fieldOrder followed by one line per record.
// Fields a record does not hold, or holds as absent, render as "".
func Encode(records []Record, fieldOrder []string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// Writes to a bytes.Buffer do not fail
	_ = w.Write(fieldOrder)

	line := make([]string, len(fieldOrder))
	for _, rec := range records {
		for i, name := range fieldOrder {
			line[i] = rec.String(name)
		}
		_ = w.Write(line)
	}

	w.Flush()
	return buf.Bytes()
}

// Export encodes records for download. An empty fieldOrder exports the
// schema's declared fields.
func Export(schema RecordSchema, records []Record, fieldOrder []string, at time.Time) ExportFile {
	if len(fieldOrder) == 0 {
		fieldOrder = schema.FieldOrder()
	}

	return ExportFile{
		Name:        fmt.Sprintf("%s_%s.csv", schema.Name, at.Format("20060102_150405")),
		ContentType: "text/csv",
		Content:     Encode(records, fieldOrder),
	}
}

// EncodeInvalidRows renders the invalid rows of a classification with their
// source line and errors ahead of the original cells, so operators can fix
// and re-upload them.
func EncodeInvalidRows(result ClassificationResult) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var columns []string
	if len(result.InvalidRows) > 0 {
		columns = result.InvalidRows[0].Row.Columns
	}

	_ = w.Write(append([]string{"_line", "_errors"}, columns...))

	for _, row := range result.InvalidRows {
		record := append([]string{
			strconv.Itoa(row.Line),
			describeErrors(row.Errors),
		}, row.Row.Cells...)
		_ = w.Write(record)
	}

	w.Flush()
	return buf.Bytes()
}
