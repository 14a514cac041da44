package store

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/JonMunkholm/recordimport/internal/core"
)

// encodePayload renders a record as a JSON object of field name to text,
// with null for absent fields.
func encodePayload(rec core.Record) ([]byte, error) {
	data, err := jsoniter.Marshal(rec.Map())
	if err != nil {
		return nil, errors.Wrapf(err, "encode record %d", rec.Index)
	}
	return data, nil
}

func decodePayload(data []byte) (map[string]*string, error) {
	var payload map[string]*string
	if err := jsoniter.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "decode record payload")
	}
	return payload, nil
}

// storedRecord is one payload read back with the source row index it was
// committed with.
type storedRecord struct {
	Index  int
	Fields map[string]*string
}

// rebuildRecords turns stored payloads back into records through the same
// validation an upload takes. Each payload becomes one row, so a record with
// every field absent is kept along with its index. Payloads that no longer
// satisfy the schema are skipped.
func rebuildRecords(schema core.RecordSchema, stored []storedRecord) ([]core.Record, error) {
	if len(stored) == 0 {
		return nil, nil
	}

	header := schema.FieldOrder()
	records := make([]core.Record, 0, len(stored))
	for _, s := range stored {
		cells := make([]string, len(header))
		for i, name := range header {
			if v := s.Fields[name]; v != nil {
				cells[i] = *v
			}
		}

		row := core.RawRow{Index: s.Index, Columns: header, Cells: cells}
		rec, errs := core.ToRecord(schema, row)
		if len(errs) > 0 {
			slog.Warn("stored record no longer matches schema",
				"schema", schema.Name,
				"row", s.Index,
				"errors", len(errs),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
