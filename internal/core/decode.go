package core

// decode.go turns delimited text into RawRows.
//
// The first non-blank line is the header. Every later line is zipped to the
// header names: short lines are padded with "", long lines are truncated,
// and whitespace-only lines are skipped without consuming a row index. No
// value is trimmed or coerced here; typed interpretation belongs to the
// validator.

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode reads all of r and decodes it. Use DecodeBytes when the content is
// already in memory.
func Decode(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read import content")
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes comma-separated text with a header line.
func DecodeBytes(data []byte) ([]RawRow, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	// A stray quote in one cell stays literal text so the rest of the
	// batch still decodes.
	r.LazyQuotes = true

	var (
		header []string
		rows   []RawRow
	)

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &DecodeError{Reason: MalformedInput, Line: perr.Line, Detail: perr.Err.Error()}
			}
			return nil, &DecodeError{Reason: MalformedInput, Detail: err.Error()}
		}

		line, _ := r.FieldPos(0)

		if isBlankLine(record) {
			continue
		}

		if header == nil {
			header, err = parseHeader(record, line)
			if err != nil {
				return nil, err
			}
			continue
		}

		rows = append(rows, zipRow(header, record, len(rows), line))
	}

	if header == nil {
		return nil, malformedHeader(0, "no header line")
	}

	return rows, nil
}

// DecodeRecords decodes an already-split row source whose first non-blank
// entry is the header. Rows whose cells are all blank are skipped. Lines are
// numbered by position, starting at 1.
func DecodeRecords(records [][]string) ([]RawRow, error) {
	var (
		header []string
		rows   []RawRow
		err    error
	)

	for i, record := range records {
		line := i + 1
		if isEmptyRow(record) {
			continue
		}
		if header == nil {
			if header, err = parseHeader(record, line); err != nil {
				return nil, err
			}
			continue
		}
		rows = append(rows, zipRow(header, record, len(rows), line))
	}

	if header == nil {
		return nil, malformedHeader(0, "no header line")
	}

	return rows, nil
}

func parseHeader(record []string, line int) ([]string, error) {
	header := make([]string, len(record))
	seen := make(map[string]int, len(record))

	for i, raw := range record {
		name := cleanHeader(raw)
		if name == "" {
			return nil, malformedHeader(line, "column %d has no name", i+1)
		}
		key := strings.ToLower(name)
		if first, dup := seen[key]; dup {
			return nil, malformedHeader(line, "duplicate column %q (columns %d and %d)", name, first+1, i+1)
		}
		seen[key] = i
		header[i] = name
	}

	return header, nil
}

func zipRow(header, record []string, index, line int) RawRow {
	cells := make([]string, len(header))
	copy(cells, record)
	return RawRow{
		Index:   index,
		Line:    line,
		Columns: header,
		Cells:   cells,
	}
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// isBlankLine reports whether a tokenized text line held only whitespace.
// A line with separators is a row of empty cells, not a blank line.
func isBlankLine(record []string) bool {
	return len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "")
}

// isEmptyRow reports whether every cell of a pre-split row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
