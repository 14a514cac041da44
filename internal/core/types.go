package core

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Kind is the declared semantic type of a field, used for format validation
// and for coercing raw strings into typed values.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindEmail
	KindDate
	KindBool
	KindEnum
)

// String returns the lowercase kind name used in schemas and API responses.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindEmail:
		return "email"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// MarshalText lets kinds render as names in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FieldSpec declares the constraints for a single field of a record type.
type FieldSpec struct {
	Name       string   // Column header name (matched case-insensitively)
	Kind       Kind     // Expected value kind
	Required   bool     // Value must be present and non-blank
	EnumValues []string // Allowed values for KindEnum
}

// RecordSchema is the data-driven definition of one record type.
// Schemas are immutable once registered; the registry hands out copies.
type RecordSchema struct {
	Name       string      // Unique identifier: "contact"
	Label      string      // Display name: "Contacts"
	Collection string      // Target collection for commits (defaults to Name)
	Fields     []FieldSpec // Declared fields in export order
}

// FieldOrder returns the declared field names in declaration order.
func (s RecordSchema) FieldOrder() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the spec for a declared field, matched case-insensitively.
func (s RecordSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Target returns the collection that committed records are written to.
func (s RecordSchema) Target() string {
	if s.Collection != "" {
		return s.Collection
	}
	return s.Name
}

func (s RecordSchema) clone() RecordSchema {
	c := s
	c.Fields = make([]FieldSpec, len(s.Fields))
	for i, f := range s.Fields {
		c.Fields[i] = f
		if f.EnumValues != nil {
			c.Fields[i].EnumValues = append([]string(nil), f.EnumValues...)
		}
	}
	return c
}

// RawRow is one decoded data line: header names zipped with untyped cell values.
// Rows are never mutated after the decoder produces them.
type RawRow struct {
	Index   int      // 0-based position among decoded (non-blank) rows
	Line    int      // 1-based line in the source text, for diagnostics
	Columns []string // Header names in column order (shared across a batch)
	Cells   []string // Cell values, always len(Columns)
}

// Get returns the raw value for a column, matched case-insensitively.
// The second result is false when the header has no such column.
func (r RawRow) Get(name string) (string, bool) {
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return r.Cells[i], true
		}
	}
	return "", false
}

// Values returns the row as a column name to value map.
func (r RawRow) Values() map[string]string {
	values := make(map[string]string, len(r.Columns))
	for i, col := range r.Columns {
		values[col] = r.Cells[i]
	}
	return values
}

// Field error messages. A FieldError carries exactly one of these.
const (
	MsgRequired = "required"
	MsgFormat   = "format"
)

// FieldError describes one failed constraint on one field of one row.
// Field errors are data: they are accumulated per row, never returned as error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e FieldError) String() string {
	if e.Detail != "" {
		return e.Field + ": " + e.Message + " (" + e.Detail + ")"
	}
	return e.Field + ": " + e.Message
}

// ClassifiedRow is a row with its validation outcome.
type ClassifiedRow struct {
	Index  int          `json:"index"`
	Line   int          `json:"line"`
	Row    RawRow       `json:"-"`
	Errors []FieldError `json:"errors"`
}

// Valid reports whether the row passed validation.
func (c ClassifiedRow) Valid() bool {
	return len(c.Errors) == 0
}

// Value is one typed field of a Record. Absent optional fields have
// Present=false and no typed payload; they are never defaulted.
type Value struct {
	Kind    Kind
	Present bool
	Text    string         // Canonical text form, rendered by the encoder
	Number  pgtype.Numeric // Set for KindNumber
	Date    pgtype.Date    // Set for KindDate
	Bool    pgtype.Bool    // Set for KindBool
}

// Record is a validated row coerced to the schema's declared fields.
// Undeclared columns are dropped.
type Record struct {
	Schema string
	Index  int // Source row index
	Fields []string
	Values map[string]Value
}

// Get returns the value of a declared field.
func (r Record) Get(name string) (Value, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// String renders a field using the single stringification rule shared by
// preview and export: the canonical text, or "" when absent.
func (r Record) String(name string) string {
	v, ok := r.Values[name]
	if !ok || !v.Present {
		return ""
	}
	return v.Text
}

// Map returns the present fields as strings and absent fields as nil.
func (r Record) Map() map[string]*string {
	m := make(map[string]*string, len(r.Fields))
	for _, name := range r.Fields {
		v := r.Values[name]
		if !v.Present {
			m[name] = nil
			continue
		}
		text := v.Text
		m[name] = &text
	}
	return m
}

// Equal reports whether two records hold the same fields with the same
// presence and text. The source index is not compared.
func (r Record) Equal(o Record) bool {
	if r.Schema != o.Schema || len(r.Fields) != len(o.Fields) {
		return false
	}
	for i, name := range r.Fields {
		if o.Fields[i] != name {
			return false
		}
		a, b := r.Values[name], o.Values[name]
		if a.Present != b.Present || a.Kind != b.Kind || a.Text != b.Text {
			return false
		}
	}
	return true
}

// Counts summarizes a classification for the presenter.
type Counts struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// ColumnReport lists header mismatches against the schema.
type ColumnReport struct {
	Missing []string `json:"missing,omitempty"` // Declared fields with no column
	Ignored []string `json:"ignored,omitempty"` // Columns not declared by the schema
}

// ClassificationResult partitions one batch into valid records and invalid rows.
// Every decoded row appears in exactly one set, in original order.
type ClassificationResult struct {
	Schema      string
	Total       int
	ValidRows   []Record
	InvalidRows []ClassifiedRow
	Columns     ColumnReport
}

// Counts returns the row counts of the result.
func (c ClassificationResult) Counts() Counts {
	return Counts{
		Total:   c.Total,
		Valid:   len(c.ValidRows),
		Invalid: len(c.InvalidRows),
	}
}

func (c ClassificationResult) clone() ClassificationResult {
	out := c
	out.ValidRows = cloneRecords(c.ValidRows)
	out.InvalidRows = make([]ClassifiedRow, len(c.InvalidRows))
	for i, row := range c.InvalidRows {
		out.InvalidRows[i] = row
		out.InvalidRows[i].Errors = append([]FieldError(nil), row.Errors...)
	}
	out.Columns = ColumnReport{
		Missing: append([]string(nil), c.Columns.Missing...),
		Ignored: append([]string(nil), c.Columns.Ignored...),
	}
	return out
}

func cloneRecords(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		values := make(map[string]Value, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		out[i] = Record{
			Schema: r.Schema,
			Index:  r.Index,
			Fields: append([]string(nil), r.Fields...),
			Values: values,
		}
	}
	return out
}
