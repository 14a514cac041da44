package core

// validation.go checks one candidate row against a record schema.
//
// Validation is purely per row: it never looks at other rows, so one bad row
// can not change the outcome of another. A row with no FieldErrors is
// structurally valid and can be coerced into a typed Record.

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Validate returns every constraint the row breaks, in declared field order.
// Columns present in the row but not declared by the schema are ignored.
func Validate(schema RecordSchema, row RawRow) []FieldError {
	var errs []FieldError

	for _, spec := range schema.Fields {
		raw, _ := row.Get(spec.Name)
		value := strings.TrimSpace(raw)

		if value == "" {
			if spec.Required {
				errs = append(errs, FieldError{Field: spec.Name, Message: MsgRequired})
			}
			continue
		}

		if detail := checkKind(value, spec); detail != "" {
			errs = append(errs, FieldError{Field: spec.Name, Message: MsgFormat, Detail: detail})
		}
	}

	return errs
}

// checkKind returns a human-readable reason when a non-empty value does not
// parse as the field's kind, or "" when it does.
func checkKind(value string, spec FieldSpec) string {
	switch spec.Kind {
	case KindNumber:
		if _, ok := parseNumber(value); !ok {
			return "not a number"
		}
	case KindEmail:
		if !validEmail(value) {
			return "not an email address"
		}
	case KindDate:
		if _, ok := parseDate(value); !ok {
			return "not a date (use YYYY-MM-DD or similar)"
		}
	case KindBool:
		if _, ok := parseBool(value); !ok {
			return "must be yes/no, true/false, or 1/0"
		}
	case KindEnum:
		if len(spec.EnumValues) > 0 && !validEnum(value, spec.EnumValues) {
			return "must be one of: " + strings.Join(spec.EnumValues, ", ")
		}
	}
	return ""
}

// ToRecord validates the row and, when it has no errors, coerces the declared
// fields into a Record. Optional fields that are absent or blank map to a
// Value with Present=false.
func ToRecord(schema RecordSchema, row RawRow) (Record, []FieldError) {
	if errs := Validate(schema, row); len(errs) > 0 {
		return Record{}, errs
	}

	rec := Record{
		Schema: schema.Name,
		Index:  row.Index,
		Fields: schema.FieldOrder(),
		Values: make(map[string]Value, len(schema.Fields)),
	}

	for _, spec := range schema.Fields {
		raw, _ := row.Get(spec.Name)
		rec.Values[spec.Name] = coerce(strings.TrimSpace(raw), spec)
	}

	return rec, nil
}

// coerce builds the typed value for an already validated cell.
func coerce(value string, spec FieldSpec) Value {
	v := Value{Kind: spec.Kind}
	if value == "" {
		return v
	}

	v.Present = true
	v.Text = value

	switch spec.Kind {
	case KindNumber:
		v.Number, _ = parseNumber(value)
	case KindDate:
		v.Date, _ = parseDate(value)
	case KindBool:
		v.Bool, _ = parseBool(value)
	case KindEnum:
		// Canonical spelling from the schema, so "ACTIVE" and "active" encode alike
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, value) {
				v.Text = ev
				break
			}
		}
	}

	return v
}

// CheckColumns compares a decoded header against the schema. Missing lists
// declared fields with no column; Ignored lists undeclared columns.
func CheckColumns(schema RecordSchema, columns []string) ColumnReport {
	var report ColumnReport

	for _, spec := range schema.Fields {
		found := false
		for _, col := range columns {
			if strings.EqualFold(col, spec.Name) {
				found = true
				break
			}
		}
		if !found {
			report.Missing = append(report.Missing, spec.Name)
		}
	}

	for _, col := range columns {
		if _, ok := schema.Field(col); !ok {
			report.Ignored = append(report.Ignored, col)
		}
	}

	return report
}

// describeErrors joins field errors into one line for logs and CSV export.
func describeErrors(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// ValidateSchema reports declaration mistakes a registry would otherwise
// accept silently, such as an enum field without allowed values.
func ValidateSchema(schema RecordSchema) error {
	if len(schema.Fields) == 0 {
		return errors.Newf("record schema %s declares no fields", schema.Name)
	}
	for _, f := range schema.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return errors.Newf("record schema %s has a field with no name", schema.Name)
		}
		if f.Kind == KindEnum && len(f.EnumValues) == 0 {
			return errors.Newf("record schema %s: enum field %q has no allowed values", schema.Name, f.Name)
		}
	}
	return nil
}
