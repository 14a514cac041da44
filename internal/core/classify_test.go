package core

import (
	"reflect"
	"testing"
)

func TestClassify_Scenario(t *testing.T) {
	rows, err := DecodeBytes([]byte("name,email\nAnn,a@x.com\n,bad\nBo\n"))
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}

	result := Classify(contactSchema(), rows)

	if got := result.Counts(); got != (Counts{Total: 3, Valid: 2, Invalid: 1}) {
		t.Errorf("Counts() = %+v, want 3/2/1", got)
	}

	if len(result.ValidRows) != 2 {
		t.Fatalf("ValidRows = %d, want 2", len(result.ValidRows))
	}
	ann, bo := result.ValidRows[0], result.ValidRows[1]
	if ann.String("name") != "Ann" || ann.String("email") != "a@x.com" {
		t.Errorf("first valid = %v", ann.Map())
	}
	if bo.String("name") != "Bo" {
		t.Errorf("second valid name = %q", bo.String("name"))
	}
	if email, _ := bo.Get("email"); email.Present {
		t.Error("Bo's email should be absent")
	}

	invalid := result.InvalidRows[0]
	if invalid.Index != 1 || invalid.Line != 3 {
		t.Errorf("invalid Index=%d Line=%d, want 1 and 3", invalid.Index, invalid.Line)
	}
	wantErrs := []FieldError{
		{Field: "name", Message: MsgRequired},
		{Field: "email", Message: MsgFormat, Detail: "not an email address"},
	}
	if !reflect.DeepEqual(invalid.Errors, wantErrs) {
		t.Errorf("invalid Errors = %+v, want %+v", invalid.Errors, wantErrs)
	}
	if invalid.Valid() {
		t.Error("ClassifiedRow with errors reported Valid")
	}
	if !reflect.DeepEqual(invalid.Row.Cells, []string{"", "bad"}) {
		t.Errorf("invalid Row.Cells = %q, want original cells", invalid.Row.Cells)
	}
}

func TestClassify_Partition(t *testing.T) {
	input := "name,email\n" +
		"Ann,a@x.com\n" +
		",\n" +
		"Cy,cy@\n" +
		"Di,di@x.com\n" +
		"  ,e@x.com\n" +
		"Fay,\n"
	rows, err := DecodeBytes([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}

	result := Classify(contactSchema(), rows)

	if got := len(result.ValidRows) + len(result.InvalidRows); got != len(rows) {
		t.Fatalf("valid+invalid = %d, want %d", got, len(rows))
	}

	seen := make(map[int]bool)
	last := -1
	for _, rec := range result.ValidRows {
		if rec.Index <= last {
			t.Errorf("valid rows out of order at index %d", rec.Index)
		}
		last = rec.Index
		seen[rec.Index] = true
	}
	last = -1
	for _, r := range result.InvalidRows {
		if r.Index <= last {
			t.Errorf("invalid rows out of order at index %d", r.Index)
		}
		last = r.Index
		if seen[r.Index] {
			t.Errorf("row %d is in both sets", r.Index)
		}
		seen[r.Index] = true
	}
	if len(seen) != len(rows) {
		t.Errorf("classified %d distinct rows, want %d", len(seen), len(rows))
	}
}

func TestClassify_Deterministic(t *testing.T) {
	rows, _ := DecodeBytes([]byte("name,email\nAnn,a@x.com\n,bad\nBo,\n"))

	first := Classify(contactSchema(), rows)
	second := Classify(contactSchema(), rows)

	if !reflect.DeepEqual(first, second) {
		t.Error("Classify returned different results for identical input")
	}
}

func TestClassify_RowIndependence(t *testing.T) {
	good := row([]string{"name", "email"}, "Ann", "a@x.com")
	bad := row([]string{"name", "email"}, "", "nope")

	alone := Classify(contactSchema(), []RawRow{good})
	mixed := Classify(contactSchema(), []RawRow{bad, bad, good, bad})

	if len(alone.ValidRows) != 1 || len(mixed.ValidRows) != 1 {
		t.Fatalf("valid counts alone=%d mixed=%d, want 1 each", len(alone.ValidRows), len(mixed.ValidRows))
	}
	if !alone.ValidRows[0].Equal(mixed.ValidRows[0]) {
		t.Error("a neighbouring invalid row changed a valid row's record")
	}
	if len(mixed.InvalidRows) != 3 {
		t.Errorf("InvalidRows = %d, want 3", len(mixed.InvalidRows))
	}
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	rows, _ := DecodeBytes([]byte("name,email\n  Ann  ,A@X.COM\n"))
	before := append([]string(nil), rows[0].Cells...)

	Classify(contactSchema(), rows)

	if !reflect.DeepEqual(rows[0].Cells, before) {
		t.Errorf("Cells = %q after Classify, want %q", rows[0].Cells, before)
	}
}

func TestClassify_Empty(t *testing.T) {
	result := Classify(contactSchema(), nil)

	if result.Total != 0 || len(result.ValidRows) != 0 || len(result.InvalidRows) != 0 {
		t.Errorf("Classify(nil) = %+v, want empty", result)
	}
}

func TestClassify_ColumnReport(t *testing.T) {
	rows, _ := DecodeBytes([]byte("Name,Phone\nAnn,555\n"))

	result := Classify(contactSchema(), rows)

	if !reflect.DeepEqual(result.Columns.Missing, []string{"email"}) {
		t.Errorf("Missing = %q, want [email]", result.Columns.Missing)
	}
	if !reflect.DeepEqual(result.Columns.Ignored, []string{"Phone"}) {
		t.Errorf("Ignored = %q, want [Phone]", result.Columns.Ignored)
	}
}
