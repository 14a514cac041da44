package core

import (
	"strings"
	"testing"
	"time"
)

func noteSchema() RecordSchema {
	return RecordSchema{
		Name: "note",
		Fields: []FieldSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "body", Kind: KindString},
			{Name: "amount", Kind: KindNumber},
			{Name: "due", Kind: KindDate},
		},
	}
}

func TestEncode(t *testing.T) {
	rows, err := DecodeBytes([]byte("title,body\nplain,\n"))
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}
	result := Classify(noteSchema(), rows)

	got := string(Encode(result.ValidRows, []string{"body", "title"}))
	want := "body,title\n,plain\n"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncode_Quoting(t *testing.T) {
	rec := Record{
		Schema: "note",
		Fields: []string{"title", "body"},
		Values: map[string]Value{
			"title": {Present: true, Text: "a, b"},
			"body":  {Present: true, Text: "say \"hi\"\nbye"},
		},
	}

	got := string(Encode([]Record{rec}, rec.Fields))
	want := "title,body\n\"a, b\",\"say \"\"hi\"\"\nbye\"\n"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	input := "title,body,amount,due,ignored\n" +
		"plain,simple,10,2024-01-02,x\n" +
		"\"comma, inside\",\"quote \"\"here\"\"\",\"$1,000.50\",,y\n" +
		"multi,\"line one\nline two\",,01/15/2024,z\n" +
		"crlf,\"a\r\nb\",(5),,\n" +
		"unicode,café ☃,,,\n" +
		"only title,,,,\n"

	rows, err := DecodeBytes([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}
	schema := noteSchema()
	original := Classify(schema, rows)
	if len(original.InvalidRows) != 0 {
		t.Fatalf("fixture has invalid rows: %+v", original.InvalidRows)
	}

	encoded := Encode(original.ValidRows, schema.FieldOrder())

	decoded, err := DecodeBytes(encoded)
	if err != nil {
		t.Fatalf("decode of encoded output failed: %v\n%s", err, encoded)
	}
	again := Classify(schema, decoded)

	if len(again.ValidRows) != len(original.ValidRows) {
		t.Fatalf("round trip valid rows = %d, want %d", len(again.ValidRows), len(original.ValidRows))
	}
	for i := range original.ValidRows {
		if !original.ValidRows[i].Equal(again.ValidRows[i]) {
			t.Errorf("row %d changed:\n got  %v\n want %v", i, again.ValidRows[i].Map(), original.ValidRows[i].Map())
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	rows, _ := DecodeBytes([]byte("title,body\na,b\nc,\"d,e\"\n"))
	records := Classify(noteSchema(), rows).ValidRows

	first := Encode(records, []string{"title", "body"})
	second := Encode(records, []string{"title", "body"})
	if string(first) != string(second) {
		t.Error("Encode is not deterministic")
	}
}

func TestExport(t *testing.T) {
	at := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)

	file := Export(noteSchema(), nil, nil, at)

	if file.Name != "note_20240305_143000.csv" {
		t.Errorf("Name = %q", file.Name)
	}
	if file.ContentType != "text/csv" {
		t.Errorf("ContentType = %q", file.ContentType)
	}
	if got := string(file.Content); got != "title,body,amount,due\n" {
		t.Errorf("Content = %q, want declared header", got)
	}
}

func TestEncodeInvalidRows(t *testing.T) {
	rows, _ := DecodeBytes([]byte("name,email\nAnn,a@x.com\n,bad\n"))
	result := Classify(contactSchema(), rows)

	got := string(EncodeInvalidRows(result))
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), got)
	}
	if lines[0] != "_line,_errors,name,email" {
		t.Errorf("header = %q", lines[0])
	}
	if want := "3,name: required; email: format (not an email address),,bad"; lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
}
