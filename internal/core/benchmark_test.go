package core

import (
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Conversion Benchmarks
// ============================================================================

// BenchmarkParseNumber covers the formats accepted for number fields.
// This is a hot path for any numeric column.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"$1,234.56",
		"(123.45)",     // Accounting negative
		"1,234,567.89", // Thousands separators
		"  999.99  ",   // Whitespace
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			parseNumber(tc)
		}
	}
}

func BenchmarkParseDate(b *testing.B) {
	testCases := []string{
		"2024-01-15",
		"01/15/2024",
		"1/5/24",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			parseDate(tc)
		}
	}
}

func BenchmarkValidEmail(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		validEmail("first.last@example.com")
		validEmail("not an email")
	}
}

// ============================================================================
// Pipeline Benchmarks
// ============================================================================

func benchContacts(n int) []byte {
	var sb strings.Builder
	sb.WriteString("name,email,amount,due\n")
	for i := 0; i < n; i++ {
		if i%10 == 0 {
			// Every tenth row fails both checks
			fmt.Fprintf(&sb, ",bad-%d,x,\n", i)
			continue
		}
		fmt.Fprintf(&sb, "Contact %d,c%d@example.com,\"$%d.50\",2024-01-%02d\n", i, i, i, i%28+1)
	}
	return []byte(sb.String())
}

func benchSchema() RecordSchema {
	return RecordSchema{
		Name: "bench",
		Fields: []FieldSpec{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "email", Kind: KindEmail},
			{Name: "amount", Kind: KindNumber},
			{Name: "due", Kind: KindDate},
		},
	}
}

func BenchmarkDecodeBytes(b *testing.B) {
	data := benchContacts(1000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeBytes(data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecodeBytes_Large simulates a file near the upload limit.
func BenchmarkDecodeBytes_Large(b *testing.B) {
	data := benchContacts(100000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeBytes(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkClassify(b *testing.B) {
	rows, err := DecodeBytes(benchContacts(1000))
	if err != nil {
		b.Fatal(err)
	}
	schema := benchSchema()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Classify(schema, rows)
	}
}

func BenchmarkEncode(b *testing.B) {
	rows, err := DecodeBytes(benchContacts(1000))
	if err != nil {
		b.Fatal(err)
	}
	schema := benchSchema()
	records := Classify(schema, rows).ValidRows
	order := schema.FieldOrder()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Encode(records, order)
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

func BenchmarkClassifyParallel(b *testing.B) {
	rows, err := DecodeBytes(benchContacts(1000))
	if err != nil {
		b.Fatal(err)
	}
	schema := benchSchema()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			Classify(schema, rows)
		}
	})
}

func BenchmarkPipelineAllocs(b *testing.B) {
	data := benchContacts(100)
	schema := benchSchema()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rows, err := DecodeBytes(data)
		if err != nil {
			b.Fatal(err)
		}
		Encode(Classify(schema, rows).ValidRows, schema.FieldOrder())
	}
}
