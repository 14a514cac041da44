package schemas

import (
	"testing"

	"github.com/JonMunkholm/recordimport/internal/core"
)

func TestBuiltInSchemasRegistered(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		required   []string
	}{
		{name: "contact", collection: "contacts", required: []string{"name"}},
		{name: "customer", collection: "customers", required: []string{"customer_id", "name", "email"}},
		{name: "supplier", collection: "suppliers", required: []string{"supplier_code", "name"}},
		{name: "product", collection: "products", required: []string{"sku", "name", "list_price"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, ok := core.Lookup(tt.name)
			if !ok {
				t.Fatalf("schema %q not registered", tt.name)
			}
			if schema.Target() != tt.collection {
				t.Errorf("Target() = %q, want %q", schema.Target(), tt.collection)
			}
			if schema.Label == "" {
				t.Error("Label is empty")
			}

			var required []string
			for _, f := range schema.Fields {
				if f.Required {
					required = append(required, f.Name)
				}
			}
			if len(required) != len(tt.required) {
				t.Fatalf("required fields = %q, want %q", required, tt.required)
			}
			for i := range required {
				if required[i] != tt.required[i] {
					t.Errorf("required[%d] = %q, want %q", i, required[i], tt.required[i])
				}
			}
		})
	}
}

func TestProductSchemaClassifies(t *testing.T) {
	schema, _ := core.Lookup("product")
	rows, err := core.DecodeBytes([]byte(
		"sku,name,list_price,status,launch_date\n" +
			"P-1,Widget,$12.50,Active,2024-05-01\n" +
			"P-2,Gadget,free,retired,\n",
	))
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}

	result := core.Classify(schema, rows)

	if got := result.Counts(); got != (core.Counts{Total: 2, Valid: 1, Invalid: 1}) {
		t.Fatalf("Counts() = %+v", got)
	}
	if got := result.ValidRows[0].String("status"); got != "active" {
		t.Errorf("status = %q, want canonical active", got)
	}
	if n := len(result.InvalidRows[0].Errors); n != 2 {
		t.Errorf("invalid row has %d errors, want price and status: %+v", n, result.InvalidRows[0].Errors)
	}
}
