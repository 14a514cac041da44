package schemas

import "github.com/JonMunkholm/recordimport/internal/core"

func init() {
	registerSuppliers()
	registerProducts()
}

func registerSuppliers() {
	core.Register(core.RecordSchema{
		Name:       "supplier",
		Label:      "Suppliers",
		Collection: "suppliers",
		Fields: []core.FieldSpec{
			{Name: "supplier_code", Kind: core.KindString, Required: true},
			{Name: "name", Kind: core.KindString, Required: true},
			{Name: "contact_email", Kind: core.KindEmail},
			{Name: "country", Kind: core.KindString},
			{Name: "payment_terms", Kind: core.KindEnum, EnumValues: []string{"net15", "net30", "net60", "prepaid"}},
			{Name: "lead_time_days", Kind: core.KindNumber},
		},
	})
}

func registerProducts() {
	core.Register(core.RecordSchema{
		Name:       "product",
		Label:      "Products",
		Collection: "products",
		Fields: []core.FieldSpec{
			{Name: "sku", Kind: core.KindString, Required: true},
			{Name: "name", Kind: core.KindString, Required: true},
			{Name: "category", Kind: core.KindString},
			{Name: "list_price", Kind: core.KindNumber, Required: true},
			{Name: "status", Kind: core.KindEnum, EnumValues: []string{"draft", "active", "discontinued"}},
			{Name: "launch_date", Kind: core.KindDate},
			{Name: "supplier_code", Kind: core.KindString},
		},
	})
}
