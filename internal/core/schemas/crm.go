package schemas

import "github.com/JonMunkholm/recordimport/internal/core"

func init() {
	registerContacts()
	registerCustomers()
}

func registerContacts() {
	core.Register(core.RecordSchema{
		Name:       "contact",
		Label:      "Contacts",
		Collection: "contacts",
		Fields: []core.FieldSpec{
			{Name: "name", Kind: core.KindString, Required: true},
			{Name: "email", Kind: core.KindEmail},
			{Name: "phone", Kind: core.KindString},
			{Name: "company", Kind: core.KindString},
			{Name: "title", Kind: core.KindString},
			{Name: "subscribed", Kind: core.KindBool},
		},
	})
}

func registerCustomers() {
	core.Register(core.RecordSchema{
		Name:       "customer",
		Label:      "Customers",
		Collection: "customers",
		Fields: []core.FieldSpec{
			{Name: "customer_id", Kind: core.KindString, Required: true},
			{Name: "name", Kind: core.KindString, Required: true},
			{Name: "email", Kind: core.KindEmail, Required: true},
			{Name: "segment", Kind: core.KindEnum, EnumValues: []string{"enterprise", "mid-market", "smb"}},
			{Name: "credit_limit", Kind: core.KindNumber},
			{Name: "customer_since", Kind: core.KindDate},
			{Name: "active", Kind: core.KindBool},
		},
	})
}
