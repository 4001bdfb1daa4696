package entity

import "github.com/uptrace/bun"

// Supplier is an optional counterparty of an order.
type Supplier struct {
	bun.BaseModel `bun:"table:suppliers,alias:s"`

	ID      int64  `bun:",pk,autoincrement" json:"id"`
	Name    string `bun:"name,notnull" json:"name"`
	TaxID   string `bun:"tax_id" json:"tax_id,omitempty"`
	Email   string `bun:"email" json:"email,omitempty"`
	Phone   string `bun:"phone" json:"phone,omitempty"`
	Address string `bun:"address" json:"address,omitempty"`
	Active  bool   `bun:"active,notnull" json:"active"`
}

// Category classifies line items for reporting.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          int64  `bun:",pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	Description string `bun:"description" json:"description,omitempty"`
	Color       string `bun:"color,notnull" json:"color"`
	Active      bool   `bun:"active,notnull" json:"active"`
}

// OrderCodeLock is the per-year row locked while the next order code is computed.
type OrderCodeLock struct {
	bun.BaseModel `bun:"table:order_code_locks,alias:ocl"`

	Prefix string `bun:"prefix,pk"`
}
