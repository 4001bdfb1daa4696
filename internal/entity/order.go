package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order represents a purchase order or requisition stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID           int64           `bun:",pk,autoincrement" json:"id"`
	Code         string          `bun:"code,notnull,unique" json:"code"`
	Title        string          `bun:"title,notnull" json:"title"`
	Description  string          `bun:"description" json:"description,omitempty"`
	Type         OrderType       `bun:"type,notnull" json:"type"`
	EntityKind   EntityKind      `bun:"entity_kind,notnull" json:"entity_kind"`
	Status       Status          `bun:"status,notnull" json:"status"`
	Priority     Priority        `bun:"priority,notnull" json:"priority"`
	Currency     Currency        `bun:"currency,notnull" json:"currency"`
	RequiredBy   *time.Time      `bun:"required_by" json:"required_by,omitempty"`
	CreatedBy    int64           `bun:"created_by,notnull" json:"created_by"`
	ApprovedBy   *int64          `bun:"approved_by" json:"approved_by,omitempty"`
	SupplierID   *int64          `bun:"supplier_id" json:"supplier_id,omitempty"`
	Subtotal     decimal.Decimal `bun:"subtotal,type:decimal(12,2),notnull" json:"subtotal"`
	Tax          decimal.Decimal `bun:"tax,type:decimal(12,2),notnull" json:"tax"`
	Total        decimal.Decimal `bun:"total,type:decimal(12,2),notnull" json:"total"`
	TaxPercent   decimal.Decimal `bun:"tax_percent,type:decimal(7,4),notnull" json:"tax_percent"`
	ApprovalNote string          `bun:"approval_note" json:"approval_note,omitempty"`
	Attachment   string          `bun:"attachment" json:"attachment,omitempty"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	Version      int64           `bun:"version,notnull" json:"version"`

	Creator  *User           `bun:"rel:belongs-to,join:created_by=id" json:"creator,omitempty"`
	Approver *User           `bun:"rel:belongs-to,join:approved_by=id" json:"approver,omitempty"`
	Supplier *Supplier       `bun:"rel:belongs-to,join:supplier_id=id" json:"supplier,omitempty"`
	Items    []*OrderItem    `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
	History  []*OrderHistory `bun:"rel:has-many,join:id=order_id" json:"history,omitempty"`
}

// OrderItem is one priced line belonging to exactly one order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID          int64           `bun:",pk,autoincrement" json:"id"`
	OrderID     int64           `bun:"order_id,notnull" json:"order_id"`
	Position    int             `bun:"position,notnull" json:"position"`
	CategoryID  *int64          `bun:"category_id" json:"category_id,omitempty"`
	Description string          `bun:"description,notnull" json:"description"`
	Quantity    decimal.Decimal `bun:"quantity,type:decimal(10,2),notnull" json:"quantity"`
	Unit        string          `bun:"unit,notnull" json:"unit"`
	UnitPrice   decimal.Decimal `bun:"unit_price,type:decimal(12,2),notnull" json:"unit_price"`
	Subtotal    decimal.Decimal `bun:"subtotal,type:decimal(12,2),notnull" json:"subtotal"`
	Notes       string          `bun:"notes" json:"notes,omitempty"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
}

// OrderHistory is an immutable audit record of a status change.
type OrderHistory struct {
	bun.BaseModel `bun:"table:order_history,alias:oh"`

	ID             int64     `bun:",pk,autoincrement" json:"id"`
	OrderID        int64     `bun:"order_id,notnull" json:"order_id"`
	ActorID        int64     `bun:"actor_id,notnull" json:"actor_id"`
	PreviousStatus *Status   `bun:"previous_status" json:"previous_status"`
	NewStatus      Status    `bun:"new_status,notnull" json:"new_status"`
	Comment        string    `bun:"comment" json:"comment,omitempty"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Actor *User  `bun:"rel:belongs-to,join:actor_id=id" json:"actor,omitempty"`
	Order *Order `bun:"rel:belongs-to,join:order_id=id" json:"order,omitempty"`
}
