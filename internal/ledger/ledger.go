// Package ledger builds an order's line items and derives its subtotal, tax and total.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/procura/internal/entity"
)

// DefaultUnit is used when an item does not name its unit of measure.
const DefaultUnit = "unit"

var hundred = decimal.NewFromInt(100)

// ItemInput is a raw line item as supplied by a caller. Quantity and UnitPrice are kept as
// text so malformed values coerce to zero instead of failing the request.
type ItemInput struct {
	CategoryID  *int64 `json:"category_id,omitempty"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
	UnitPrice   string `json:"unit_price"`
	Notes       string `json:"notes,omitempty"`
}

// Totals are the derived money fields of an order.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
}

// Coerce parses raw as a non-negative decimal. Empty, malformed and negative input yield zero.
func Coerce(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Build turns raw inputs into line items bound to orderID. Subtotals are always computed
// here and never taken from the input.
func Build(orderID int64, inputs []ItemInput) []*entity.OrderItem {
	items := make([]*entity.OrderItem, 0, len(inputs))
	for i, in := range inputs {
		qty := Coerce(in.Quantity)
		price := Coerce(in.UnitPrice)
		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			unit = DefaultUnit
		}
		items = append(items, &entity.OrderItem{
			OrderID:     orderID,
			Position:    i + 1,
			CategoryID:  in.CategoryID,
			Description: strings.TrimSpace(in.Description),
			Quantity:    qty,
			Unit:        unit,
			UnitPrice:   price,
			Subtotal:    qty.Mul(price),
			Notes:       in.Notes,
		})
	}
	return items
}

// HasDescribedItem reports whether at least one item has a non-empty description, the
// minimum content for an order leaving draft.
func HasDescribedItem(items []*entity.OrderItem) bool {
	for _, item := range items {
		if strings.TrimSpace(item.Description) != "" {
			return true
		}
	}
	return false
}

// CategoryIDs returns the distinct category references of items.
func CategoryIDs(items []*entity.OrderItem) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, item := range items {
		if item.CategoryID == nil {
			continue
		}
		if _, ok := seen[*item.CategoryID]; ok {
			continue
		}
		seen[*item.CategoryID] = struct{}{}
		ids = append(ids, *item.CategoryID)
	}
	return ids
}

// Compute sums item subtotals and applies taxPercent. Tax is rounded to cents.
func Compute(items []*entity.OrderItem, taxPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	if taxPercent.IsNegative() {
		taxPercent = decimal.Zero
	}
	tax := subtotal.Mul(taxPercent).Div(hundred).Round(2)
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      subtotal.Add(tax),
		TaxPercent: taxPercent,
	}
}

// Replace discards the stored items of orderID and inserts items in their place. It must run
// inside the transaction that owns the order update.
func Replace(ctx context.Context, tx bun.IDB, orderID int64, items []*entity.OrderItem) error {
	if _, err := tx.NewDelete().Model((*entity.OrderItem)(nil)).Where("order_id = ?", orderID).Exec(ctx); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return Insert(ctx, tx, orderID, items)
}

// Insert stores items for orderID.
func Insert(ctx context.Context, tx bun.IDB, orderID int64, items []*entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		item.OrderID = orderID
	}
	if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

// Load returns the stored items of orderID in position order.
func Load(ctx context.Context, db bun.IDB, orderID int64) ([]*entity.OrderItem, error) {
	items := make([]*entity.OrderItem, 0)
	err := db.NewSelect().
		Model(&items).
		Where("oi.order_id = ?", orderID).
		Order("oi.position ASC", "oi.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return items, nil
}

// Recalculate re-derives the totals of orderID from its currently stored items and persists
// them. A nil taxPercent keeps the percentage already stored on the order.
func Recalculate(ctx context.Context, db bun.IDB, orderID int64, taxPercent *decimal.Decimal) (Totals, error) {
	items, err := Load(ctx, db, orderID)
	if err != nil {
		return Totals{}, err
	}

	pct := decimal.Zero
	if taxPercent != nil {
		pct = *taxPercent
	} else {
		err := db.NewSelect().Model((*entity.Order)(nil)).Column("tax_percent").Where("o.id = ?", orderID).Scan(ctx, &pct)
		if err != nil {
			return Totals{}, fmt.Errorf("load tax percent: %w", err)
		}
	}

	totals := Compute(items, pct)
	order := &entity.Order{
		ID:         orderID,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Total:      totals.Total,
		TaxPercent: totals.TaxPercent,
	}
	_, err = db.NewUpdate().
		Model(order).
		Column("subtotal", "tax", "total", "tax_percent").
		WherePK().
		Exec(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("store totals: %w", err)
	}
	return totals, nil
}
