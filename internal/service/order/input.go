package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// CreateInput carries the caller-supplied fields of a new order. Zero values take defaults:
// type standard, priority medium, the configured currency and status draft.
type CreateInput struct {
	Title         string
	Description   string
	Type          entity.OrderType
	Priority      entity.Priority
	Currency      entity.Currency
	RequiredBy    *time.Time
	SupplierID    *int64
	TaxPercent    *decimal.Decimal
	InitialStatus entity.Status
	Items         []ledger.ItemInput
}

// UpdateInput is a partial update. Nil fields are left untouched; a non-nil Items replaces the
// whole item set, including with an empty one.
type UpdateInput struct {
	Title         *string
	Description   *string
	Type          *entity.OrderType
	Priority      *entity.Priority
	Currency      *entity.Currency
	RequiredBy    *time.Time
	ClearRequired bool
	SupplierID    *int64
	ClearSupplier bool
	TaxPercent    *decimal.Decimal
	Items         *[]ledger.ItemInput
}

// ListFilter narrows an order listing. CreatedFrom and CreatedTo bound the creation date.
type ListFilter struct {
	Status      entity.Status
	Type        entity.OrderType
	Priority    entity.Priority
	EntityKind  entity.EntityKind
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	Limit       int
}

// Page is one window of a listing.
type Page struct {
	Orders []*entity.Order `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errorbank.Validation("title is required", errorbank.WithField("title"))
	}
	return title, nil
}

// maxTaxPercent is the first value the decimal(7,4) tax_percent column cannot hold.
var maxTaxPercent = decimal.NewFromInt(1000)

const taxPercentScale = 4

func validateTaxPercent(pct *decimal.Decimal) error {
	if pct == nil {
		return nil
	}
	switch {
	case pct.IsNegative():
		return errorbank.Validation("tax_percent must not be negative", errorbank.WithField("tax_percent"))
	case pct.GreaterThanOrEqual(maxTaxPercent):
		return errorbank.Validation("tax_percent must be below 1000", errorbank.WithField("tax_percent"),
			errorbank.WithDetail("value", pct.String()))
	case !pct.Equal(pct.Round(taxPercentScale)):
		return errorbank.Validation("tax_percent allows at most 4 decimal places", errorbank.WithField("tax_percent"),
			errorbank.WithDetail("value", pct.String()))
	}
	return nil
}

func invalidEnum(field string, value any) error {
	return errorbank.Validation("invalid "+field, errorbank.WithField(field), errorbank.WithDetail("value", value))
}

func requireSubmittable(items []*entity.OrderItem) error {
	if ledger.HasDescribedItem(items) {
		return nil
	}
	return errorbank.Validation("at least one item with a description is required before submitting",
		errorbank.WithField("items"))
}
