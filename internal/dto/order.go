package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	ordersvc "github.com/Additional-Code/procura/internal/service/order"
)

// Date accepts both "2006-01-02" and RFC 3339 timestamps.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(raw []byte) error {
	s := string(raw)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := request.ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// ItemRequest is one line item in a create or update payload.
type ItemRequest struct {
	CategoryID  *int64 `json:"category_id" validate:"omitempty,gt=0"`
	Description string `json:"description" validate:"max=500"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit" validate:"max=32"`
	UnitPrice   string `json:"unit_price"`
	Notes       string `json:"notes" validate:"max=1000"`
}

func toItems(in []ItemRequest) []ledger.ItemInput {
	out := make([]ledger.ItemInput, 0, len(in))
	for _, it := range in {
		out = append(out, ledger.ItemInput{
			CategoryID:  it.CategoryID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Notes:       it.Notes,
		})
	}
	return out
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=5000"`
	Type        string           `json:"type" validate:"omitempty,oneof=standard requirement"`
	Priority    string           `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Currency    string           `json:"currency" validate:"omitempty,oneof=LOCAL USD"`
	RequiredBy  *Date            `json:"required_by"`
	SupplierID  *int64           `json:"supplier_id" validate:"omitempty,gt=0"`
	TaxPercent  *decimal.Decimal `json:"tax_percent"`
	Status      string           `json:"status" validate:"omitempty,oneof=draft pending"`
	Items       []ItemRequest    `json:"items" validate:"dive"`
}

// ToInput converts the request into service input.
func (r CreateOrderRequest) ToInput() ordersvc.CreateInput {
	return ordersvc.CreateInput{
		Title:         r.Title,
		Description:   r.Description,
		Type:          entity.OrderType(r.Type),
		Priority:      entity.Priority(r.Priority),
		Currency:      entity.Currency(r.Currency),
		RequiredBy:    r.RequiredBy.ptr(),
		SupplierID:    r.SupplierID,
		TaxPercent:    r.TaxPercent,
		InitialStatus: entity.Status(r.Status),
		Items:         toItems(r.Items),
	}
}

// UpdateOrderRequest is the body of PUT /orders/:id. Absent fields are left unchanged; an
// explicit null for required_by or supplier_id clears it.
type UpdateOrderRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Type        *string          `json:"type" validate:"omitempty,oneof=standard requirement"`
	Priority    *string          `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Currency    *string          `json:"currency" validate:"omitempty,oneof=LOCAL USD"`
	RequiredBy  Optional[Date]   `json:"required_by"`
	SupplierID  Optional[int64]  `json:"supplier_id"`
	TaxPercent  *decimal.Decimal `json:"tax_percent"`
	Items       *[]ItemRequest   `json:"items" validate:"omitempty,dive"`
}

// ToInput converts the request into service input.
func (r UpdateOrderRequest) ToInput() ordersvc.UpdateInput {
	in := ordersvc.UpdateInput{
		Title:       r.Title,
		Description: r.Description,
		TaxPercent:  r.TaxPercent,
	}
	if r.Type != nil {
		t := entity.OrderType(*r.Type)
		in.Type = &t
	}
	if r.Priority != nil {
		p := entity.Priority(*r.Priority)
		in.Priority = &p
	}
	if r.Currency != nil {
		c := entity.Currency(*r.Currency)
		in.Currency = &c
	}
	if r.RequiredBy.Set {
		if r.RequiredBy.Value == nil || r.RequiredBy.Value.IsZero() {
			in.ClearRequired = true
		} else {
			in.RequiredBy = r.RequiredBy.Value.ptr()
		}
	}
	if r.SupplierID.Set {
		if r.SupplierID.Value == nil {
			in.ClearSupplier = true
		} else {
			in.SupplierID = r.SupplierID.Value
		}
	}
	if r.Items != nil {
		items := toItems(*r.Items)
		in.Items = &items
	}
	return in
}

// TransitionRequest is the body of PATCH /orders/:id/status.
type TransitionRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment" validate:"max=2000"`
}

// AttachmentRequest is the body of PUT /orders/:id/attachment.
type AttachmentRequest struct {
	Reference string `json:"reference" validate:"required,max=1000"`
}

// OrderResponse is an order together with the transitions the caller may perform next.
type OrderResponse struct {
	*entity.Order
	AllowedTransitions []entity.Status `json:"allowed_transitions"`
}

// NewOrderResponse decorates order for actor.
func NewOrderResponse(actor *entity.User, order *entity.Order) OrderResponse {
	allowed := ordersvc.AllowedTransitions(actor, order)
	if allowed == nil {
		allowed = []entity.Status{}
	}
	return OrderResponse{Order: order, AllowedTransitions: allowed}
}
