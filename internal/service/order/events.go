package order

import (
	"time"

	"github.com/Additional-Code/procura/internal/entity"
)

// EventHeader is the message header naming the event type.
const EventHeader = "event"

const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status_changed"
)

// Event is published to the message bus after an order is created or changes status.
type Event struct {
	Type           string         `json:"type"`
	OrderID        int64          `json:"order_id"`
	Code           string         `json:"code"`
	PreviousStatus *entity.Status `json:"previous_status,omitempty"`
	Status         entity.Status  `json:"status"`
	ActorID        int64          `json:"actor_id"`
	Total          string         `json:"total"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

func newEvent(kind string, order *entity.Order, prev *entity.Status, actorID int64, at time.Time) Event {
	return Event{
		Type:           kind,
		OrderID:        order.ID,
		Code:           order.Code,
		PreviousStatus: prev,
		Status:         order.Status,
		ActorID:        actorID,
		Total:          order.Total.StringFixed(2),
		OccurredAt:     at.UTC(),
	}
}
