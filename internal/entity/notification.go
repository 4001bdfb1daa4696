package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Notification is an in-app message addressed to a single user.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	OrderID   *int64    `bun:"order_id" json:"order_id,omitempty"`
	Category  string    `bun:"category,notnull" json:"category"`
	Message   string    `bun:"message,notnull" json:"message"`
	Read      bool      `bun:"is_read,notnull" json:"read"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Order *Order `bun:"rel:belongs-to,join:order_id=id" json:"order,omitempty"`
}
