package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a member of the user directory. Only active users may act on orders.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64      `bun:",pk,autoincrement" json:"id"`
	Name       string     `bun:"name,notnull" json:"name"`
	Email      string     `bun:"email,notnull,unique" json:"email"`
	Role       Role       `bun:"role,notnull" json:"role"`
	EntityKind EntityKind `bun:"entity_kind,notnull" json:"entity_kind"`
	Active     bool       `bun:"active,notnull" json:"active"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
