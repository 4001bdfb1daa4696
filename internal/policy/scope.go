// Package policy decides which orders an actor may see, change or delete.
package policy

import (
	"github.com/Additional-Code/procura/internal/entity"
	orderrepo "github.com/Additional-Code/procura/internal/repository/order"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// OwnOnly reports whether role is restricted to orders it created.
func OwnOnly(role entity.Role) bool {
	return role == entity.RoleOperator
}

// Scope restricts f to the orders actor may see. Operators only see their own orders and
// cannot widen that with an explicit creator filter; other roles keep whatever creator
// filter the caller supplied.
func Scope(f orderrepo.Filter, actor *entity.User) orderrepo.Filter {
	if actor != nil && OwnOnly(actor.Role) {
		id := actor.ID
		f.CreatedBy = &id
	}
	return f
}

// CanView returns Forbidden when actor may not see order.
func CanView(actor *entity.User, order *entity.Order) error {
	if actor == nil {
		return errorbank.Forbidden("an authenticated user is required")
	}
	if OwnOnly(actor.Role) && order.CreatedBy != actor.ID {
		return errorbank.Forbidden("you do not have access to this order",
			errorbank.WithDetail("order_id", order.ID))
	}
	return nil
}

// CanDelete returns Forbidden unless actor is an administrator, or the operator who created
// order while it is still a draft.
func CanDelete(actor *entity.User, order *entity.Order) error {
	if actor == nil {
		return errorbank.Forbidden("an authenticated user is required")
	}
	switch {
	case actor.Role == entity.RoleAdministrator:
		return nil
	case actor.Role == entity.RoleOperator && order.CreatedBy == actor.ID && order.Status == entity.StatusDraft:
		return nil
	default:
		return errorbank.Forbidden("only your own draft orders can be deleted",
			errorbank.WithDetail("order_id", order.ID),
			errorbank.WithDetail("status", string(order.Status)))
	}
}
