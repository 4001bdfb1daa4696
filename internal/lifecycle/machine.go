// Package lifecycle holds the order state machine and the role rules that gate it.
package lifecycle

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var transitions = map[entity.Status][]entity.Status{
	entity.StatusDraft:      {entity.StatusPending, entity.StatusCancelled},
	entity.StatusPending:    {entity.StatusApproved, entity.StatusRejected, entity.StatusCancelled},
	entity.StatusApproved:   {entity.StatusInProgress, entity.StatusCompleted, entity.StatusCancelled},
	entity.StatusRejected:   {entity.StatusDraft, entity.StatusCancelled},
	entity.StatusInProgress: {entity.StatusCompleted, entity.StatusCancelled},
}

var supervisors = []entity.Role{entity.RoleAdministrator, entity.RoleApprover}

// InitialStatuses are the statuses an order may be created in.
var InitialStatuses = []entity.Status{entity.StatusDraft, entity.StatusPending}

// Targets returns the statuses reachable from from according to the transition table.
func Targets(from entity.Status) []entity.Status {
	return slices.Clone(transitions[from])
}

// CanTransition reports whether the table allows from -> to. Self transitions are not allowed.
func CanTransition(from, to entity.Status) bool {
	return slices.Contains(transitions[from], to)
}

// RequiredRoles lists the roles allowed to move an order into target. A nil result means any
// active user may trigger the transition.
func RequiredRoles(target entity.Status) []entity.Role {
	switch target {
	case entity.StatusApproved, entity.StatusRejected, entity.StatusInProgress, entity.StatusCompleted:
		return supervisors
	default:
		return nil
	}
}

// Permits reports whether role may move an order into target.
func Permits(role entity.Role, target entity.Status) bool {
	required := RequiredRoles(target)
	return required == nil || slices.Contains(required, role)
}

// RecordsApprover reports whether reaching target stamps the actor as approver/rejecter.
func RecordsApprover(target entity.Status) bool {
	return target == entity.StatusApproved || target == entity.StatusRejected
}

// Validate runs the transition checks in order: table validity, role permission, and the
// mandatory comment for rejections.
func Validate(from, to entity.Status, role entity.Role, comment string) error {
	if !CanTransition(from, to) {
		return errorbank.InvalidTransition(
			fmt.Sprintf("cannot change status from %q to %q", from, to),
			errorbank.WithDetail("from", string(from)),
			errorbank.WithDetail("to", string(to)),
		)
	}
	if !Permits(role, to) {
		msg := "role is not allowed to change the order to this status"
		if RecordsApprover(to) {
			msg = "role is not allowed to approve or reject orders"
		}
		return errorbank.PermissionDenied(msg,
			errorbank.WithDetail("role", string(role)),
			errorbank.WithDetail("to", string(to)),
		)
	}
	if to == entity.StatusRejected && strings.TrimSpace(comment) == "" {
		return errorbank.Validation("a rejection reason is required", errorbank.WithField("comment"))
	}
	return nil
}

// AllowedTargets lists the statuses role may move an order into from from.
func AllowedTargets(from entity.Status, role entity.Role) []entity.Status {
	var out []entity.Status
	for _, to := range transitions[from] {
		if Permits(role, to) {
			out = append(out, to)
		}
	}
	return out
}

// CanAuthor reports whether role may create or edit orders at all.
func CanAuthor(role entity.Role) bool {
	switch role {
	case entity.RoleAdministrator, entity.RoleApprover, entity.RoleOperator:
		return true
	default:
		return false
	}
}

// CanEdit reports whether an order in status may have its fields or items changed by role.
// Drafts are editable; administrators may edit in any status.
func CanEdit(role entity.Role, status entity.Status) bool {
	return status == entity.StatusDraft || role == entity.RoleAdministrator
}

// CheckEdit returns EditNotAllowed when CanEdit is false.
func CheckEdit(role entity.Role, status entity.Status) error {
	if CanEdit(role, status) {
		return nil
	}
	return errorbank.EditNotAllowed("only draft orders can be edited",
		errorbank.WithDetail("status", string(status)))
}
