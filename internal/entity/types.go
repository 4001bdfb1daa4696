package entity

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every lifecycle state in workflow order.
var Statuses = []Status{
	StatusDraft,
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Role is the permission class of a user.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleApprover      Role = "approver"
	RoleOperator      Role = "operator"
	RoleViewer        Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleApprover, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}

// EntityKind identifies the kind of organisation that owns an order.
type EntityKind string

const (
	EntityOrganization EntityKind = "organization"
	EntityStore        EntityKind = "store"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	return k == EntityOrganization || k == EntityStore
}

// OrderType distinguishes purchase orders from internal requirements.
type OrderType string

const (
	TypeStandard    OrderType = "standard"
	TypeRequirement OrderType = "requirement"
)

func (t OrderType) Valid() bool {
	return t == TypeStandard || t == TypeRequirement
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

type Currency string

const (
	CurrencyLocal Currency = "LOCAL"
	CurrencyUSD   Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyLocal || c == CurrencyUSD
}
