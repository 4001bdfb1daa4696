// Package notification decides who hears about an order status change and what they read.
package notification

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/entity"
	notificationrepo "github.com/Additional-Code/procura/internal/repository/notification"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
)

const (
	// CategoryApprovalRequest tags notifications asking supervisors to review an order.
	CategoryApprovalRequest = "new_approval_request"
	categoryStatusPrefix    = "status_"
)

var meter = otel.Meter("github.com/Additional-Code/procura/notification")

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *entity.Notification) error
}

// Directory finds the users to notify.
type Directory interface {
	ListActiveByRoles(ctx context.Context, roles ...entity.Role) ([]*entity.User, error)
}

// Module provides the dispatcher to Fx, backed by the bun repositories.
var Module = fx.Provide(newFromRepositories)

func newFromRepositories(store *notificationrepo.Repository, dir *userrepo.Repository, logger *zap.Logger) *Dispatcher {
	return NewDispatcher(store, dir, logger)
}

// Dispatcher creates notifications for status changes. It never fails its caller.
type Dispatcher struct {
	store    Store
	dir      Directory
	logger   *zap.Logger
	now      func() time.Time
	failures metric.Int64Counter
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(store Store, dir Directory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	failures, err := meter.Int64Counter("procura.notifications.failed",
		metric.WithDescription("Notifications that could not be stored"))
	if err != nil {
		logger.Warn("notification failure counter unavailable", zap.Error(err))
	}
	return &Dispatcher{store: store, dir: dir, logger: logger, now: time.Now, failures: failures}
}

// Message renders the text shown to the order creator when the order reaches status.
func Message(order *entity.Order, status entity.Status, actor *entity.User) string {
	switch status {
	case entity.StatusPending:
		return fmt.Sprintf("Order %s was submitted for approval by %s", order.Code, actor.Name)
	case entity.StatusApproved:
		return fmt.Sprintf("Order %s was approved by %s", order.Code, actor.Name)
	case entity.StatusRejected:
		return fmt.Sprintf("Order %s was rejected by %s", order.Code, actor.Name)
	case entity.StatusInProgress:
		return fmt.Sprintf("Order %s is now in progress", order.Code)
	case entity.StatusCompleted:
		return fmt.Sprintf("Order %s was completed", order.Code)
	case entity.StatusCancelled:
		return fmt.Sprintf("Order %s was cancelled", order.Code)
	default:
		return fmt.Sprintf("Order %s changed status to %s", order.Code, status)
	}
}

// ApprovalRequestMessage renders the text sent to supervisors for a newly pending order.
func ApprovalRequestMessage(order *entity.Order) string {
	return fmt.Sprintf("New order %s is awaiting approval", order.Code)
}

// OnTransition notifies the creator (unless they acted) and, for newly pending orders, every
// active administrator and approver other than the actor. prev is nil for creation.
func (d *Dispatcher) OnTransition(ctx context.Context, order *entity.Order, prev *entity.Status, next entity.Status, actor *entity.User) {
	if order == nil || actor == nil {
		return
	}
	orderID := order.ID
	from := "none"
	if prev != nil {
		from = string(*prev)
	}
	d.logger.Debug("dispatching status notifications",
		zap.Int64("order_id", orderID),
		zap.String("from", from),
		zap.String("to", string(next)))

	if order.CreatedBy != actor.ID {
		d.create(ctx, &entity.Notification{
			UserID:   order.CreatedBy,
			OrderID:  &orderID,
			Category: categoryStatusPrefix + string(next),
			Message:  Message(order, next, actor),
		})
	}

	if next != entity.StatusPending {
		return
	}
	supervisors, err := d.dir.ListActiveByRoles(ctx, entity.RoleAdministrator, entity.RoleApprover)
	if err != nil {
		d.logger.Error("list approvers for notification failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		d.countFailure(ctx, CategoryApprovalRequest)
		return
	}
	for _, u := range supervisors {
		if u.ID == actor.ID {
			continue
		}
		d.create(ctx, &entity.Notification{
			UserID:   u.ID,
			OrderID:  &orderID,
			Category: CategoryApprovalRequest,
			Message:  ApprovalRequestMessage(order),
		})
	}
}

func (d *Dispatcher) create(ctx context.Context, n *entity.Notification) {
	n.CreatedAt = d.now().UTC()
	if err := d.store.Create(ctx, n); err != nil {
		d.logger.Warn("create notification failed",
			zap.Int64("user_id", n.UserID),
			zap.String("category", n.Category),
			zap.Error(err))
		d.countFailure(ctx, n.Category)
	}
}

func (d *Dispatcher) countFailure(ctx context.Context, category string) {
	if d.failures == nil {
		return
	}
	d.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}
