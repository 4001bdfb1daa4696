package order

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	"github.com/Additional-Code/procura/internal/lifecycle"
	"github.com/Additional-Code/procura/internal/policy"
)

// Transition moves an order to target. The status change and its history entry commit
// together against a locked order row; notifications and the bus event follow the commit and
// never fail the call.
func (s *Service) Transition(ctx context.Context, actor *entity.User, id int64, target entity.Status, comment string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, invalidEnum("status", target)
	}
	comment = strings.TrimSpace(comment)

	var (
		order *entity.Order
		prev  entity.Status
	)
	err := s.repo.Writer().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if order, err = s.repo.Lock(ctx, tx, id); err != nil {
			return err
		}
		if err := policy.CanView(actor, order); err != nil {
			return err
		}
		prev = order.Status
		if err := lifecycle.Validate(prev, target, actor.Role, comment); err != nil {
			return err
		}
		if target == entity.StatusPending {
			items, err := ledger.Load(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			if err := requireSubmittable(items); err != nil {
				return err
			}
		}

		order.Status = target
		columns := []string{"status"}
		if lifecycle.RecordsApprover(target) {
			approver := actor.ID
			order.ApprovedBy = &approver
			order.ApprovalNote = comment
			columns = append(columns, "approved_by", "approval_note")
		}
		if err := s.repo.UpdateFields(ctx, tx, order, columns...); err != nil {
			return err
		}

		_, err = s.recorder.Record(ctx, tx, audit.Entry{
			OrderID:        order.ID,
			PreviousStatus: &prev,
			NewStatus:      target,
			ActorID:        actor.ID,
			Comment:        comment,
		})
		return err
	})
	if err != nil {
		return nil, fail(span, "failed to change order status", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("order status changed",
		zap.Int64("id", order.ID),
		zap.String("code", order.Code),
		zap.String("from", string(prev)),
		zap.String("to", string(target)),
		zap.Int64("actor_id", actor.ID))
	s.count(ctx, s.transitions,
		attribute.String("from", string(prev)),
		attribute.String("to", string(target)))

	s.dispatcher.OnTransition(ctx, order, &prev, target, actor)
	s.publish(ctx, newEvent(EventStatusChanged, order, &prev, actor.ID, order.UpdatedAt))

	return s.detail(ctx, order), nil
}

// AllowedTransitions lists the statuses actor may move order into next.
func AllowedTransitions(actor *entity.User, order *entity.Order) []entity.Status {
	if actor == nil || order == nil {
		return nil
	}
	if policy.CanView(actor, order) != nil {
		return nil
	}
	return lifecycle.AllowedTargets(order.Status, actor.Role)
}
