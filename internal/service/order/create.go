package order

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	"github.com/Additional-Code/procura/internal/lifecycle"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

const creationComment = "Order created"

// Create stores a new order with its items, totals and creation history entry in one
// transaction. The code is allocated inside that transaction so the year lock is held until
// the order row commits.
func (s *Service) Create(ctx context.Context, actor *entity.User, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create")
	defer span.End()

	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !lifecycle.CanAuthor(actor.Role) {
		return nil, errorbank.PermissionDenied("role is not allowed to create orders",
			errorbank.WithDetail("role", string(actor.Role)))
	}

	order, err := s.newOrder(actor, in)
	if err != nil {
		return nil, err
	}
	items := ledger.Build(0, in.Items)
	if order.Status == entity.StatusPending {
		if err := requireSubmittable(items); err != nil {
			return nil, err
		}
	}
	if err := s.checkReferences(ctx, order.SupplierID, items); err != nil {
		return nil, fail(span, "failed to check order references", err)
	}

	pct := decimal.Zero
	if in.TaxPercent != nil {
		pct = *in.TaxPercent
	}

	err = s.repo.Writer().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		code, err := s.codes.Next(ctx, tx)
		if err != nil {
			return err
		}
		order.Code = code
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		if err := ledger.Insert(ctx, tx, order.ID, items); err != nil {
			return err
		}
		totals, err := ledger.Recalculate(ctx, tx, order.ID, &pct)
		if err != nil {
			return err
		}
		order.Subtotal, order.Tax, order.Total, order.TaxPercent = totals.Subtotal, totals.Tax, totals.Total, totals.TaxPercent
		_, err = s.recorder.Record(ctx, tx, audit.Entry{
			OrderID:   order.ID,
			NewStatus: order.Status,
			ActorID:   actor.ID,
			Comment:   creationComment,
		})
		return err
	})
	if err != nil {
		return nil, fail(span, "failed to create order", err)
	}
	span.SetAttributes(attribute.String("order.code", order.Code), attribute.Int64("order.id", order.ID))

	s.logger.Info("order created",
		zap.Int64("id", order.ID),
		zap.String("code", order.Code),
		zap.String("status", string(order.Status)),
		zap.Int64("actor_id", actor.ID))
	s.count(ctx, s.created, attribute.String("status", string(order.Status)))

	if order.Status == entity.StatusPending {
		s.dispatcher.OnTransition(ctx, order, nil, order.Status, actor)
	}
	s.publish(ctx, newEvent(EventCreated, order, nil, actor.ID, order.CreatedAt))

	return s.detail(ctx, order), nil
}

func (s *Service) newOrder(actor *entity.User, in CreateInput) (*entity.Order, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateTaxPercent(in.TaxPercent); err != nil {
		return nil, err
	}

	order := &entity.Order{
		Title:       title,
		Description: in.Description,
		Type:        in.Type,
		EntityKind:  actor.EntityKind,
		Status:      in.InitialStatus,
		Priority:    in.Priority,
		Currency:    in.Currency,
		RequiredBy:  in.RequiredBy,
		CreatedBy:   actor.ID,
		SupplierID:  in.SupplierID,
	}
	if order.Type == "" {
		order.Type = entity.TypeStandard
	}
	if order.Priority == "" {
		order.Priority = entity.PriorityMedium
	}
	if order.Currency == "" {
		order.Currency = entity.Currency(s.orders.DefaultCurrency)
	}
	if order.Status == "" {
		order.Status = entity.StatusDraft
	}

	switch {
	case !order.Type.Valid():
		return nil, invalidEnum("type", order.Type)
	case !order.Priority.Valid():
		return nil, invalidEnum("priority", order.Priority)
	case !order.Currency.Valid():
		return nil, invalidEnum("currency", order.Currency)
	case !slices.Contains(lifecycle.InitialStatuses, order.Status):
		return nil, errorbank.Validation("orders can only be created as draft or pending",
			errorbank.WithField("initial_status"),
			errorbank.WithDetail("value", string(order.Status)))
	}

	now := s.now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Version = 1
	return order, nil
}

// checkReferences ensures the supplier and every item category exist.
func (s *Service) checkReferences(ctx context.Context, supplierID *int64, items []*entity.OrderItem) error {
	if supplierID != nil {
		ok, err := s.catalog.SupplierExists(ctx, *supplierID)
		if err != nil {
			return err
		}
		if !ok {
			return errorbank.NotFound("supplier not found",
				errorbank.WithField("supplier_id"),
				errorbank.WithDetail("supplier_id", *supplierID))
		}
	}
	missing, err := s.catalog.MissingCategories(ctx, ledger.CategoryIDs(items))
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return errorbank.NotFound("category not found",
			errorbank.WithField("items"),
			errorbank.WithDetail("category_ids", missing))
	}
	return nil
}
