package order

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	"github.com/Additional-Code/procura/internal/lifecycle"
	"github.com/Additional-Code/procura/internal/policy"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Update applies a partial change to an editable order. Replaced items and the recalculated
// totals commit together with the field changes.
func (s *Service) Update(ctx context.Context, actor *entity.User, id int64, in UpdateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if err := validateTaxPercent(in.TaxPercent); err != nil {
		return nil, err
	}

	var items []*entity.OrderItem
	if in.Items != nil {
		items = ledger.Build(id, *in.Items)
	}
	if err := s.checkReferences(ctx, in.SupplierID, items); err != nil {
		return nil, fail(span, "failed to check order references", err)
	}

	var order *entity.Order
	err := s.repo.Writer().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.lockEditable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		columns, err := applyUpdate(order, in)
		if err != nil {
			return err
		}
		if in.Items != nil {
			if order.Status != entity.StatusDraft {
				if err := requireSubmittable(items); err != nil {
					return err
				}
			}
			if err := ledger.Replace(ctx, tx, order.ID, items); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateFields(ctx, tx, order, columns...); err != nil {
			return err
		}
		_, err = ledger.Recalculate(ctx, tx, order.ID, in.TaxPercent)
		return err
	})
	if err != nil {
		return nil, fail(span, "failed to update order", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("order updated", zap.Int64("id", id), zap.Int64("actor_id", actor.ID))
	return s.detail(ctx, order), nil
}

// Attach records the reference (path or URL) of the order's supporting document.
func (s *Service) Attach(ctx context.Context, actor *entity.User, id int64, reference string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Attach", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := requireActive(actor); err != nil {
		return nil, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, errorbank.Validation("attachment reference is required", errorbank.WithField("attachment"))
	}

	var order *entity.Order
	err := s.repo.Writer().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if order, err = s.lockEditable(ctx, tx, actor, id); err != nil {
			return err
		}
		order.Attachment = reference
		return s.repo.UpdateFields(ctx, tx, order, "attachment")
	})
	if err != nil {
		return nil, fail(span, "failed to attach document", err)
	}

	s.invalidate(ctx, id)
	return s.detail(ctx, order), nil
}

// lockEditable loads and locks the order, then checks scope, authoring rights and the
// editing rule, in that order.
func (s *Service) lockEditable(ctx context.Context, tx bun.Tx, actor *entity.User, id int64) (*entity.Order, error) {
	order, err := s.repo.Lock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanView(actor, order); err != nil {
		return nil, err
	}
	if !lifecycle.CanAuthor(actor.Role) {
		return nil, errorbank.PermissionDenied("role is not allowed to edit orders",
			errorbank.WithDetail("role", string(actor.Role)))
	}
	if err := lifecycle.CheckEdit(actor.Role, order.Status); err != nil {
		return nil, err
	}
	return order, nil
}

// applyUpdate copies the set fields of in onto order and returns the columns that changed.
func applyUpdate(order *entity.Order, in UpdateInput) ([]string, error) {
	var columns []string
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		order.Title = title
		columns = append(columns, "title")
	}
	if in.Description != nil {
		order.Description = *in.Description
		columns = append(columns, "description")
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, invalidEnum("type", *in.Type)
		}
		order.Type = *in.Type
		columns = append(columns, "type")
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, invalidEnum("priority", *in.Priority)
		}
		order.Priority = *in.Priority
		columns = append(columns, "priority")
	}
	if in.Currency != nil {
		if !in.Currency.Valid() {
			return nil, invalidEnum("currency", *in.Currency)
		}
		order.Currency = *in.Currency
		columns = append(columns, "currency")
	}
	switch {
	case in.ClearRequired:
		order.RequiredBy = nil
		columns = append(columns, "required_by")
	case in.RequiredBy != nil:
		order.RequiredBy = in.RequiredBy
		columns = append(columns, "required_by")
	}
	switch {
	case in.ClearSupplier:
		order.SupplierID = nil
		columns = append(columns, "supplier_id")
	case in.SupplierID != nil:
		order.SupplierID = in.SupplierID
		columns = append(columns, "supplier_id")
	}
	return columns, nil
}
