package order

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/policy"
	repo "github.com/Additional-Code/procura/internal/repository/order"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Get returns an order with items, history, creator, approver and supplier. Operators may
// only fetch their own orders.
func (s *Service) Get(ctx context.Context, actor *entity.User, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := requireActive(actor); err != nil {
		return nil, err
	}

	order, err := s.getFromCache(ctx, id)
	if err == nil {
		err = s.checkFresh(ctx, order)
	}
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, errStaleEntry) && !errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}
		if order, err = s.repo.GetDetail(ctx, id); err != nil {
			return nil, fail(span, "failed to load order", err)
		}
		s.storeInCache(ctx, order)
	}

	if err := policy.CanView(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns one page of the orders actor may see, newest first.
func (s *Service) List(ctx context.Context, actor *entity.User, f ListFilter) (*Page, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if err := requireActive(actor); err != nil {
		return nil, err
	}
	filter, err := f.toRepo()
	if err != nil {
		return nil, err
	}
	filter = policy.Scope(filter, actor)

	page := repo.Page{Page: max(f.Page, 1), Limit: s.pageSize(f.Limit)}
	orders, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, fail(span, "failed to list orders", err)
	}
	if orders == nil {
		orders = []*entity.Order{}
	}
	return &Page{Orders: orders, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// History returns the status history of an order, newest first.
func (s *Service) History(ctx context.Context, id int64) ([]*entity.OrderHistory, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.History", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, fail(span, "failed to load order", err)
	}
	return s.recorder.List(ctx, id)
}

// Delete removes an order and everything it owns.
func (s *Service) Delete(ctx context.Context, actor *entity.User, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := requireActive(actor); err != nil {
		return err
	}
	err := s.repo.Writer().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.repo.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := policy.CanDelete(actor, order); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return fail(span, "failed to delete order", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("order deleted", zap.Int64("id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

func (s *Service) pageSize(limit int) int {
	if limit <= 0 {
		return s.orders.DefaultPageSize
	}
	if s.orders.MaxPageSize > 0 && limit > s.orders.MaxPageSize {
		return s.orders.MaxPageSize
	}
	return limit
}

func (f ListFilter) toRepo() (repo.Filter, error) {
	out := repo.Filter{
		Type:        f.Type,
		Priority:    f.Priority,
		EntityKind:  f.EntityKind,
		Search:      f.Search,
		CreatedFrom: f.CreatedFrom,
		CreatedTo:   f.CreatedTo,
	}
	switch {
	case f.Status != "" && !f.Status.Valid():
		return out, invalidEnum("status", f.Status)
	case f.Type != "" && !f.Type.Valid():
		return out, invalidEnum("type", f.Type)
	case f.Priority != "" && !f.Priority.Valid():
		return out, invalidEnum("priority", f.Priority)
	case f.EntityKind != "" && !f.EntityKind.Valid():
		return out, invalidEnum("entity_kind", f.EntityKind)
	case f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom):
		return out, errorbank.Validation("date range ends before it starts", errorbank.WithField("date_to"))
	}
	if f.Status != "" {
		out.Statuses = []entity.Status{f.Status}
	}
	return out, nil
}
