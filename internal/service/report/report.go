package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/policy"
	repo "github.com/Additional-Code/procura/internal/repository/order"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Filter selects report rows. CreatedBy is ignored for operators, who always see only
// their own orders.
type Filter struct {
	Statuses   []entity.Status
	EntityKind entity.EntityKind
	SupplierID *int64
	CreatedBy  *int64
	Dates      DateRange
	Page       int
	Limit      int
}

// Report is one page of matching orders with totals over every match.
type Report struct {
	Orders     []*entity.Order `json:"orders"`
	Count      int             `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// Report lists matching orders newest first together with their count and summed total.
func (s *Service) Report(ctx context.Context, actor *entity.User, f Filter) (*Report, error) {
	ctx, span := tracer.Start(ctx, "ReportService.Report")
	defer span.End()

	filter, err := s.filter(actor, f)
	if err != nil {
		return nil, err
	}
	page := repo.Page{Page: max(f.Page, 1), Limit: s.pageSize(f.Limit)}

	out := &Report{Page: page.Page, Limit: page.Limit}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orders, count, err := s.repo.List(gctx, filter, page)
		out.Orders, out.Count = orders, count
		return err
	})
	g.Go(func() error {
		sum, err := s.repo.SumTotal(gctx, filter)
		out.Amount = sum
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		return nil, errorbank.StorageUnavailable("failed to build report", errorbank.WithCause(err))
	}
	if out.Orders == nil {
		out.Orders = []*entity.Order{}
	}
	out.TotalPages = (out.Count + page.Limit - 1) / page.Limit
	return out, nil
}

var exportHeader = []string{
	"code", "title", "type", "entity_kind", "status", "priority", "requester", "supplier",
	"currency", "subtotal", "tax", "total", "required_by", "created_at",
}

// Export writes every matching order as CSV followed by a totals row. Paging in f is ignored.
func (s *Service) Export(ctx context.Context, actor *entity.User, f Filter, w io.Writer) error {
	ctx, span := tracer.Start(ctx, "ReportService.Export")
	defer span.End()

	filter, err := s.filter(actor, f)
	if err != nil {
		return err
	}
	orders, _, err := s.repo.List(ctx, filter, repo.Page{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return errorbank.StorageUnavailable("failed to export report", errorbank.WithCause(err))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	amount := decimal.Zero
	for _, o := range orders {
		amount = amount.Add(o.Total)
		if err := cw.Write(exportRow(o)); err != nil {
			return err
		}
	}
	totals := make([]string, len(exportHeader))
	copy(totals, []string{"count", fmt.Sprint(len(orders)), "amount", amount.StringFixed(2)})
	if err := cw.Write(totals); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	s.logger.Debug("report exported", zap.Int("rows", len(orders)), zap.Int64("actor_id", actor.ID))
	return nil
}

func exportRow(o *entity.Order) []string {
	var requester, supplier, requiredBy string
	if o.Creator != nil {
		requester = o.Creator.Name
	}
	if o.Supplier != nil {
		supplier = o.Supplier.Name
	}
	if o.RequiredBy != nil {
		requiredBy = o.RequiredBy.UTC().Format(time.DateOnly)
	}
	return []string{
		o.Code, o.Title, string(o.Type), string(o.EntityKind), string(o.Status), string(o.Priority),
		requester, supplier, string(o.Currency),
		o.Subtotal.StringFixed(2), o.Tax.StringFixed(2), o.Total.StringFixed(2),
		requiredBy, o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) filter(actor *entity.User, f Filter) (repo.Filter, error) {
	if actor == nil {
		return repo.Filter{}, errorbank.Unauthorized("an authenticated user is required")
	}
	out, err := rangeFilter(f.Dates)
	if err != nil {
		return out, err
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return out, errorbank.Validation("invalid status", errorbank.WithField("status"), errorbank.WithDetail("value", string(st)))
		}
	}
	if f.EntityKind != "" && !f.EntityKind.Valid() {
		return out, errorbank.Validation("invalid entity_kind", errorbank.WithField("entity_kind"))
	}
	out.Statuses = f.Statuses
	out.EntityKind = f.EntityKind
	out.SupplierID = f.SupplierID
	out.CreatedBy = f.CreatedBy
	return policy.Scope(out, actor), nil
}

func (s *Service) pageSize(limit int) int {
	if limit <= 0 {
		return defaultReportSize
	}
	if s.maxPage > 0 && limit > s.maxPage {
		return s.maxPage
	}
	return limit
}
