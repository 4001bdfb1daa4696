// Package report aggregates order data for dashboards, report listings and exports.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/policy"
	repo "github.com/Additional-Code/procura/internal/repository/order"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/Additional-Code/procura/service/report")

const (
	trendMonths        = 6
	recentActivitySize = 8
	urgentSize         = 5
	defaultReportSize  = 25
)

// Module provides the report service to Fx.
var Module = fx.Provide(NewService)

// Service computes statistics and reports over the orders an actor may see.
type Service struct {
	repo    *repo.Repository
	logger  *zap.Logger
	maxPage int
	now     func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a report Service.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, logger: logger, maxPage: p.Config.Orders.MaxPageSize, now: time.Now}
}

// DateRange bounds order creation dates. To is inclusive of the whole day.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// MonthTrend counts orders created in one calendar month.
type MonthTrend struct {
	Month    string                `json:"month"`
	Total    int                   `json:"total"`
	ByStatus map[entity.Status]int `json:"by_status"`
}

// Statistics is the dashboard summary.
type Statistics struct {
	Total              int                    `json:"total"`
	CountsByStatus     map[entity.Status]int  `json:"counts_by_status"`
	CompletedThisMonth int                    `json:"completed_this_month"`
	AmountThisMonth    decimal.Decimal        `json:"amount_this_month"`
	MonthlyTrend       []MonthTrend           `json:"monthly_trend"`
	ByCategory         []repo.CategoryCount   `json:"by_category"`
	RecentActivity     []*entity.OrderHistory `json:"recent_activity"`
	UrgentOpenOrders   []*entity.Order        `json:"urgent_open_orders"`
}

// Statistics computes the dashboard summary for actor. The queries run concurrently.
func (s *Service) Statistics(ctx context.Context, actor *entity.User, dates DateRange) (*Statistics, error) {
	ctx, span := tracer.Start(ctx, "ReportService.Statistics")
	defer span.End()

	if actor == nil {
		return nil, errorbank.Unauthorized("an authenticated user is required")
	}
	base, err := rangeFilter(dates)
	if err != nil {
		return nil, err
	}
	base = policy.Scope(base, actor)
	scope := policy.Scope(repo.Filter{}, actor)

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	trendStart := monthStart.AddDate(0, -(trendMonths - 1), 0)

	out := &Statistics{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.repo.CountByStatus(gctx, base)
		if err != nil {
			return err
		}
		out.CountsByStatus = make(map[entity.Status]int, len(entity.Statuses))
		for _, st := range entity.Statuses {
			out.CountsByStatus[st] = 0
		}
		for _, row := range rows {
			out.CountsByStatus[row.Status] = row.Count
			out.Total += row.Count
		}
		return nil
	})
	g.Go(func() error {
		f := scope
		f.Statuses = []entity.Status{entity.StatusCompleted}
		f.UpdatedFrom = &monthStart
		n, err := s.repo.Count(gctx, f)
		out.CompletedThisMonth = n
		return err
	})
	g.Go(func() error {
		f := scope
		f.Statuses = []entity.Status{entity.StatusApproved, entity.StatusCompleted}
		f.UpdatedFrom = &monthStart
		sum, err := s.repo.SumTotal(gctx, f)
		out.AmountThisMonth = sum
		return err
	})
	g.Go(func() error {
		f := scope
		f.CreatedFrom = &trendStart
		stamps, err := s.repo.Stamps(gctx, f)
		if err != nil {
			return err
		}
		out.MonthlyTrend = buildTrend(trendStart, stamps)
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.CountItemsByCategory(gctx, base)
		if rows == nil {
			rows = []repo.CategoryCount{}
		}
		out.ByCategory = rows
		return err
	})
	g.Go(func() error {
		entries, err := s.repo.RecentHistory(gctx, base, recentActivitySize)
		if entries == nil {
			entries = []*entity.OrderHistory{}
		}
		out.RecentActivity = entries
		return err
	})
	g.Go(func() error {
		f := base
		f.Priority = entity.PriorityUrgent
		f.ExcludeStatuses = []entity.Status{entity.StatusCompleted, entity.StatusCancelled}
		orders, _, err := s.repo.List(gctx, f, repo.Page{Page: 1, Limit: urgentSize})
		if orders == nil {
			orders = []*entity.Order{}
		}
		out.UrgentOpenOrders = orders
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "statistics failed")
		return nil, errorbank.StorageUnavailable("failed to compute statistics", errorbank.WithCause(err))
	}
	return out, nil
}

// buildTrend buckets stamps into the trendMonths calendar months starting at start.
func buildTrend(start time.Time, stamps []repo.Stamp) []MonthTrend {
	trend := make([]MonthTrend, trendMonths)
	index := make(map[string]int, trendMonths)
	for i := range trend {
		month := start.AddDate(0, i, 0).Format("2006-01")
		trend[i] = MonthTrend{Month: month, ByStatus: map[entity.Status]int{}}
		index[month] = i
	}
	for _, st := range stamps {
		i, ok := index[st.CreatedAt.UTC().Format("2006-01")]
		if !ok {
			continue
		}
		trend[i].Total++
		trend[i].ByStatus[st.Status]++
	}
	return trend
}

func rangeFilter(dates DateRange) (repo.Filter, error) {
	var f repo.Filter
	if dates.From != nil {
		from := dates.From.UTC()
		f.CreatedFrom = &from
	}
	if dates.To != nil {
		to := endOfDay(*dates.To)
		f.CreatedTo = &to
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		return f, errorbank.Validation("date range ends before it starts", errorbank.WithField("date_to"))
	}
	return f, nil
}

func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
