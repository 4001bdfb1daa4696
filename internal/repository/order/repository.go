package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/procura/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Filter narrows order queries. Zero values mean "no restriction".
type Filter struct {
	Statuses        []entity.Status
	ExcludeStatuses []entity.Status
	Type            entity.OrderType
	Priority        entity.Priority
	EntityKind      entity.EntityKind
	Search          string
	RequiredFrom    *time.Time
	RequiredTo      *time.Time
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	UpdatedFrom     *time.Time
	CreatedBy       *int64
	SupplierID      *int64
}

// Page requests a window of results. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Repository encapsulates read/write access for orders and their owned rows.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Writer exposes the primary connection for callers that open transactions.
func (r *Repository) Writer() *bun.DB {
	return r.writer
}

// Insert persists a new order inside tx.
func (r *Repository) Insert(ctx context.Context, tx bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Insert", trace.WithAttributes(attribute.String("order.code", order.Code)))
	defer span.End()

	_, err := tx.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// UpdateFields writes the named columns of order inside tx and bumps updated_at and version.
// The row must be locked by tx.
func (r *Repository) UpdateFields(ctx context.Context, tx bun.IDB, order *entity.Order, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateFields", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	order.UpdatedAt = time.Now().UTC()
	order.Version++
	columns = append(columns, "updated_at", "version")
	res, err := tx.NewUpdate().Model(order).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Lock loads an order inside tx, taking a row lock where the dialect supports it.
func (r *Repository) Lock(ctx context.Context, tx bun.IDB, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Lock", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	q := tx.NewSelect().Model(order).Where("o.id = ?", id)
	if database.SupportsRowLocks(tx) {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetByID fetches an order row without relations using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// Version returns the committed version of an order. It reads from the writer, like GetDetail.
func (r *Repository) Version(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.writer.NewSelect().Model((*entity.Order)(nil)).Column("version").Where("o.id = ?", id).Scan(ctx, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return version, err
}

// GetDetail fetches an order with items, history (newest first), creator, approver and supplier.
// It reads from the writer so that callers see their own just-committed changes.
func (r *Repository) GetDetail(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetDetail", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().
		Model(order).
		Relation("Creator").
		Relation("Approver").
		Relation("Supplier").
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oi.position ASC", "oi.id ASC")
		}).
		Relation("Items.Category").
		Relation("History", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oh.created_at DESC", "oh.id DESC")
		}).
		Relation("History.Actor").
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns one page of orders matching f, newest first, plus the total match count.
func (r *Repository) List(ctx context.Context, f Filter, page Page) ([]*entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Creator").
		Relation("Supplier").
		Apply(f.apply).
		Order("o.created_at DESC", "o.id DESC")
	if page.Limit > 0 {
		q = q.Limit(page.Limit).Offset(page.Offset())
	}
	count, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return orders, count, nil
}

// SumTotal adds up the total of every order matching f.
func (r *Repository) SumTotal(ctx context.Context, f Filter) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("SUM(o.total)").
		Apply(f.apply).
		Scan(ctx, &sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// Count returns how many orders match f.
func (r *Repository) Count(ctx context.Context, f Filter) (int, error) {
	return r.reader.NewSelect().Model((*entity.Order)(nil)).Apply(f.apply).Count(ctx)
}

// StatusCount is one row of a per-status aggregate.
type StatusCount struct {
	Status entity.Status `bun:"status"`
	Count  int           `bun:"count"`
}

// CountByStatus groups matching orders by status.
func (r *Repository) CountByStatus(ctx context.Context, f Filter) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("o.status AS status").
		ColumnExpr("COUNT(*) AS count").
		Apply(f.apply).
		GroupExpr("o.status").
		Scan(ctx, &rows)
	return rows, err
}

// Stamp is the creation time and status of one order, used for trend aggregation.
type Stamp struct {
	Status    entity.Status `bun:"status"`
	CreatedAt time.Time     `bun:"created_at"`
}

// Stamps returns status and creation time for every matching order.
func (r *Repository) Stamps(ctx context.Context, f Filter) ([]Stamp, error) {
	var rows []Stamp
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("o.status, o.created_at").
		Apply(f.apply).
		Scan(ctx, &rows)
	return rows, err
}

// CategoryCount is the number of line items filed under a category.
type CategoryCount struct {
	CategoryID *int64 `bun:"category_id" json:"category_id"`
	Name       string `bun:"name" json:"name"`
	Count      int    `bun:"count" json:"count"`
}

// CountItemsByCategory groups line items of matching orders by category.
func (r *Repository) CountItemsByCategory(ctx context.Context, f Filter) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.reader.NewSelect().
		TableExpr("order_items AS oi").
		Join("JOIN orders AS o ON o.id = oi.order_id").
		Join("LEFT JOIN categories AS c ON c.id = oi.category_id").
		ColumnExpr("oi.category_id AS category_id").
		ColumnExpr("COALESCE(c.name, '') AS name").
		ColumnExpr("COUNT(oi.id) AS count").
		Apply(f.apply).
		GroupExpr("oi.category_id, c.name").
		OrderExpr("count DESC").
		Scan(ctx, &rows)
	return rows, err
}

// RecentHistory returns the newest history entries of matching orders.
func (r *Repository) RecentHistory(ctx context.Context, f Filter, limit int) ([]*entity.OrderHistory, error) {
	var entries []*entity.OrderHistory
	err := r.reader.NewSelect().
		Model(&entries).
		Relation("Actor").
		Relation("Order").
		Where("oh.order_id IN (?)", r.reader.NewSelect().Model((*entity.Order)(nil)).ColumnExpr("o.id").Apply(f.apply)).
		Order("oh.created_at DESC", "oh.id DESC").
		Limit(limit).
		Scan(ctx)
	return entries, err
}

// Delete removes an order together with its items, history and notifications inside tx.
func (r *Repository) Delete(ctx context.Context, tx bun.IDB, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	children := []any{
		(*entity.OrderItem)(nil),
		(*entity.OrderHistory)(nil),
		(*entity.Notification)(nil),
	}
	for _, model := range children {
		if _, err := tx.NewDelete().Model(model).Where("order_id = ?", id).Exec(ctx); err != nil {
			span.RecordError(err)
			return err
		}
	}
	res, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (f Filter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if len(f.Statuses) > 0 {
		q = q.Where("o.status IN (?)", bun.In(f.Statuses))
	}
	if len(f.ExcludeStatuses) > 0 {
		q = q.Where("o.status NOT IN (?)", bun.In(f.ExcludeStatuses))
	}
	if f.Type != "" {
		q = q.Where("o.type = ?", f.Type)
	}
	if f.Priority != "" {
		q = q.Where("o.priority = ?", f.Priority)
	}
	if f.EntityKind != "" {
		q = q.Where("o.entity_kind = ?", f.EntityKind)
	}
	if f.CreatedBy != nil {
		q = q.Where("o.created_by = ?", *f.CreatedBy)
	}
	if f.SupplierID != nil {
		q = q.Where("o.supplier_id = ?", *f.SupplierID)
	}
	if f.RequiredFrom != nil {
		q = q.Where("o.required_by >= ?", *f.RequiredFrom)
	}
	if f.RequiredTo != nil {
		q = q.Where("o.required_by <= ?", *f.RequiredTo)
	}
	if f.CreatedFrom != nil {
		q = q.Where("o.created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("o.created_at <= ?", *f.CreatedTo)
	}
	if f.UpdatedFrom != nil {
		q = q.Where("o.updated_at >= ?", *f.UpdatedFrom)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("o.code LIKE ?", like).
				WhereOr("o.title LIKE ?", like).
				WhereOr("o.description LIKE ?", like)
		})
	}
	return q
}
