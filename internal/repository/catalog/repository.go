package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

// Module provides the supplier/category repository to Fx.
var Module = fx.Provide(NewRepository)

// ErrNotFound is returned when a supplier or category is missing.
var ErrNotFound = errors.New("catalog entry not found")

// Repository stores the suppliers and categories referenced by orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// SupplierExists reports whether a supplier with id exists.
func (r *Repository) SupplierExists(ctx context.Context, id int64) (bool, error) {
	return r.reader.NewSelect().Model((*entity.Supplier)(nil)).Where("s.id = ?", id).Exists(ctx)
}

// MissingCategories returns the ids in ids that do not exist.
func (r *Repository) MissingCategories(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []int64
	err := r.reader.NewSelect().
		Model((*entity.Category)(nil)).
		Column("id").
		Where("c.id IN (?)", bun.In(ids)).
		Scan(ctx, &found)
	if err != nil {
		return nil, err
	}
	present := make(map[int64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Suppliers lists suppliers, active ones only unless all is set.
func (r *Repository) Suppliers(ctx context.Context, all bool) ([]*entity.Supplier, error) {
	var out []*entity.Supplier
	q := r.reader.NewSelect().Model(&out).Order("s.name ASC")
	if !all {
		q = q.Where("s.active = ?", true)
	}
	err := q.Scan(ctx)
	return out, err
}

// Categories lists categories, active ones only unless all is set.
func (r *Repository) Categories(ctx context.Context, all bool) ([]*entity.Category, error) {
	var out []*entity.Category
	q := r.reader.NewSelect().Model(&out).Order("c.name ASC")
	if !all {
		q = q.Where("c.active = ?", true)
	}
	err := q.Scan(ctx)
	return out, err
}

// CreateSupplier inserts s and fills its id.
func (r *Repository) CreateSupplier(ctx context.Context, s *entity.Supplier) error {
	_, err := r.writer.NewInsert().Model(s).Exec(ctx)
	return err
}

// Supplier fetches a supplier by id from the writer.
func (r *Repository) Supplier(ctx context.Context, id int64) (*entity.Supplier, error) {
	s := new(entity.Supplier)
	if err := r.writer.NewSelect().Model(s).Where("s.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// UpdateSupplier writes the named columns of an existing supplier.
func (r *Repository) UpdateSupplier(ctx context.Context, s *entity.Supplier, columns ...string) error {
	return r.update(ctx, s, columns)
}

// ToggleSupplier flips the active flag of a supplier and returns the stored row.
func (r *Repository) ToggleSupplier(ctx context.Context, id int64) (*entity.Supplier, error) {
	if err := r.toggle(ctx, (*entity.Supplier)(nil), id); err != nil {
		return nil, err
	}
	return r.Supplier(ctx, id)
}

// CreateCategory inserts c and fills its id.
func (r *Repository) CreateCategory(ctx context.Context, c *entity.Category) error {
	_, err := r.writer.NewInsert().Model(c).Exec(ctx)
	return err
}

// Category fetches a category by id from the writer.
func (r *Repository) Category(ctx context.Context, id int64) (*entity.Category, error) {
	c := new(entity.Category)
	if err := r.writer.NewSelect().Model(c).Where("c.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// UpdateCategory writes the named columns of an existing category.
func (r *Repository) UpdateCategory(ctx context.Context, c *entity.Category, columns ...string) error {
	return r.update(ctx, c, columns)
}

// ToggleCategory flips the active flag of a category and returns the stored row.
func (r *Repository) ToggleCategory(ctx context.Context, id int64) (*entity.Category, error) {
	if err := r.toggle(ctx, (*entity.Category)(nil), id); err != nil {
		return nil, err
	}
	return r.Category(ctx, id)
}

func (r *Repository) update(ctx context.Context, model any, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	_, err := r.writer.NewUpdate().Model(model).Column(columns...).WherePK().Exec(ctx)
	return err
}

// toggle flips active in a single statement so concurrent toggles do not lose an update.
func (r *Repository) toggle(ctx context.Context, model any, id int64) error {
	res, err := r.writer.NewUpdate().
		Model(model).
		Set("active = NOT active").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
