package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

// Module provides the user directory to Fx.
var Module = fx.Provide(NewRepository)

// ErrNotFound is returned when a user is missing.
var ErrNotFound = errors.New("user not found")

// Repository stores the user directory. Lookups use the read connection.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires the directory on the configured connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListActiveByRoles returns every active user holding one of roles.
func (r *Repository) ListActiveByRoles(ctx context.Context, roles ...entity.Role) ([]*entity.User, error) {
	var users []*entity.User
	if len(roles) == 0 {
		return users, nil
	}
	err := r.reader.NewSelect().
		Model(&users).
		Where("u.active = ?", true).
		Where("u.role IN (?)", bun.In(roles)).
		Order("u.id ASC").
		Scan(ctx)
	return users, err
}

// List returns every user, newest first.
func (r *Repository) List(ctx context.Context) ([]*entity.User, error) {
	var users []*entity.User
	err := r.writer.NewSelect().Model(&users).Order("u.created_at DESC", "u.id DESC").Scan(ctx)
	return users, err
}

// Create inserts u and fills its id.
func (r *Repository) Create(ctx context.Context, u *entity.User) error {
	_, err := r.writer.NewInsert().Model(u).Exec(ctx)
	return err
}

// Get fetches a user by id from the writer, for callers that just changed it.
func (r *Repository) Get(ctx context.Context, id int64) (*entity.User, error) {
	u := new(entity.User)
	err := r.writer.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Update writes the named columns of an existing user.
func (r *Repository) Update(ctx context.Context, u *entity.User, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	_, err := r.writer.NewUpdate().Model(u).Column(columns...).WherePK().Exec(ctx)
	return err
}

// ToggleActive flips the active flag of a user and returns the stored row.
func (r *Repository) ToggleActive(ctx context.Context, id int64) (*entity.User, error) {
	res, err := r.writer.NewUpdate().
		Model((*entity.User)(nil)).
		Set("active = NOT active").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}
