package notification

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

// Module provides the notification repository to Fx.
var Module = fx.Provide(NewRepository)

// Repository persists in-app notifications.
type Repository struct {
	writer *bun.DB
}

// NewRepository wires the repository on the writer connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer}
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *entity.Notification) error {
	_, err := r.writer.NewInsert().Model(n).Exec(ctx)
	return err
}

// ListForUser returns the newest notifications addressed to userID.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	var out []*entity.Notification
	q := r.writer.NewSelect().
		Model(&out).
		Relation("Order").
		Where("n.user_id = ?", userID).
		Order("n.created_at DESC", "n.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return out, err
}

// CountUnread returns the number of unread notifications for userID.
func (r *Repository) CountUnread(ctx context.Context, userID int64) (int, error) {
	return r.writer.NewSelect().
		Model((*entity.Notification)(nil)).
		Where("n.user_id = ?", userID).
		Where("n.is_read = ?", false).
		Count(ctx)
}

// MarkRead flags one notification as read. It reports false when no notification with id
// belongs to userID.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.writer.NewUpdate().
		Model((*entity.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// MySQL reports zero affected rows when the flag was already set.
	return r.writer.NewSelect().
		Model((*entity.Notification)(nil)).
		Where("n.id = ?", id).
		Where("n.user_id = ?", userID).
		Exists(ctx)
}

// MarkAllRead flags every unread notification of userID as read and returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.writer.NewUpdate().
		Model((*entity.Notification)(nil)).
		Set("is_read = ?", true).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
