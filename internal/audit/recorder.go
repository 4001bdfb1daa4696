// Package audit appends and reads the immutable status history of orders.
package audit

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Module provides the recorder to Fx.
var Module = fx.Provide(NewRecorder)

// Entry is one status change to record.
type Entry struct {
	OrderID        int64
	PreviousStatus *entity.Status
	NewStatus      entity.Status
	ActorID        int64
	Comment        string
}

// Recorder appends history entries.
type Recorder struct {
	reader *bun.DB
	now    func() time.Time
}

// NewRecorder wires a recorder; reads use the writer so history is visible right after a
// transition commits.
func NewRecorder(conns *database.Connections) *Recorder {
	return &Recorder{reader: conns.Writer, now: time.Now}
}

// Record appends e inside db, which is normally the transaction that changed the status.
func (r *Recorder) Record(ctx context.Context, db bun.IDB, e Entry) (*entity.OrderHistory, error) {
	if e.NewStatus == "" {
		return nil, errorbank.Validation("history entry requires a new status", errorbank.WithField("new_status"))
	}
	exists, err := db.NewSelect().Model((*entity.User)(nil)).Where("u.id = ?", e.ActorID).Exists(ctx)
	if err != nil {
		return nil, errorbank.StorageUnavailable("failed to record history", errorbank.WithCause(err))
	}
	if !exists {
		return nil, errorbank.NotFound("acting user not found", errorbank.WithDetail("user_id", e.ActorID))
	}

	entry := &entity.OrderHistory{
		OrderID:        e.OrderID,
		ActorID:        e.ActorID,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		Comment:        e.Comment,
		CreatedAt:      r.now().UTC(),
	}
	if _, err := db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, errorbank.StorageUnavailable("failed to record history", errorbank.WithCause(err))
	}
	return entry, nil
}

// List returns the history of orderID, newest first.
func (r *Recorder) List(ctx context.Context, orderID int64) ([]*entity.OrderHistory, error) {
	entries := make([]*entity.OrderHistory, 0)
	err := r.reader.NewSelect().
		Model(&entries).
		Relation("Actor").
		Where("oh.order_id = ?", orderID).
		Order("oh.created_at DESC", "oh.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, errorbank.StorageUnavailable("failed to load history", errorbank.WithCause(err))
	}
	return entries, nil
}
