package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/procura/internal/entity"
)

// Models lists every table owned by the service, parents first.
var Models = []any{
	(*entity.User)(nil),
	(*entity.Supplier)(nil),
	(*entity.Category)(nil),
	(*entity.Order)(nil),
	(*entity.OrderItem)(nil),
	(*entity.OrderHistory)(nil),
	(*entity.Notification)(nil),
	(*entity.OrderCodeLock)(nil),
}

type index struct {
	name    string
	model   any
	columns []string
}

var indexes = []index{
	{"order_items_order_id_idx", (*entity.OrderItem)(nil), []string{"order_id"}},
	{"order_history_order_id_idx", (*entity.OrderHistory)(nil), []string{"order_id"}},
	{"orders_created_by_idx", (*entity.Order)(nil), []string{"created_by"}},
	{"orders_status_idx", (*entity.Order)(nil), []string{"status"}},
	{"notifications_user_id_idx", (*entity.Notification)(nil), []string{"user_id", "is_read"}},
}

// CreateSchema creates all tables from the bun models. It backs SQLite deployments and tests;
// PostgreSQL and MySQL deployments run the goose migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema drops all tables, children first.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(Models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(Models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table %T: %w", Models[i], err)
		}
	}
	return nil
}
