package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
)

//go:embed sql
var migrations embed.FS

// Module provides the Migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the schema. PostgreSQL and MySQL run the embedded goose migrations;
// SQLite builds its tables straight from the models.
type Migrator struct {
	db      *bun.DB
	dialect string
	dir     string
	logger  *zap.Logger
}

// New constructs a migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	m := &Migrator{db: conns.Writer, dialect: dialect, logger: logger}
	if dialect == "sqlite3" {
		return m, nil
	}

	m.dir = "sql/" + cfg.Database.Driver
	if _, err := fs.Stat(migrations, m.dir); err != nil {
		return nil, fmt.Errorf("no migrations for driver %s: %w", cfg.Database.Driver, err)
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}
	return m, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if m.dir == "" {
		if err := database.CreateSchema(ctx, m.db); err != nil {
			return err
		}
		m.logger.Info("schema created from models", zap.String("dialect", m.dialect))
		return nil
	}

	if err := goose.UpContext(ctx, m.db.DB, m.dir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}
	version, _ := m.Version(ctx)
	m.logger.Info("migrations applied", zap.String("dialect", m.dialect), zap.Int64("version", version))
	return nil
}

// Version reports the applied schema version. SQLite reports 1 once the tables exist.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if m.dir != "" {
		return goose.GetDBVersionContext(ctx, m.db.DB)
	}
	var n int
	err := m.db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", "orders").Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 1, nil
	}
	return 0, nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
// SQLite has a single schema version, so any rollback drops every table.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if m.dir == "" {
		if err := database.DropSchema(ctx, m.db); err != nil {
			return err
		}
		m.logger.Info("schema dropped", zap.String("dialect", m.dialect))
		return nil
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, m.dir, 0); err != nil && !isNoMigrationErr(err) {
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	for i := 0; i < max(steps, 1); i++ {
		if err := goose.DownContext(ctx, m.db.DB, m.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback", zap.Int("rolled_back", i))
				return nil
			}
			return err
		}
	}
	m.logger.Info("migrations rolled back", zap.Int("steps", max(steps, 1)))
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
