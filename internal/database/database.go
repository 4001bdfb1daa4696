package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections bundles writer and reader bun instances. Reader equals Writer unless a
// separate DB_READER_DSN is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Single wraps one bun instance as both writer and reader.
func Single(db *bun.DB) *Connections {
	return &Connections{Writer: db, Reader: db}
}

// SupportsRowLocks reports whether the writer dialect understands SELECT ... FOR UPDATE.
// SQLite serializes writers on the whole database instead.
func (c *Connections) SupportsRowLocks() bool {
	return SupportsRowLocks(c.Writer)
}

// SupportsRowLocks reports whether db understands SELECT ... FOR UPDATE.
func SupportsRowLocks(db bun.IDB) bool {
	return db.Dialect().Name() != dialect.SQLite
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New opens the writer and reader pools and ties them to the Fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	conns, err := Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.Bool("replica", conns.Reader != conns.Writer))
			return nil
		},
		OnStop: func(context.Context) error {
			return conns.Close()
		},
	})
	return conns, nil
}

// Open builds the pools without connecting. An empty reader DSN reuses the writer.
func Open(cfg config.Database, logger *zap.Logger) (*Connections, error) {
	dial, err := selectDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	var hook bun.QueryHook
	if ql := NewQueryLogger(logger, cfg.SlowQuery); ql != nil {
		hook = ql
	}

	writer, err := openBun(cfg, cfg.WriterDSN, dial, hook)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	conns := Single(writer)

	if cfg.ReaderDSN != "" && cfg.ReaderDSN != cfg.WriterDSN {
		if conns.Reader, err = openBun(cfg, cfg.ReaderDSN, dial, hook); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}
	return conns, nil
}

// Ping checks both pools.
func (c *Connections) Ping(ctx context.Context) error {
	if err := ping(ctx, c.Writer); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := ping(ctx, c.Reader); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Close closes both pools, reporting the first failure.
func (c *Connections) Close() error {
	var closeErr error
	if err := c.Writer.Close(); err != nil {
		closeErr = fmt.Errorf("close writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := c.Reader.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("close reader: %w", err)
		}
	}
	return closeErr
}

func ping(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
