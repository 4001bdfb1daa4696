package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// QueryLogger is a bun query hook. Failed queries are logged at Warn, queries slower than the
// threshold at Info, and everything else at Debug.
type QueryLogger struct {
	logger    *zap.Logger
	threshold time.Duration
}

var _ bun.QueryHook = (*QueryLogger)(nil)

// NewQueryLogger returns nil when logger is nil.
func NewQueryLogger(logger *zap.Logger, threshold time.Duration) *QueryLogger {
	if logger == nil {
		return nil
	}
	return &QueryLogger{logger: logger.Named("sql"), threshold: threshold}
}

func (h *QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", append(fields, zap.String("query", event.Query), zap.Error(event.Err))...)
	case h.threshold > 0 && elapsed >= h.threshold:
		h.logger.Info("slow query", append(fields, zap.String("query", event.Query))...)
	default:
		if ce := h.logger.Check(zap.DebugLevel, "query"); ce != nil {
			ce.Write(append(fields, zap.String("query", event.Query))...)
		}
	}
}
