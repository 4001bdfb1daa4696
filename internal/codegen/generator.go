// Package codegen produces the sequential, human-readable order codes (PED-2026-00042).
package codegen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/Additional-Code/procura/codegen")

// SequenceWidth is the zero-padded width of the per-year sequence.
const SequenceWidth = 5

// Module provides the code generator to Fx.
var Module = fx.Provide(NewFromConfig)

// Generator issues order codes unique per prefix and calendar year.
type Generator struct {
	db     *bun.DB
	prefix string
	now    func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock overrides the time source used to determine the calendar year.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithPrefix overrides the leading code segment (default "PED").
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// New constructs a Generator over the writer connection.
func New(conns *database.Connections, opts ...Option) *Generator {
	g := &Generator{db: conns.Writer, prefix: "PED", now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig is the Fx constructor.
func NewFromConfig(cfg config.Config, conns *database.Connections) *Generator {
	return New(conns, WithPrefix(cfg.Orders.CodePrefix))
}

// Prefix returns the code prefix for the year at t, e.g. "PED-2026-".
func (g *Generator) Prefix(t time.Time) string {
	return fmt.Sprintf("%s-%d-", g.prefix, t.Year())
}

// Generate computes the next code in its own transaction. The code is not reserved: callers
// that insert an order must use Next inside the inserting transaction instead.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	var code string
	err := g.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		code, err = g.Next(ctx, tx)
		return err
	})
	if err != nil {
		if errorbank.Is(err, errorbank.KindGenerationFailed) {
			return "", err
		}
		return "", errorbank.GenerationFailed("failed to generate order code", errorbank.WithCause(err))
	}
	return code, nil
}

// Next computes the next code while holding the year's lock row inside tx. The lock is
// released when tx ends, so the order carrying the code must be inserted in the same tx.
func (g *Generator) Next(ctx context.Context, tx bun.Tx) (string, error) {
	prefix := g.Prefix(g.now())
	ctx, span := tracer.Start(ctx, "CodeGenerator.Next")
	span.SetAttributes(attribute.String("order.code_prefix", prefix))
	defer span.End()

	fail := func(msg string, err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return "", errorbank.GenerationFailed("failed to generate order code",
			errorbank.WithCause(fmt.Errorf("%s: %w", msg, err)),
			errorbank.WithDetail("prefix", prefix))
	}

	lock := &entity.OrderCodeLock{Prefix: prefix}
	if _, err := tx.NewInsert().Model(lock).Ignore().Returning("NULL").Exec(ctx); err != nil {
		return fail("ensure lock row", err)
	}

	if err := lockQuery(tx, lock).Scan(ctx); err != nil {
		return fail("lock prefix", err)
	}

	var last []string
	err := tx.NewSelect().
		Model((*entity.Order)(nil)).
		Column("code").
		Where("code LIKE ?", prefix+"%").
		OrderExpr("code DESC").
		Limit(1).
		Scan(ctx, &last)
	if err != nil {
		return fail("read highest code", err)
	}

	next := 1
	if len(last) > 0 {
		seq, err := ParseSequence(last[0], prefix)
		if err != nil {
			return fail("parse highest code", err)
		}
		next = seq + 1
	}
	return Format(prefix, next), nil
}

// lockQuery reads the prefix row. Dialects with row locks hold it FOR UPDATE until the
// transaction ends; SQLite already holds the database write lock from the insert above.
func lockQuery(db bun.IDB, lock *entity.OrderCodeLock) *bun.SelectQuery {
	q := db.NewSelect().Model(lock).Where("prefix = ?", lock.Prefix)
	if database.SupportsRowLocks(db) {
		q = q.For("UPDATE")
	}
	return q
}

// Format renders prefix plus the zero-padded sequence.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, SequenceWidth, seq)
}

// ParseSequence extracts the numeric sequence from code, which must start with prefix.
func ParseSequence(code, prefix string) (int, error) {
	if !strings.HasPrefix(code, prefix) {
		return 0, fmt.Errorf("code %q does not start with %q", code, prefix)
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(code, prefix))
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("code %q has a malformed sequence", code)
	}
	return seq, nil
}
