package codegen

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 1, 12, 0, 0, 0, time.UTC) }
}

func insertWithCode(t *testing.T, g *Generator, conns *database.Connections, creator int64) string {
	t.Helper()
	code, err := create(g, conns, creator)
	require.NoError(t, err)
	return code
}

func create(g *Generator, conns *database.Connections, creator int64) (string, error) {
	var code string
	err := conns.Writer.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		code, err = g.Next(ctx, tx)
		if err != nil {
			return err
		}
		order := &entity.Order{
			Code:       code,
			Title:      "Office supplies",
			Type:       entity.TypeStandard,
			EntityKind: entity.EntityOrganization,
			Status:     entity.StatusDraft,
			Priority:   entity.PriorityMedium,
			Currency:   entity.CurrencyLocal,
			CreatedBy:  creator,
		}
		_, err = tx.NewInsert().Model(order).Exec(ctx)
		return err
	})
	return code, err
}

func TestFormatAndParse(t *testing.T) {
	require.Equal(t, "PED-2026-00001", Format("PED-2026-", 1))
	require.Equal(t, "PED-2026-12345", Format("PED-2026-", 12345))

	seq, err := ParseSequence("PED-2026-00042", "PED-2026-")
	require.NoError(t, err)
	require.Equal(t, 42, seq)

	_, err = ParseSequence("PED-2025-00042", "PED-2026-")
	require.Error(t, err)
	_, err = ParseSequence("PED-2026-abc", "PED-2026-")
	require.Error(t, err)
}

func TestGenerateStartsAtOneAndIncrements(t *testing.T) {
	conns := dbtest.Open(t)
	user := dbtest.User(t, conns.Writer, "ana", entity.RoleOperator)
	g := New(conns, WithClock(fixedClock(2026)))

	preview, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "PED-2026-00001", preview)

	// Previewing does not consume the sequence.
	require.Equal(t, "PED-2026-00001", insertWithCode(t, g, conns, user.ID))
	require.Equal(t, "PED-2026-00002", insertWithCode(t, g, conns, user.ID))

	preview, err = g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "PED-2026-00003", preview)
}

func TestSequenceResetsPerYear(t *testing.T) {
	conns := dbtest.Open(t)
	user := dbtest.User(t, conns.Writer, "ana", entity.RoleOperator)

	year := 2026
	g := New(conns, WithClock(func() time.Time { return fixedClock(year)() }))
	for i := 0; i < 3; i++ {
		insertWithCode(t, g, conns, user.ID)
	}

	year = 2027
	require.Equal(t, "PED-2027-00001", insertWithCode(t, g, conns, user.ID))
}

func TestConcurrentCreationYieldsDistinctSequentialCodes(t *testing.T) {
	conns := dbtest.OpenFile(t, 8)
	user := dbtest.User(t, conns.Writer, "ana", entity.RoleOperator)
	g := New(conns, WithClock(fixedClock(2026)))

	const n = 20
	codes := make(chan string, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := create(g, conns, user.ID)
			if err != nil {
				errs <- err
				return
			}
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := make(map[string]struct{}, n)
	for code := range codes {
		seen[code] = struct{}{}
	}
	require.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		require.Contains(t, seen, Format("PED-2026-", i))
	}
}

func TestLockQueryHoldsRowWhereSupported(t *testing.T) {
	lock := &entity.OrderCodeLock{Prefix: "PED-2026-"}

	pg := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://procura@127.0.0.1:1/procura?sslmode=disable"))), pgdialect.New())
	t.Cleanup(func() { _ = pg.Close() })
	mysqlDB, err := sql.Open("mysql", "procura@tcp(127.0.0.1:1)/procura")
	require.NoError(t, err)
	my := bun.NewDB(mysqlDB, mysqldialect.New())
	t.Cleanup(func() { _ = my.Close() })

	for name, db := range map[string]*bun.DB{"postgres": pg, "mysql": my} {
		query := lockQuery(db, lock).String()
		require.Contains(t, query, "PED-2026-", name)
		require.True(t, strings.HasSuffix(query, "FOR UPDATE"), "%s: %s", name, query)
	}

	conns := dbtest.Open(t)
	require.NotContains(t, lockQuery(conns.Writer, lock).String(), "FOR UPDATE")
}

func TestGenerateFailsWhenStoreUnavailable(t *testing.T) {
	conns := dbtest.Open(t)
	g := New(conns, WithClock(fixedClock(2026)))
	require.NoError(t, conns.Writer.Close())

	_, err := g.Generate(context.Background())
	require.Error(t, err)
	require.True(t, errorbank.Is(err, errorbank.KindGenerationFailed))
}

func TestCustomPrefix(t *testing.T) {
	conns := dbtest.Open(t)
	g := New(conns, WithPrefix("REQ"), WithClock(fixedClock(2030)))
	code, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "REQ-2030-00001", code)
}
