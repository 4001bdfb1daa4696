// Package dbtest opens throwaway SQLite databases with the service schema applied.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

var seq atomic.Int64

// Open returns connections to a fresh in-memory database that is closed with the test.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	dsn := fmt.Sprintf("file:procura_test_%d?mode=memory&cache=shared", seq.Add(1))
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return database.Single(db)
}

// OpenFile returns connections to a fresh file database shared by up to conns connections.
// Transactions run concurrently and wait on each other's write locks, so tests using it
// observe the same contention as a pooled server.
func OpenFile(t testing.TB, conns int) *database.Connections {
	t.Helper()

	path := filepath.Join(t.TempDir(), "procura.db")
	dsn := path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_busy_timeout=10000&_journal_mode=WAL"
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return database.Single(db)
}

// User inserts an active user with the given role.
func User(t testing.TB, db bun.IDB, name string, role entity.Role) *entity.User {
	t.Helper()

	u := &entity.User{
		Name:       name,
		Email:      fmt.Sprintf("%s-%d@example.test", name, seq.Add(1)),
		Role:       role,
		EntityKind: entity.EntityOrganization,
		Active:     true,
	}
	_, err := db.NewInsert().Model(u).Exec(context.Background())
	require.NoError(t, err)
	return u
}

// Category inserts an active category.
func Category(t testing.TB, db bun.IDB, name string) *entity.Category {
	t.Helper()

	c := &entity.Category{Name: name, Color: "#3b82f6", Active: true}
	_, err := db.NewInsert().Model(c).Exec(context.Background())
	require.NoError(t, err)
	return c
}

// Supplier inserts an active supplier.
func Supplier(t testing.TB, db bun.IDB, name string) *entity.Supplier {
	t.Helper()

	s := &entity.Supplier{Name: name, Active: true}
	_, err := db.NewInsert().Model(s).Exec(context.Background())
	require.NoError(t, err)
	return s
}
