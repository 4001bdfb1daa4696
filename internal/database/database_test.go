package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
)

func TestOpenSQLiteAppliesSchemaAndLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	conns, err := Open(config.Database{Driver: "sqlite", WriterDSN: "file:procura_db_test?mode=memory&cache=shared"}, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	ctx := context.Background()
	require.Same(t, conns.Writer, conns.Reader)
	require.False(t, conns.SupportsRowLocks())
	require.NoError(t, conns.Ping(ctx))
	require.NoError(t, CreateSchema(ctx, conns.Writer))

	user := func() *entity.User {
		return &entity.User{Name: "ana", Email: "ana@example.test", Role: entity.RoleOperator, EntityKind: entity.EntityOrganization, Active: true}
	}
	_, err = conns.Writer.NewInsert().Model(user()).Exec(ctx)
	require.NoError(t, err)
	_, err = conns.Writer.NewInsert().Model(user()).Exec(ctx)
	require.True(t, IsUniqueViolation(err))

	failed := logs.FilterMessage("query failed").All()
	require.Len(t, failed, 1)
	require.Equal(t, "INSERT", failed[0].ContextMap()["operation"])
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle", WriterDSN: "x"}, nil)
	require.Error(t, err)

	_, err = Open(config.Database{Driver: "sqlite"}, nil)
	require.Error(t, err)
}
