package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/messaging"
)

func workerConfig(enabled bool) config.Config {
	return config.Config{Messaging: config.Messaging{
		Enabled: enabled,
		Workers: config.Worker{Enabled: enabled, Concurrency: 2, PollInterval: 10 * time.Millisecond},
	}}
}

func TestEngineFansOutToEveryHandler(t *testing.T) {
	client := messaging.Memory("procura.orders", 8)
	var first, second atomic.Int32

	engine, err := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: workerConfig(true),
		Registrations: []HandlerRegistration{
			{Topic: "procura.orders", Handler: func(context.Context, messaging.Message) error {
				first.Add(1)
				return nil
			}},
			{Topic: "procura.orders", Handler: func(context.Context, messaging.Message) error {
				second.Add(1)
				return errors.New("boom")
			}},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.NoError(t, err)
	require.Len(t, engine.handlers["procura.orders"], 2)

	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Publish(ctx, nil, []byte("{}"), nil))
	}

	require.Eventually(t, func() bool {
		return first.Load() == 3 && second.Load() == 3
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, engine.Stop(stopCtx))
}

func TestEngineDispatchReportsFailures(t *testing.T) {
	engine, err := NewEngine(Params{
		Client: messaging.Noop("procura.orders"),
		Config: workerConfig(true),
		Registrations: []HandlerRegistration{
			{Topic: "procura.orders", Handler: func(context.Context, messaging.Message) error { return errors.New("boom") }},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, engine.dispatch(ctx, 0, messaging.Message{Topic: "procura.orders"}))
	require.NoError(t, engine.dispatch(ctx, 0, messaging.Message{Topic: "procura.other"}))
}

func TestDisabledEngineDoesNothing(t *testing.T) {
	engine, err := NewEngine(Params{
		Client: messaging.Noop("procura.orders"),
		Logger: zap.NewNop(),
		Config: workerConfig(false),
		Registrations: []HandlerRegistration{
			{Topic: "procura.orders", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.NoError(t, err)
	require.NoError(t, engine.Start(context.Background()))
	require.Nil(t, engine.cancel)
	require.NoError(t, engine.Stop(context.Background()))
}
