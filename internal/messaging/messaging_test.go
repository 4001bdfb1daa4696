package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
)

func TestMemoryClientDeliversInOrder(t *testing.T) {
	client := Memory("procura.orders", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Publish(ctx, []byte("order-1"), []byte(`{"type":"order.created"}`), map[string]string{"event": "order.created"}))
	require.NoError(t, client.Publish(ctx, []byte("order-1"), []byte(`{"type":"order.status_changed"}`), nil))

	var seen []Message
	err := client.Consume(ctx, func(_ context.Context, msg Message) error {
		seen = append(seen, msg)
		if len(seen) == 2 {
			cancel()
		}
		return errors.New("dropped")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, seen, 2)
	require.Equal(t, "procura.orders", seen[0].Topic)
	require.Equal(t, "order.created", seen[0].Headers["event"])
	require.EqualValues(t, 1, seen[1].Offset)
	require.Len(t, client.Published(), 2)
}

func TestMemoryPublishHonoursContext(t *testing.T) {
	client := Memory("procura.orders", 1)
	require.NoError(t, client.Publish(context.Background(), nil, []byte("a"), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, client.Publish(ctx, nil, []byte("b"), nil), context.DeadlineExceeded)
}

func TestNewClientDrivers(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger := zap.NewNop()
	base := config.Messaging{Kafka: config.Kafka{Topic: "procura.orders"}}

	disabled := base
	client, err := NewClient(lc, config.Config{Messaging: disabled}, logger)
	require.NoError(t, err)
	require.IsType(t, noopClient{}, client)

	memory := base
	memory.Enabled, memory.Driver = true, "memory"
	client, err = NewClient(lc, config.Config{Messaging: memory}, logger)
	require.NoError(t, err)
	require.Equal(t, "procura.orders", client.Topic())
	require.IsType(t, &MemoryClient{}, client)

	unknown := base
	unknown.Enabled, unknown.Driver = true, "nats"
	_, err = NewClient(lc, config.Config{Messaging: unknown}, logger)
	require.Error(t, err)
}
