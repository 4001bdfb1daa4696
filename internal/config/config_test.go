package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "PED", cfg.Orders.CodePrefix)
	require.Equal(t, "LOCAL", cfg.Orders.DefaultCurrency)
	require.Equal(t, 10, cfg.Orders.DefaultPageSize)
	require.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	require.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}

func TestNewNormalisesValues(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("OBS_LOG_LEVEL", " DEBUG ")
	t.Setenv("ORDERS_CODE_PREFIX", " req ")
	t.Setenv("ORDERS_DEFAULT_PAGE_SIZE", "500")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("AUTH_JWT_LEEWAY", "1m")

	cfg, err := New()
	require.NoError(t, err)

	require.Equal(t, "noop", cfg.Cache.Driver)
	require.Equal(t, "noop", cfg.Messaging.Driver)
	require.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	require.Equal(t, "debug", cfg.Observability.LogLevel)
	require.Equal(t, "REQ", cfg.Orders.CodePrefix)
	require.Equal(t, 10, cfg.Orders.DefaultPageSize)
	require.Equal(t, 1, cfg.Messaging.Workers.Concurrency)
	require.Equal(t, time.Minute, cfg.Auth.Leeway)
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"http port":     {"HTTP_PORT": "0"},
		"cache driver":  {"CACHE_DRIVER": "memcached"},
		"db driver":     {"DB_DRIVER": "oracle"},
		"short secret":  {"AUTH_JWT_SECRET": "short"},
		"currency":      {"ORDERS_DEFAULT_CURRENCY": "EUR"},
		"kafka brokers": {"KAFKA_TOPIC": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			require.Error(t, err)
		})
	}
}

func TestGetEnvAsStringSlice(t *testing.T) {
	t.Setenv("BROKERS", " a:1, ,b:2 ")
	require.Equal(t, []string{"a:1", "b:2"}, getEnvAsStringSlice("BROKERS", nil))

	t.Setenv("BROKERS", " , ")
	require.Equal(t, []string{"fallback"}, getEnvAsStringSlice("BROKERS", []string{"fallback"}))
}
