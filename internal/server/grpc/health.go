package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// OrdersService is the health service name reported for the order workflow.
const OrdersService = "procura.orders"

const probeInterval = 15 * time.Second

// Pinger is the storage dependency the health probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealth builds the standard health service with every status starting at NOT_SERVING.
func NewHealth() *health.Server {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(OrdersService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// probe sets the overall and orders status from one storage ping.
func probe(ctx context.Context, hs *health.Server, db Pinger, logger *zap.Logger) {
	st := healthpb.HealthCheckResponse_SERVING
	if db != nil {
		if err := db.Ping(ctx); err != nil {
			logger.Warn("grpc health probe failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(OrdersService, st)
}

func watch(ctx context.Context, hs *health.Server, db Pinger, logger *zap.Logger) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe(ctx, hs, db, logger)
		}
	}
}
