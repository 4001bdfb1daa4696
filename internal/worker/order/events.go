package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/messaging"
	ordersvc "github.com/Additional-Code/procura/internal/service/order"
	"github.com/Additional-Code/procura/internal/worker"
)

var (
	workerTracer = otel.Tracer("github.com/Additional-Code/procura/worker/order")
	workerMeter  = otel.Meter("github.com/Additional-Code/procura/worker/order")
)

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventHandler consumes order lifecycle events from the orders topic.
func NewEventHandler(logger *zap.Logger, cfg config.Config) (worker.HandlerRegistration, error) {
	processed, err := workerMeter.Int64Counter("procura.worker.order_events",
		metric.WithDescription("Order events consumed by the worker"))
	if err != nil {
		return worker.HandlerRegistration{}, err
	}
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: eventHandler(logger, processed),
	}, nil
}

func eventHandler(logger *zap.Logger, processed metric.Int64Counter) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("messaging.event", msg.Headers[ordersvc.EventHeader]),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		kind := event.Type
		if kind == "" {
			kind = msg.Headers[ordersvc.EventHeader]
		}

		fields := []zap.Field{
			zap.Int64("order_id", event.OrderID),
			zap.String("code", event.Code),
			zap.String("status", string(event.Status)),
			zap.Int64("actor_id", event.ActorID),
		}
		switch kind {
		case ordersvc.EventCreated:
			logger.Info("order created event processed", append(fields, zap.String("total", event.Total))...)
		case ordersvc.EventStatusChanged:
			from := "none"
			if event.PreviousStatus != nil {
				from = string(*event.PreviousStatus)
			}
			logger.Info("order status change processed", append(fields, zap.String("from", from))...)
		default:
			// Unknown events are acknowledged so they do not block the partition.
			logger.Warn("ignoring unknown order event", zap.String("event", kind))
			return nil
		}

		processed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", kind)))
		return nil
	}
}
