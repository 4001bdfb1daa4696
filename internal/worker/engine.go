package worker

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/messaging"
)

const maxBackoff = 30 * time.Second

var engineMeter = otel.Meter("github.com/Additional-Code/procura/worker")

// HandlerRegistration binds a topic to a handler. Several registrations may share a topic;
// each message is then passed to all of them in registration order.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs a fixed pool of consumers against the messaging client.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Worker
	enabled  bool
	handlers map[string][]messaging.Handler
	handled  metric.Int64Counter

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) (*Engine, error) {
	handlers := make(map[string][]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		handlers[r.Topic] = append(handlers[r.Topic], r.Handler)
	}

	handled, err := engineMeter.Int64Counter("procura.worker.messages",
		metric.WithDescription("Messages dispatched by the worker engine"))
	if err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		client:   p.Client,
		logger:   logger,
		cfg:      p.Config.Messaging.Workers,
		enabled:  p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		handlers: handlers,
		handled:  handled,
	}, nil
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the consumers. It returns immediately; consumption continues until Stop.
func (e *Engine) Start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := max(e.cfg.Concurrency, 1)
	runCtx, cancel := context.WithCancel(context.Background())
	group, runCtx := errgroup.WithContext(runCtx)
	e.cancel = cancel
	e.group = group

	for i := 0; i < concurrency; i++ {
		workerID := i
		group.Go(func() error {
			e.consumeLoop(runCtx, workerID)
			return nil
		})
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.Int("topics", len(e.handlers)))
	return nil
}

// Stop cancels the consumers and waits for them, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan error, 1)
	go func() { done <- e.group.Wait() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		e.logger.Info("worker engine stopped")
		return err
	}
}

func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	handlers, ok := e.handlers[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		e.handled.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", msg.Topic), attribute.String("outcome", "unrouted")))
		return nil
	}

	e.logger.Debug("processing message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker", workerID))

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	e.handled.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", msg.Topic), attribute.String("outcome", outcome)))
	return err
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	initial := e.cfg.PollInterval
	if initial <= 0 {
		initial = time.Second
	}
	backoff := initial

	for ctx.Err() == nil {
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			backoff = initial
			return e.dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err), zap.Int("worker", workerID), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
