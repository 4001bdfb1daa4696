package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/codegen"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/messaging"
	"github.com/Additional-Code/procura/internal/notification"
	catalogrepo "github.com/Additional-Code/procura/internal/repository/catalog"
	repo "github.com/Additional-Code/procura/internal/repository/order"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/procura/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/procura/service/order")
)

// Service encapsulates business logic around orders.
type Service struct {
	repo       *repo.Repository
	catalog    *catalogrepo.Repository
	codes      *codegen.Generator
	recorder   *audit.Recorder
	dispatcher *notification.Dispatcher
	cache      cache.Store
	cacheTTL   time.Duration
	logger     *zap.Logger
	publisher  messaging.Client
	messaging  messagingConfig
	orders     config.Orders
	now        func() time.Time

	created     metric.Int64Counter
	transitions metric.Int64Counter
}

type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Catalog    *catalogrepo.Repository
	Generator  *codegen.Generator
	Recorder   *audit.Recorder
	Dispatcher *notification.Dispatcher
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:       p.Repository,
		catalog:    p.Catalog,
		codes:      p.Generator,
		recorder:   p.Recorder,
		dispatcher: p.Dispatcher,
		cache:      p.Cache,
		cacheTTL:   p.Config.Cache.DefaultTTL,
		logger:     logger,
		publisher:  p.Publisher,
		messaging:  messagingConfig{enabled: p.Config.Messaging.Enabled},
		orders:     p.Config.Orders,
		now:        time.Now,
	}

	var err error
	if s.created, err = serviceMeter.Int64Counter("procura.orders.created",
		metric.WithDescription("Orders created")); err != nil {
		logger.Warn("orders created counter unavailable", zap.Error(err))
	}
	if s.transitions, err = serviceMeter.Int64Counter("procura.orders.transitions",
		metric.WithDescription("Order status transitions")); err != nil {
		logger.Warn("orders transition counter unavailable", zap.Error(err))
	}
	return s
}

// GenerateCode previews the code the next created order would receive.
func (s *Service) GenerateCode(ctx context.Context) (string, error) {
	return s.codes.Generate(ctx)
}

func requireActive(actor *entity.User) error {
	if actor == nil {
		return errorbank.Unauthorized("an authenticated user is required")
	}
	if !actor.Active {
		return errorbank.Forbidden("inactive users cannot act on orders",
			errorbank.WithDetail("user_id", actor.ID))
	}
	return nil
}

// fail classifies err for callers. Business errors pass through untouched; anything else is
// treated as a storage failure and recorded on span.
func fail(span trace.Span, message string, err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		if appErr.Infrastructure() {
			span.RecordError(err)
			span.SetStatus(codes.Error, message)
		}
		return appErr
	}
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("order not found")
	}
	if database.IsUniqueViolation(err) {
		return errorbank.Conflict("order conflicts with an existing record", errorbank.WithCause(err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return errorbank.StorageUnavailable(message, errorbank.WithCause(err))
}

// detail reloads the order after a committed mutation. A failed reload is logged and the
// in-memory order returned, since the mutation itself already succeeded.
func (s *Service) detail(ctx context.Context, order *entity.Order) *entity.Order {
	full, err := s.repo.GetDetail(ctx, order.ID)
	if err != nil {
		s.logger.Warn("reload order failed", zap.Int64("id", order.ID), zap.Error(err))
		return order
	}
	return full
}

func (s *Service) count(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("event", event.Type), zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("order-%d", event.OrderID))
	if err := s.publisher.Publish(ctx, key, payload, map[string]string{EventHeader: event.Type}); err != nil {
		s.logger.Error("publish order event",
			zap.String("event", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err == nil {
		err = s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

var errStaleEntry = errors.New("cached order is stale")

// checkFresh compares a cached order with the committed version. A reader that loaded the
// order before a mutation committed may write its copy after the mutation invalidated it.
func (s *Service) checkFresh(ctx context.Context, cached *entity.Order) error {
	version, err := s.repo.Version(ctx, cached.ID)
	if err != nil {
		return err
	}
	if version != cached.Version {
		return errStaleEntry
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}
