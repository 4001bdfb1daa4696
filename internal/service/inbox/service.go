// Package inbox lets users read and acknowledge the notifications addressed to them.
package inbox

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	notificationrepo "github.com/Additional-Code/procura/internal/repository/notification"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/Additional-Code/procura/service/inbox")

// Module provides the inbox service to Fx.
var Module = fx.Provide(NewService)

// Inbox is a user's newest notifications and how many of all their notifications are unread.
type Inbox struct {
	Notifications []*entity.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

type Service struct {
	repo   *notificationrepo.Repository
	limit  int
	logger *zap.Logger
}

// NewService wires the inbox.
func NewService(repo *notificationrepo.Repository, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.Orders.NotificationsCap
	if limit <= 0 {
		limit = 50
	}
	return &Service{repo: repo, limit: limit, logger: logger}
}

// List returns the newest notifications of actor.
func (s *Service) List(ctx context.Context, actor *entity.User) (*Inbox, error) {
	if actor == nil {
		return nil, errorbank.Unauthorized("an authenticated user is required")
	}
	ctx, span := tracer.Start(ctx, "InboxService.List", trace.WithAttributes(attribute.Int64("user.id", actor.ID)))
	defer span.End()

	out := &Inbox{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Notifications, err = s.repo.ListForUser(gctx, actor.ID, s.limit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Unread, err = s.repo.CountUnread(gctx, actor.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, errorbank.StorageUnavailable("failed to load notifications", errorbank.WithCause(err))
	}
	if out.Notifications == nil {
		out.Notifications = []*entity.Notification{}
	}
	return out, nil
}

// MarkRead flags one of actor's notifications as read. Notifications of other users are
// reported as missing.
func (s *Service) MarkRead(ctx context.Context, actor *entity.User, id int64) error {
	if actor == nil {
		return errorbank.Unauthorized("an authenticated user is required")
	}
	ok, err := s.repo.MarkRead(ctx, actor.ID, id)
	if err != nil {
		return errorbank.StorageUnavailable("failed to update notification", errorbank.WithCause(err))
	}
	if !ok {
		return errorbank.NotFound("notification not found", errorbank.WithDetail("notification_id", id))
	}
	return nil
}

// MarkAllRead flags every unread notification of actor and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, actor *entity.User) (int64, error) {
	if actor == nil {
		return 0, errorbank.Unauthorized("an authenticated user is required")
	}
	n, err := s.repo.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, errorbank.StorageUnavailable("failed to update notifications", errorbank.WithCause(err))
	}
	s.logger.Debug("notifications marked read", zap.Int64("user_id", actor.ID), zap.Int64("count", n))
	return n, nil
}
