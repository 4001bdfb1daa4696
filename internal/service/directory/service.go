// Package directory administers the user directory: who exists, their role and whether they
// may act. Deactivated users can no longer authenticate and stop receiving approval requests.
package directory

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/Additional-Code/procura/service/directory")

// Module provides the directory service to Fx.
var Module = fx.Provide(NewService)

// UserInput describes a new user. An empty role defaults to operator.
type UserInput struct {
	Name       string
	Email      string
	Role       entity.Role
	EntityKind entity.EntityKind
}

// UserPatch is a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Name       *string
	Email      *string
	Role       *entity.Role
	EntityKind *entity.EntityKind
}

type Service struct {
	repo   *userrepo.Repository
	logger *zap.Logger
}

// NewService wires the directory service.
func NewService(repo *userrepo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns every user, newest first.
func (s *Service) List(ctx context.Context, actor *entity.User) ([]*entity.User, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.List")
	defer span.End()

	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fail(span, "failed to list users", err)
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, actor *entity.User, id int64) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.Get", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fail(span, "failed to load user", err)
	}
	return user, nil
}

// Create adds an active user. Emails are unique across the directory.
func (s *Service) Create(ctx context.Context, actor *entity.User, in UserInput) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.Create")
	defer span.End()

	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	user := &entity.User{Role: in.Role, EntityKind: in.EntityKind, Active: true}
	if user.Role == "" {
		user.Role = entity.RoleOperator
	}
	var err error
	if user.Name, err = required("name", in.Name); err != nil {
		return nil, err
	}
	if user.Email, err = required("email", in.Email); err != nil {
		return nil, err
	}
	if err := validateEnums(user.Role, user.EntityKind); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fail(span, "failed to create user", err)
	}
	s.logger.Info("user created",
		zap.Int64("id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Int64("actor_id", actor.ID))
	return user, nil
}

// Update applies a partial change to a user.
func (s *Service) Update(ctx context.Context, actor *entity.User, id int64, in UserPatch) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.Update", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fail(span, "failed to load user", err)
	}

	var columns []string
	if in.Name != nil {
		if user.Name, err = required("name", *in.Name); err != nil {
			return nil, err
		}
		columns = append(columns, "name")
	}
	if in.Email != nil {
		if user.Email, err = required("email", *in.Email); err != nil {
			return nil, err
		}
		columns = append(columns, "email")
	}
	if in.Role != nil {
		user.Role = *in.Role
		columns = append(columns, "role")
	}
	if in.EntityKind != nil {
		user.EntityKind = *in.EntityKind
		columns = append(columns, "entity_kind")
	}
	if err := validateEnums(user.Role, user.EntityKind); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, user, columns...); err != nil {
		return nil, fail(span, "failed to update user", err)
	}
	return user, nil
}

// ToggleActive activates an inactive user or deactivates an active one. Administrators
// cannot deactivate themselves.
func (s *Service) ToggleActive(ctx context.Context, actor *entity.User, id int64) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.ToggleActive", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, errorbank.Validation("you cannot deactivate your own account", errorbank.WithField("id"))
	}
	user, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		return nil, fail(span, "failed to toggle user", err)
	}
	s.logger.Info("user toggled", zap.Int64("id", id), zap.Bool("active", user.Active), zap.Int64("actor_id", actor.ID))
	return user, nil
}

func requireAdministrator(actor *entity.User) error {
	if actor == nil {
		return errorbank.Unauthorized("an authenticated user is required")
	}
	if !actor.Active {
		return errorbank.Forbidden("user is inactive", errorbank.WithDetail("user_id", actor.ID))
	}
	if actor.Role != entity.RoleAdministrator {
		return errorbank.PermissionDenied("only administrators manage users",
			errorbank.WithDetail("role", string(actor.Role)))
	}
	return nil
}

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errorbank.Validation(field+" is required", errorbank.WithField(field))
	}
	return value, nil
}

func validateEnums(role entity.Role, kind entity.EntityKind) error {
	if !role.Valid() {
		return errorbank.Validation("invalid role", errorbank.WithField("role"), errorbank.WithDetail("value", string(role)))
	}
	if !kind.Valid() {
		return errorbank.Validation("invalid entity_kind", errorbank.WithField("entity_kind"), errorbank.WithDetail("value", string(kind)))
	}
	return nil
}

func fail(span trace.Span, message string, err error) error {
	switch {
	case errors.Is(err, userrepo.ErrNotFound):
		return errorbank.NotFound("user not found")
	case database.IsUniqueViolation(err):
		return errorbank.Conflict("a user with that email already exists", errorbank.WithField("email"))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return errorbank.StorageUnavailable(message, errorbank.WithCause(err))
}
