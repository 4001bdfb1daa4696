// Package catalog maintains the suppliers and categories that orders refer to.
package catalog

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/entity"
	catalogrepo "github.com/Additional-Code/procura/internal/repository/catalog"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/Additional-Code/procura/service/catalog")

// Module provides the catalog service to Fx.
var Module = fx.Provide(NewService)

// DefaultColor is assigned to categories created without one.
const DefaultColor = "#3b82f6"

const maxColorLen = 16

// maintainers may create, edit and (de)activate catalog entries. Everyone else only reads.
var maintainers = []entity.Role{entity.RoleAdministrator, entity.RoleApprover}

// SupplierInput describes a new supplier.
type SupplierInput struct {
	Name    string
	TaxID   string
	Email   string
	Phone   string
	Address string
}

// SupplierPatch is a partial supplier update. Nil fields are left untouched.
type SupplierPatch struct {
	Name    *string
	TaxID   *string
	Email   *string
	Phone   *string
	Address *string
}

// CategoryInput describes a new category. An empty color takes DefaultColor.
type CategoryInput struct {
	Name        string
	Description string
	Color       string
}

// CategoryPatch is a partial category update. Nil fields are left untouched.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
	Active      *bool
}

type Service struct {
	repo   *catalogrepo.Repository
	logger *zap.Logger
}

// NewService wires the catalog service.
func NewService(repo *catalogrepo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Suppliers lists suppliers by name; inactive ones are included only when all is set.
func (s *Service) Suppliers(ctx context.Context, all bool) ([]*entity.Supplier, error) {
	rows, err := s.repo.Suppliers(ctx, all)
	if err != nil {
		return nil, errorbank.StorageUnavailable("failed to list suppliers", errorbank.WithCause(err))
	}
	if rows == nil {
		rows = []*entity.Supplier{}
	}
	return rows, nil
}

// Categories lists categories by name; inactive ones are included only when all is set.
func (s *Service) Categories(ctx context.Context, all bool) ([]*entity.Category, error) {
	rows, err := s.repo.Categories(ctx, all)
	if err != nil {
		return nil, errorbank.StorageUnavailable("failed to list categories", errorbank.WithCause(err))
	}
	if rows == nil {
		rows = []*entity.Category{}
	}
	return rows, nil
}

// CreateSupplier adds an active supplier.
func (s *Service) CreateSupplier(ctx context.Context, actor *entity.User, in SupplierInput) (*entity.Supplier, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.CreateSupplier")
	defer span.End()

	if err := requireMaintainer(actor); err != nil {
		return nil, err
	}
	name, err := requiredName(in.Name)
	if err != nil {
		return nil, err
	}
	supplier := &entity.Supplier{
		Name:    name,
		TaxID:   strings.TrimSpace(in.TaxID),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		Active:  true,
	}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return nil, fail(span, "supplier", "failed to create supplier", err)
	}
	s.logger.Info("supplier created", zap.Int64("id", supplier.ID), zap.Int64("actor_id", actor.ID))
	return supplier, nil
}

// UpdateSupplier applies a partial change to a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, actor *entity.User, id int64, in SupplierPatch) (*entity.Supplier, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.UpdateSupplier", trace.WithAttributes(attribute.Int64("supplier.id", id)))
	defer span.End()

	if err := requireMaintainer(actor); err != nil {
		return nil, err
	}
	supplier, err := s.repo.Supplier(ctx, id)
	if err != nil {
		return nil, fail(span, "supplier", "failed to load supplier", err)
	}

	var columns []string
	if in.Name != nil {
		if supplier.Name, err = requiredName(*in.Name); err != nil {
			return nil, err
		}
		columns = append(columns, "name")
	}
	for _, f := range []struct {
		column string
		value  *string
		dst    *string
	}{
		{"tax_id", in.TaxID, &supplier.TaxID},
		{"email", in.Email, &supplier.Email},
		{"phone", in.Phone, &supplier.Phone},
		{"address", in.Address, &supplier.Address},
	} {
		if f.value != nil {
			*f.dst = strings.TrimSpace(*f.value)
			columns = append(columns, f.column)
		}
	}

	if err := s.repo.UpdateSupplier(ctx, supplier, columns...); err != nil {
		return nil, fail(span, "supplier", "failed to update supplier", err)
	}
	return supplier, nil
}

// ToggleSupplier activates an inactive supplier or deactivates an active one. Inactive
// suppliers drop out of the default listing but stay attached to existing orders.
func (s *Service) ToggleSupplier(ctx context.Context, actor *entity.User, id int64) (*entity.Supplier, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ToggleSupplier", trace.WithAttributes(attribute.Int64("supplier.id", id)))
	defer span.End()

	if err := requireMaintainer(actor); err != nil {
		return nil, err
	}
	supplier, err := s.repo.ToggleSupplier(ctx, id)
	if err != nil {
		return nil, fail(span, "supplier", "failed to toggle supplier", err)
	}
	s.logger.Info("supplier toggled", zap.Int64("id", id), zap.Bool("active", supplier.Active), zap.Int64("actor_id", actor.ID))
	return supplier, nil
}

// CreateCategory adds an active category.
func (s *Service) CreateCategory(ctx context.Context, actor *entity.User, in CategoryInput) (*entity.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.CreateCategory")
	defer span.End()

	if err := requireMaintainer(actor); err != nil {
		return nil, err
	}
	name, err := requiredName(in.Name)
	if err != nil {
		return nil, err
	}
	color, err := validColor(in.Color)
	if err != nil {
		return nil, err
	}
	if color == "" {
		color = DefaultColor
	}
	category := &entity.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		Active:      true,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fail(span, "category", "failed to create category", err)
	}
	s.logger.Info("category created", zap.Int64("id", category.ID), zap.Int64("actor_id", actor.ID))
	return category, nil
}

// UpdateCategory applies a partial change to a category.
func (s *Service) UpdateCategory(ctx context.Context, actor *entity.User, id int64, in CategoryPatch) (*entity.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.UpdateCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	if err := requireMaintainer(actor); err != nil {
		return nil, err
	}
	category, err := s.repo.Category(ctx, id)
	if err != nil {
		return nil, fail(span, "category", "failed to load category", err)
	}

	var columns []string
	if in.Name != nil {
		if category.Name, err = requiredName(*in.Name); err != nil {
			return nil, err
		}
		columns = append(columns, "name")
	}
	if in.Description != nil {
		category.Description = strings.TrimSpace(*in.Description)
		columns = append(columns, "description")
	}
	if in.Color != nil {
		color, err := validColor(*in.Color)
		if err != nil {
			return nil, err
		}
		if color != "" {
			category.Color = color
			columns = append(columns, "color")
		}
	}
	if in.Active != nil {
		category.Active = *in.Active
		columns = append(columns, "active")
	}

	if err := s.repo.UpdateCategory(ctx, category, columns...); err != nil {
		return nil, fail(span, "category", "failed to update category", err)
	}
	return category, nil
}

// ToggleCategory activates an inactive category or deactivates an active one.
func (s *Service) ToggleCategory(ctx context.Context, actor *entity.User, id int64) (*entity.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ToggleCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	if err := requireMaintainer(actor); err != nil {
		return nil, err
	}
	category, err := s.repo.ToggleCategory(ctx, id)
	if err != nil {
		return nil, fail(span, "category", "failed to toggle category", err)
	}
	s.logger.Info("category toggled", zap.Int64("id", id), zap.Bool("active", category.Active), zap.Int64("actor_id", actor.ID))
	return category, nil
}

func requireMaintainer(actor *entity.User) error {
	if actor == nil {
		return errorbank.Unauthorized("an authenticated user is required")
	}
	if !actor.Active {
		return errorbank.Forbidden("user is inactive", errorbank.WithDetail("user_id", actor.ID))
	}
	if !slices.Contains(maintainers, actor.Role) {
		return errorbank.PermissionDenied("role cannot maintain the catalog",
			errorbank.WithDetail("role", string(actor.Role)))
	}
	return nil
}

func requiredName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errorbank.Validation("name is required", errorbank.WithField("name"))
	}
	return name, nil
}

func validColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if len(color) > maxColorLen {
		return "", errorbank.Validation("color is too long", errorbank.WithField("color"))
	}
	return color, nil
}

// fail maps a repository error for entry (supplier or category) onto the error taxonomy.
func fail(span trace.Span, entry, message string, err error) error {
	if errors.Is(err, catalogrepo.ErrNotFound) {
		return errorbank.NotFound(entry + " not found")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return errorbank.StorageUnavailable(message, errorbank.WithCause(err))
}
