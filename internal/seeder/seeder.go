package seeder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	ordersvc "github.com/Additional-Code/procura/internal/service/order"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	orders *ordersvc.Service
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, orders *ordersvc.Service, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, orders: orders, logger: logger}
}

var users = []entity.User{
	{Name: "Administrator", Email: "admin@procura.local", Role: entity.RoleAdministrator, EntityKind: entity.EntityOrganization, Active: true},
	{Name: "Bruno Approver", Email: "approver@procura.local", Role: entity.RoleApprover, EntityKind: entity.EntityOrganization, Active: true},
	{Name: "Ana Operator", Email: "operator@procura.local", Role: entity.RoleOperator, EntityKind: entity.EntityStore, Active: true},
	{Name: "Vera Viewer", Email: "viewer@procura.local", Role: entity.RoleViewer, EntityKind: entity.EntityOrganization, Active: true},
}

var categories = []entity.Category{
	{Name: "Office supplies", Color: "#3b82f6", Active: true},
	{Name: "IT equipment", Color: "#10b981", Active: true},
	{Name: "Cleaning", Color: "#f59e0b", Active: true},
}

var suppliers = []entity.Supplier{
	{Name: "Papelaria Central", TaxID: "12.345.678/0001-90", Email: "sales@papelaria.test", Active: true},
	{Name: "TechStore", TaxID: "98.765.432/0001-10", Email: "orders@techstore.test", Active: true},
}

// All seeds the directory, the catalog and a few sample orders.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Users(ctx); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := s.Catalog(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	return s.Orders(ctx)
}

// Users inserts the demo accounts that are missing, matched by email.
func (s *Seeder) Users(ctx context.Context) error {
	created := 0
	for _, sample := range users {
		u := sample
		exists, err := s.db.NewSelect().Model((*entity.User)(nil)).Where("email = ?", u.Email).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.NewInsert().Model(&u).Exec(ctx); err != nil {
			return err
		}
		created++
	}
	s.logger.Info("seeded users", zap.Int("count", created))
	return nil
}

// Catalog inserts the demo categories and suppliers that are missing, matched by name.
func (s *Seeder) Catalog(ctx context.Context) error {
	for _, sample := range categories {
		c := sample
		if err := s.insertNamed(ctx, &c, (*entity.Category)(nil), c.Name); err != nil {
			return err
		}
	}
	for _, sample := range suppliers {
		sp := sample
		if err := s.insertNamed(ctx, &sp, (*entity.Supplier)(nil), sp.Name); err != nil {
			return err
		}
	}
	s.logger.Info("seeded catalog", zap.Int("categories", len(categories)), zap.Int("suppliers", len(suppliers)))
	return nil
}

func (s *Seeder) insertNamed(ctx context.Context, row any, model any, name string) error {
	exists, err := s.db.NewSelect().Model(model).Where("name = ?", name).Exists(ctx)
	if err != nil || exists {
		return err
	}
	_, err = s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

// Orders creates sample orders through the order service when none exist yet.
func (s *Seeder) Orders(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Info("orders already present; skipping samples", zap.Int("count", count))
		return nil
	}

	operator, err := s.userByEmail(ctx, "operator@procura.local")
	if err != nil {
		return err
	}
	supplier := new(entity.Supplier)
	if err := s.db.NewSelect().Model(supplier).Where("name = ?", suppliers[0].Name).Limit(1).Scan(ctx); err != nil {
		return err
	}
	category := new(entity.Category)
	if err := s.db.NewSelect().Model(category).Where("name = ?", categories[0].Name).Limit(1).Scan(ctx); err != nil {
		return err
	}

	tax := decimal.NewFromInt(10)
	samples := []ordersvc.CreateInput{
		{
			Title:      "Office paper restock",
			SupplierID: &supplier.ID,
			TaxPercent: &tax,
			Items: []ledger.ItemInput{
				{CategoryID: &category.ID, Description: "A4 paper, 500 sheets", Quantity: "10", Unit: "pack", UnitPrice: "24.90"},
				{CategoryID: &category.ID, Description: "Blue pens", Quantity: "50", UnitPrice: "1.20"},
			},
		},
		{
			Title:         "Replacement laptop",
			Priority:      entity.PriorityUrgent,
			InitialStatus: entity.StatusPending,
			Items: []ledger.ItemInput{
				{Description: "14\" laptop", Quantity: "1", UnitPrice: "4599.00"},
			},
		},
	}
	for _, in := range samples {
		order, err := s.orders.Create(ctx, operator, in)
		if err != nil {
			return err
		}
		s.logger.Info("seeded order", zap.String("code", order.Code), zap.String("status", string(order.Status)))
	}
	return nil
}

func (s *Seeder) userByEmail(ctx context.Context, email string) (*entity.User, error) {
	u := new(entity.User)
	if err := s.db.NewSelect().Model(u).Where("email = ?", email).Limit(1).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", email, err)
	}
	return u, nil
}
