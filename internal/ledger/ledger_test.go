package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/entity"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCoerce(t *testing.T) {
	require.True(t, Coerce("2.5").Equal(dec("2.5")))
	require.True(t, Coerce(" 10 ").Equal(dec("10")))
	require.True(t, Coerce("").IsZero())
	require.True(t, Coerce("abc").IsZero())
	require.True(t, Coerce("-3").IsZero())
}

func TestBuildComputesSubtotalsAndDefaults(t *testing.T) {
	items := Build(4, []ItemInput{
		{Description: "Paper", Quantity: "2", UnitPrice: "10"},
		{Description: " Toner ", Quantity: "1", UnitPrice: "5", Unit: "box"},
		{Description: "Broken", Quantity: "x", UnitPrice: "7"},
	})
	require.Len(t, items, 3)

	require.Equal(t, int64(4), items[0].OrderID)
	require.Equal(t, 1, items[0].Position)
	require.Equal(t, DefaultUnit, items[0].Unit)
	require.True(t, items[0].Subtotal.Equal(dec("20")))

	require.Equal(t, "Toner", items[1].Description)
	require.Equal(t, "box", items[1].Unit)
	require.True(t, items[1].Subtotal.Equal(dec("5")))

	require.True(t, items[2].Quantity.IsZero())
	require.True(t, items[2].Subtotal.IsZero())
}

func TestComputeScenario(t *testing.T) {
	items := Build(1, []ItemInput{
		{Description: "a", Quantity: "2", UnitPrice: "10"},
		{Description: "b", Quantity: "1", UnitPrice: "5"},
	})
	totals := Compute(items, dec("10"))
	require.Equal(t, "25.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "2.50", totals.Tax.StringFixed(2))
	require.Equal(t, "27.50", totals.Total.StringFixed(2))
	require.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax)))
}

func TestComputeEmptyAndNegativePercent(t *testing.T) {
	totals := Compute(nil, dec("18"))
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.Total.IsZero())

	items := Build(1, []ItemInput{{Description: "a", Quantity: "1", UnitPrice: "100"}})
	totals = Compute(items, dec("-5"))
	require.True(t, totals.Tax.IsZero())
	require.True(t, totals.TaxPercent.IsZero())
}

func TestHasDescribedItem(t *testing.T) {
	require.False(t, HasDescribedItem(nil))
	require.False(t, HasDescribedItem(Build(1, []ItemInput{{Description: "  ", Quantity: "1"}})))
	require.True(t, HasDescribedItem(Build(1, []ItemInput{{Description: ""}, {Description: "Chairs"}})))
}

func TestCategoryIDs(t *testing.T) {
	a, b := int64(1), int64(2)
	items := Build(1, []ItemInput{{CategoryID: &a}, {CategoryID: &b}, {CategoryID: &a}, {}})
	require.Equal(t, []int64{1, 2}, CategoryIDs(items))
}

func TestReplaceAndRecalculate(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	db := conns.Writer
	owner := dbtest.User(t, db, "ana", entity.RoleOperator)

	order := &entity.Order{
		Code: "PED-2026-00001", Title: "Desk", Type: entity.TypeStandard,
		EntityKind: entity.EntityOrganization, Status: entity.StatusDraft,
		Priority: entity.PriorityMedium, Currency: entity.CurrencyLocal, CreatedBy: owner.ID,
	}
	_, err := db.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, Insert(ctx, db, order.ID, Build(order.ID, []ItemInput{
		{Description: "a", Quantity: "2", UnitPrice: "10"},
		{Description: "b", Quantity: "1", UnitPrice: "5"},
	})))

	pct := dec("10")
	first, err := Recalculate(ctx, db, order.ID, &pct)
	require.NoError(t, err)
	require.Equal(t, "27.50", first.Total.StringFixed(2))

	// Omitting the percentage reuses the stored one and is idempotent.
	second, err := Recalculate(ctx, db, order.ID, nil)
	require.NoError(t, err)
	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.Tax.Equal(second.Tax))
	require.True(t, first.Total.Equal(second.Total))

	require.NoError(t, Replace(ctx, db, order.ID, Build(order.ID, []ItemInput{
		{Description: "c", Quantity: "3", UnitPrice: "4"},
	})))
	third, err := Recalculate(ctx, db, order.ID, nil)
	require.NoError(t, err)
	require.Equal(t, "12.00", third.Subtotal.StringFixed(2))
	require.Equal(t, "1.20", third.Tax.StringFixed(2))
	require.Equal(t, "13.20", third.Total.StringFixed(2))

	stored := new(entity.Order)
	require.NoError(t, db.NewSelect().Model(stored).Where("o.id = ?", order.ID).Scan(ctx))
	require.Equal(t, "13.20", stored.Total.StringFixed(2))
	require.True(t, stored.Total.Equal(stored.Subtotal.Add(stored.Tax)))

	var count int
	count, err = db.NewSelect().Model((*entity.OrderItem)(nil)).Where("oi.order_id = ?", order.ID).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
