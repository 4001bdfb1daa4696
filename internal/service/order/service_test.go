package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/codegen"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/ledger"
	"github.com/Additional-Code/procura/internal/messaging"
	"github.com/Additional-Code/procura/internal/notification"
	catalogrepo "github.com/Additional-Code/procura/internal/repository/catalog"
	notificationrepo "github.com/Additional-Code/procura/internal/repository/notification"
	repo "github.com/Additional-Code/procura/internal/repository/order"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var clock = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	conns         *database.Connections
	svc           *Service
	notifications *notificationrepo.Repository
	admin         *entity.User
	approver      *entity.User
	operator      *entity.User
	other         *entity.User
	viewer        *entity.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conns := dbtest.Open(t)
	logger := zap.NewNop()
	notifications := notificationrepo.NewRepository(conns)
	cfg := config.Config{
		Orders: config.Orders{
			CodePrefix:       "PED",
			DefaultCurrency:  "LOCAL",
			DefaultPageSize:  10,
			MaxPageSize:      100,
			NotificationsCap: 50,
		},
	}

	svc := NewService(Params{
		Repository: repo.NewRepository(conns),
		Catalog:    catalogrepo.NewRepository(conns),
		Generator:  codegen.New(conns, codegen.WithClock(func() time.Time { return clock })),
		Recorder:   audit.NewRecorder(conns),
		Dispatcher: notification.NewDispatcher(notifications, userrepo.NewRepository(conns), logger),
		Cache:      cache.Noop(),
		Config:     cfg,
		Logger:     logger,
		Publisher:  messaging.Noop("procura.orders"),
	})
	svc.now = func() time.Time { return clock }

	return &fixture{
		conns:         conns,
		svc:           svc,
		notifications: notifications,
		admin:         dbtest.User(t, conns.Writer, "admin", entity.RoleAdministrator),
		approver:      dbtest.User(t, conns.Writer, "bruno", entity.RoleApprover),
		operator:      dbtest.User(t, conns.Writer, "ana", entity.RoleOperator),
		other:         dbtest.User(t, conns.Writer, "carlos", entity.RoleOperator),
		viewer:        dbtest.User(t, conns.Writer, "vera", entity.RoleViewer),
	}
}

func pct(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func items(descriptions ...string) []ledger.ItemInput {
	out := make([]ledger.ItemInput, 0, len(descriptions))
	for _, d := range descriptions {
		out = append(out, ledger.ItemInput{Description: d, Quantity: "1", UnitPrice: "10"})
	}
	return out
}

func (f *fixture) draft(t *testing.T, actor *entity.User, in CreateInput) *entity.Order {
	t.Helper()
	if in.Title == "" {
		in.Title = "Office supplies"
	}
	order, err := f.svc.Create(context.Background(), actor, in)
	require.NoError(t, err)
	return order
}

func (f *fixture) status(t *testing.T, id int64) entity.Status {
	t.Helper()
	var status entity.Status
	err := f.conns.Writer.NewSelect().Model((*entity.Order)(nil)).Column("status").Where("o.id = ?", id).Scan(context.Background(), &status)
	require.NoError(t, err)
	return status
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, errorbank.From(err).Kind(), err.Error())
}

func TestCreateComputesTotals(t *testing.T) {
	f := setup(t)

	order := f.draft(t, f.operator, CreateInput{
		Items: []ledger.ItemInput{
			{Description: "Paper", Quantity: "2", UnitPrice: "10"},
			{Description: "Pens", Quantity: "1", UnitPrice: "5"},
		},
		TaxPercent: pct("10"),
	})

	require.Equal(t, "PED-2026-00001", order.Code)
	require.Equal(t, entity.StatusDraft, order.Status)
	require.Equal(t, "25.00", order.Subtotal.StringFixed(2))
	require.Equal(t, "2.50", order.Tax.StringFixed(2))
	require.Equal(t, "27.50", order.Total.StringFixed(2))
	require.True(t, order.Total.Equal(order.Subtotal.Add(order.Tax)))
	require.Equal(t, entity.EntityOrganization, order.EntityKind)
	require.Equal(t, entity.PriorityMedium, order.Priority)
	require.Equal(t, entity.CurrencyLocal, order.Currency)
	require.Len(t, order.Items, 2)
	require.Equal(t, "Paper", order.Items[0].Description)

	require.Len(t, order.History, 1)
	require.Nil(t, order.History[0].PreviousStatus)
	require.Equal(t, entity.StatusDraft, order.History[0].NewStatus)
	require.Equal(t, creationComment, order.History[0].Comment)

	second := f.draft(t, f.operator, CreateInput{})
	require.Equal(t, "PED-2026-00002", second.Code)
	require.True(t, second.Total.IsZero())
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.operator, CreateInput{Title: "  "})
	requireKind(t, err, errorbank.KindValidation)
	require.Equal(t, "title", errorbank.From(err).Details()["field"])

	_, err = f.svc.Create(ctx, f.operator, CreateInput{Title: "x", InitialStatus: entity.StatusApproved})
	requireKind(t, err, errorbank.KindValidation)

	_, err = f.svc.Create(ctx, f.operator, CreateInput{Title: "x", Priority: "asap"})
	requireKind(t, err, errorbank.KindValidation)

	_, err = f.svc.Create(ctx, f.operator, CreateInput{Title: "x", InitialStatus: entity.StatusPending})
	requireKind(t, err, errorbank.KindValidation)

	missing := int64(999)
	_, err = f.svc.Create(ctx, f.operator, CreateInput{Title: "x", SupplierID: &missing})
	requireKind(t, err, errorbank.KindNotFound)

	_, err = f.svc.Create(ctx, f.operator, CreateInput{Title: "x", Items: []ledger.ItemInput{{Description: "a", CategoryID: &missing}}})
	requireKind(t, err, errorbank.KindNotFound)

	_, err = f.svc.Create(ctx, f.viewer, CreateInput{Title: "x"})
	requireKind(t, err, errorbank.KindPermissionDenied)

	_, err = f.svc.Create(ctx, nil, CreateInput{Title: "x"})
	requireKind(t, err, errorbank.KindUnauthorized)

	count, err := f.conns.Writer.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTaxPercentMustFitStoredPrecision(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, v := range []string{"-1", "1000", "1500.5", "12.34567"} {
		_, err := f.svc.Create(ctx, f.operator, CreateInput{Title: "x", TaxPercent: pct(v)})
		requireKind(t, err, errorbank.KindValidation)
		require.Equal(t, "tax_percent", errorbank.From(err).Details()["field"], v)
	}

	order := f.draft(t, f.operator, CreateInput{Items: items("a"), TaxPercent: pct("999.9999")})
	require.Equal(t, "999.9999", order.TaxPercent.StringFixed(4))

	_, err := f.svc.Update(ctx, f.operator, order.ID, UpdateInput{TaxPercent: pct("1000")})
	requireKind(t, err, errorbank.KindValidation)

	updated, err := f.svc.Update(ctx, f.operator, order.ID, UpdateInput{TaxPercent: pct("12.50000")})
	require.NoError(t, err)
	require.Equal(t, "12.5000", updated.TaxPercent.StringFixed(4))
}

func TestCreatePendingNotifiesSupervisors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{InitialStatus: entity.StatusPending, Items: items("Toner")})
	require.Equal(t, entity.StatusPending, order.Status)

	for _, u := range []*entity.User{f.admin, f.approver} {
		got, err := f.notifications.ListForUser(ctx, u.ID, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, notification.CategoryApprovalRequest, got[0].Category)
		require.Equal(t, order.ID, *got[0].OrderID)
	}
	own, err := f.notifications.ListForUser(ctx, f.operator.ID, 10)
	require.NoError(t, err)
	require.Empty(t, own)
}

func TestApproveScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{Items: items("Toner")})
	order, err := f.svc.Transition(ctx, f.operator, order.ID, entity.StatusPending, "")
	require.NoError(t, err)

	before, err := f.notifications.ListForUser(ctx, f.approver.ID, 10)
	require.NoError(t, err)

	order, err = f.svc.Transition(ctx, f.approver, order.ID, entity.StatusApproved, "ok")
	require.NoError(t, err)
	require.Equal(t, entity.StatusApproved, order.Status)
	require.NotNil(t, order.ApprovedBy)
	require.Equal(t, f.approver.ID, *order.ApprovedBy)
	require.Equal(t, "ok", order.ApprovalNote)

	require.Len(t, order.History, 3)
	latest := order.History[0]
	require.Equal(t, entity.StatusPending, *latest.PreviousStatus)
	require.Equal(t, entity.StatusApproved, latest.NewStatus)
	require.Equal(t, f.approver.ID, latest.ActorID)
	require.Equal(t, "ok", latest.Comment)

	creator, err := f.notifications.ListForUser(ctx, f.operator.ID, 10)
	require.NoError(t, err)
	require.Len(t, creator, 1)
	require.Equal(t, "status_approved", creator[0].Category)

	after, err := f.notifications.ListForUser(ctx, f.approver.ID, 10)
	require.NoError(t, err)
	require.Len(t, after, len(before))
}

func TestTransitionRejectsInvalidPairs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{Items: items("Toner")})
	for _, target := range []entity.Status{entity.StatusApproved, entity.StatusRejected, entity.StatusInProgress, entity.StatusCompleted, entity.StatusDraft} {
		_, err := f.svc.Transition(ctx, f.admin, order.ID, target, "reason")
		requireKind(t, err, errorbank.KindInvalidTransition)
		require.Contains(t, err.Error(), `"draft"`)
		require.Contains(t, err.Error(), string(target))
		require.Equal(t, entity.StatusDraft, f.status(t, order.ID))
	}

	_, err := f.svc.Transition(ctx, f.admin, order.ID, entity.StatusCancelled, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.admin, order.ID, entity.StatusDraft, "")
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.Transition(ctx, f.admin, order.ID, "archived", "")
	requireKind(t, err, errorbank.KindValidation)

	_, err = f.svc.Transition(ctx, f.admin, 4242, entity.StatusPending, "")
	requireKind(t, err, errorbank.KindNotFound)
}

func TestTransitionPermissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{InitialStatus: entity.StatusPending, Items: items("Toner")})

	_, err := f.svc.Transition(ctx, f.operator, order.ID, entity.StatusApproved, "")
	requireKind(t, err, errorbank.KindPermissionDenied)
	require.Equal(t, entity.StatusPending, f.status(t, order.ID))

	_, err = f.svc.Transition(ctx, f.approver, order.ID, entity.StatusRejected, "  ")
	requireKind(t, err, errorbank.KindValidation)
	require.Equal(t, entity.StatusPending, f.status(t, order.ID))

	_, err = f.svc.Transition(ctx, f.other, order.ID, entity.StatusCancelled, "")
	requireKind(t, err, errorbank.KindForbidden)

	rejected, err := f.svc.Transition(ctx, f.approver, order.ID, entity.StatusRejected, "too expensive")
	require.NoError(t, err)
	require.Equal(t, "too expensive", rejected.ApprovalNote)

	history, err := f.svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, entity.StatusRejected, history[0].NewStatus)
	require.Equal(t, "too expensive", history[0].Comment)
}

func TestSubmitRequiresDescribedItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{})
	_, err := f.svc.Transition(ctx, f.operator, order.ID, entity.StatusPending, "")
	requireKind(t, err, errorbank.KindValidation)
	require.Equal(t, entity.StatusDraft, f.status(t, order.ID))

	blank := f.draft(t, f.operator, CreateInput{Items: items("  ")})
	_, err = f.svc.Transition(ctx, f.operator, blank.ID, entity.StatusPending, "")
	requireKind(t, err, errorbank.KindValidation)
}

func TestUpdateReplacesItemsAndKeepsTaxPercent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{Items: items("a", "b"), TaxPercent: pct("10")})
	require.Equal(t, "22.00", order.Total.StringFixed(2))

	title := "Cleaning supplies"
	replacement := []ledger.ItemInput{{Description: "Soap", Quantity: "4", UnitPrice: "2.5"}}
	updated, err := f.svc.Update(ctx, f.operator, order.ID, UpdateInput{Title: &title, Items: &replacement})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)
	require.Len(t, updated.Items, 1)
	require.Equal(t, "10.00", updated.Subtotal.StringFixed(2))
	require.Equal(t, "1.00", updated.Tax.StringFixed(2))
	require.Equal(t, "11.00", updated.Total.StringFixed(2))
	require.Equal(t, order.Code, updated.Code)

	updated, err = f.svc.Update(ctx, f.operator, order.ID, UpdateInput{TaxPercent: pct("0")})
	require.NoError(t, err)
	require.True(t, updated.Tax.IsZero())
	require.Equal(t, "10.00", updated.Total.StringFixed(2))

	count, err := f.conns.Writer.NewSelect().Model((*entity.OrderItem)(nil)).Where("order_id = ?", order.ID).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUpdateEditingRule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order := f.draft(t, f.operator, CreateInput{InitialStatus: entity.StatusPending, Items: items("Toner")})
	title := "Renamed"

	_, err := f.svc.Update(ctx, f.operator, order.ID, UpdateInput{Title: &title})
	requireKind(t, err, errorbank.KindEditNotAllowed)

	_, err = f.svc.Update(ctx, f.other, order.ID, UpdateInput{Title: &title})
	requireKind(t, err, errorbank.KindForbidden)

	_, err = f.svc.Update(ctx, f.viewer, order.ID, UpdateInput{Title: &title})
	requireKind(t, err, errorbank.KindPermissionDenied)

	empty := []ledger.ItemInput{}
	_, err = f.svc.Update(ctx, f.admin, order.ID, UpdateInput{Items: &empty})
	requireKind(t, err, errorbank.KindValidation)

	updated, err := f.svc.Update(ctx, f.admin, order.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	_, err = f.svc.Attach(ctx, f.operator, order.ID, "s3://docs/quote.pdf")
	requireKind(t, err, errorbank.KindEditNotAllowed)
	attached, err := f.svc.Attach(ctx, f.admin, order.ID, "s3://docs/quote.pdf")
	require.NoError(t, err)
	require.Equal(t, "s3://docs/quote.pdf", attached.Attachment)
}

func TestScoping(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mine := f.draft(t, f.operator, CreateInput{Title: "Mine"})
	f.draft(t, f.other, CreateInput{Title: "Theirs"})

	_, err := f.svc.Get(ctx, f.other, mine.ID)
	requireKind(t, err, errorbank.KindForbidden)

	got, err := f.svc.Get(ctx, f.admin, mine.ID)
	require.NoError(t, err)
	require.Equal(t, mine.Code, got.Code)

	_, err = f.svc.Get(ctx, f.admin, 999)
	requireKind(t, err, errorbank.KindNotFound)

	page, err := f.svc.List(ctx, f.other, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Theirs", page.Orders[0].Title)

	page, err = f.svc.List(ctx, f.admin, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 10, page.Limit)

	page, err = f.svc.List(ctx, f.viewer, ListFilter{Search: "Min", Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, 100, page.Limit)

	_, err = f.svc.List(ctx, f.admin, ListFilter{Status: "lost"})
	requireKind(t, err, errorbank.KindValidation)
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	own := f.draft(t, f.operator, CreateInput{Items: items("a")})
	require.NoError(t, f.svc.Delete(ctx, f.operator, own.ID))

	for _, model := range []any{(*entity.Order)(nil), (*entity.OrderItem)(nil), (*entity.OrderHistory)(nil)} {
		count, err := f.conns.Writer.NewSelect().Model(model).Count(ctx)
		require.NoError(t, err)
		require.Zero(t, count)
	}

	pending := f.draft(t, f.operator, CreateInput{InitialStatus: entity.StatusPending, Items: items("a")})
	requireKind(t, f.svc.Delete(ctx, f.operator, pending.ID), errorbank.KindForbidden)
	requireKind(t, f.svc.Delete(ctx, f.approver, pending.ID), errorbank.KindForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.admin, pending.ID))

	count, err := f.conns.Writer.NewSelect().Model((*entity.Notification)(nil)).Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	requireKind(t, f.svc.Delete(ctx, f.admin, pending.ID), errorbank.KindNotFound)
}

func TestGenerateCodePreview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	code, err := f.svc.GenerateCode(ctx)
	require.NoError(t, err)
	require.Equal(t, "PED-2026-00001", code)

	created := f.draft(t, f.operator, CreateInput{})
	require.Equal(t, code, created.Code)
}

func TestAllowedTransitions(t *testing.T) {
	order := &entity.Order{CreatedBy: 1, Status: entity.StatusPending}
	operator := &entity.User{ID: 1, Role: entity.RoleOperator, Active: true}
	approver := &entity.User{ID: 2, Role: entity.RoleApprover, Active: true}
	stranger := &entity.User{ID: 3, Role: entity.RoleOperator, Active: true}

	require.Equal(t, []entity.Status{entity.StatusCancelled}, AllowedTransitions(operator, order))
	require.Equal(t, []entity.Status{entity.StatusApproved, entity.StatusRejected, entity.StatusCancelled}, AllowedTransitions(approver, order))
	require.Nil(t, AllowedTransitions(stranger, order))
}

func TestGetReadsThroughCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	store := cache.Memory(time.Minute)
	f.svc.cache = store

	order := f.draft(t, f.operator, CreateInput{Items: items("a")})
	got, err := f.svc.Get(ctx, f.operator, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Code, got.Code)
	require.Equal(t, 1, store.Len())

	_, err = f.svc.Get(ctx, f.other, order.ID)
	requireKind(t, err, errorbank.KindForbidden)

	title := "Renamed"
	_, err = f.svc.Update(ctx, f.operator, order.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	require.Zero(t, store.Len())

	got, err = f.svc.Get(ctx, f.operator, order.ID)
	require.NoError(t, err)
	require.Equal(t, title, got.Title)
	require.Len(t, got.Items, 1)
	require.True(t, order.Total.Equal(got.Total))
}

func TestGetIgnoresCopyCachedBeforeCommit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	store := cache.Memory(time.Minute)
	f.svc.cache = store

	order := f.draft(t, f.operator, CreateInput{Items: items("a")})
	require.EqualValues(t, 1, order.Version)

	// A reader loaded this copy before the submit committed and cached it afterwards.
	loaded, err := f.svc.repo.GetDetail(ctx, order.ID)
	require.NoError(t, err)
	submitted, err := f.svc.Transition(ctx, f.operator, order.ID, entity.StatusPending, "")
	require.NoError(t, err)
	require.EqualValues(t, 2, submitted.Version)
	f.svc.storeInCache(ctx, loaded)

	got, err := f.svc.Get(ctx, f.operator, order.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, got.Status)
	require.EqualValues(t, 2, got.Version)

	cached, err := f.svc.getFromCache(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, cached.Status)

	require.NoError(t, f.svc.Delete(ctx, f.admin, order.ID))
	f.svc.storeInCache(ctx, got)
	_, err = f.svc.Get(ctx, f.operator, order.ID)
	requireKind(t, err, errorbank.KindNotFound)
}
