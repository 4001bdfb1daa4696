package order

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/codegen"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/messaging"
	"github.com/Additional-Code/procura/internal/notification"
	catalogrepo "github.com/Additional-Code/procura/internal/repository/catalog"
	notificationrepo "github.com/Additional-Code/procura/internal/repository/notification"
	orderrepo "github.com/Additional-Code/procura/internal/repository/order"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	httpserver "github.com/Additional-Code/procura/internal/server/http"
	service "github.com/Additional-Code/procura/internal/service/order"
	reportsvc "github.com/Additional-Code/procura/internal/service/report"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type orderBody struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	Status             entity.Status   `json:"status"`
	Total              decimal.Decimal `json:"total"`
	AllowedTransitions []entity.Status `json:"allowed_transitions"`
}

type server struct {
	e        *echo.Echo
	authn    *auth.Authenticator
	operator *entity.User
	approver *entity.User
}

func newServer(t *testing.T) *server {
	t.Helper()
	conns := dbtest.Open(t)
	logger := zap.NewNop()
	cfg := config.Config{
		Auth:   config.Auth{JWTSecret: "0123456789abcdef", Leeway: time.Second},
		Orders: config.Orders{CodePrefix: "PED", DefaultCurrency: "LOCAL", DefaultPageSize: 10, MaxPageSize: 100, NotificationsCap: 50},
	}
	users := userrepo.NewRepository(conns)
	clock := func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) }

	orders := service.NewService(service.Params{
		Repository: orderrepo.NewRepository(conns),
		Catalog:    catalogrepo.NewRepository(conns),
		Generator:  codegen.New(conns, codegen.WithClock(clock)),
		Recorder:   audit.NewRecorder(conns),
		Dispatcher: notification.NewDispatcher(notificationrepo.NewRepository(conns), users, logger),
		Cache:      cache.Noop(),
		Config:     cfg,
		Logger:     logger,
		Publisher:  messaging.Noop("procura.orders"),
	})
	reports := reportsvc.NewService(reportsvc.Params{Repository: orderrepo.NewRepository(conns), Config: cfg, Logger: logger})

	e := httpserver.NewEcho(cfg, nil, conns, logger)
	authn := auth.NewAuthenticator(cfg, users, logger)
	Register(e, NewHandler(orders, reports), authn)

	return &server{
		e:        e,
		authn:    authn,
		operator: dbtest.User(t, conns.Writer, "ana", entity.RoleOperator),
		approver: dbtest.User(t, conns.Writer, "bruno", entity.RoleApprover),
	}
}

func (s *server) do(t *testing.T, user *entity.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != nil {
		tok, err := s.authn.Sign(user.ID, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

var newOrder = map[string]any{
	"title":       "Office paper",
	"tax_percent": "10",
	"items": []map[string]any{
		{"description": "A4 paper", "quantity": "5", "unit_price": "4"},
		{"description": "Toner", "quantity": "1", "unit_price": "5"},
	},
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, s.operator, http.MethodPost, "/orders", newOrder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created orderBody
	env := decode(t, rec, &created)
	require.True(t, env.Success)
	require.Equal(t, "PED-2026-00001", created.Code)
	require.True(t, decimal.RequireFromString("27.50").Equal(created.Total))
	require.Contains(t, created.AllowedTransitions, entity.StatusPending)

	path := fmt.Sprintf("/orders/%d", created.ID)
	rec = s.do(t, s.operator, http.MethodPatch, path+"/status", map[string]string{"status": "pending"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, s.operator, http.MethodPatch, path+"/status", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "permission_denied", decode(t, rec, nil).Error.Kind)

	rec = s.do(t, s.approver, http.MethodPatch, path+"/status", map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation", decode(t, rec, nil).Error.Kind)

	rec = s.do(t, s.approver, http.MethodPatch, path+"/status", map[string]string{"status": "approved", "comment": "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved orderBody
	decode(t, rec, &approved)
	require.Equal(t, entity.StatusApproved, approved.Status)

	rec = s.do(t, s.operator, http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []entity.OrderHistory
	decode(t, rec, &history)
	require.Len(t, history, 3)
	require.Equal(t, entity.StatusApproved, history[0].NewStatus)

	rec = s.do(t, s.operator, http.MethodPut, path, map[string]any{"title": "Changed"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "edit_not_allowed", decode(t, rec, nil).Error.Kind)
}

func TestRequestErrors(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, nil, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decode(t, rec, nil)
	require.False(t, env.Success)
	require.Equal(t, "unauthorized", env.Error.Kind)

	rec = s.do(t, s.operator, http.MethodPost, "/orders", map[string]any{"priority": "urgent"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env = decode(t, rec, nil)
	require.Equal(t, "validation", env.Error.Kind)
	require.Equal(t, "title", env.Error.Details["field"])

	rec = s.do(t, s.operator, http.MethodGet, "/orders/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, s.operator, http.MethodGet, "/orders/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, s.operator, http.MethodGet, "/orders?date_from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndExport(t *testing.T) {
	s := newServer(t)
	for i := 0; i < 3; i++ {
		rec := s.do(t, s.operator, http.MethodPost, "/orders", newOrder)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, s.operator, http.MethodGet, "/orders?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []orderBody
	env := decode(t, rec, &orders)
	require.Len(t, orders, 2)
	pagination := env.Meta["pagination"].(map[string]any)
	require.EqualValues(t, 3, pagination["total"])
	require.EqualValues(t, 2, pagination["total_pages"])

	rec = s.do(t, s.operator, http.MethodGet, "/orders/export?status=draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.Equal(t, []string{"count", "3", "amount", "82.50"}, rows[4][:4])

	rec = s.do(t, s.operator, http.MethodGet, "/orders/export?status=lost", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}
