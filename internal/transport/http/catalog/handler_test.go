package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/entity"
	catalogrepo "github.com/Additional-Code/procura/internal/repository/catalog"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	httpserver "github.com/Additional-Code/procura/internal/server/http"
	service "github.com/Additional-Code/procura/internal/service/catalog"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

func TestCatalogRoutes(t *testing.T) {
	conns := dbtest.Open(t)
	logger := zap.NewNop()
	cfg := config.Config{Auth: config.Auth{JWTSecret: "0123456789abcdef", Leeway: time.Second}}

	e := httpserver.NewEcho(cfg, nil, conns, logger)
	authn := auth.NewAuthenticator(cfg, userrepo.NewRepository(conns), logger)
	Register(e, NewHandler(service.NewService(catalogrepo.NewRepository(conns), logger)), authn)

	approver := dbtest.User(t, conns.Writer, "bruno", entity.RoleApprover)
	operator := dbtest.User(t, conns.Writer, "ana", entity.RoleOperator)

	do := func(user *entity.User, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		tok, err := authn.Sign(user.ID, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		var env envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
		return rec, env
	}

	rec, env := do(approver, http.MethodPost, "/suppliers", map[string]any{"name": "Acme", "email": "sales@acme.test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var supplier entity.Supplier
	require.NoError(t, json.Unmarshal(env.Data, &supplier))
	require.True(t, supplier.Active)

	rec, env = do(operator, http.MethodPost, "/suppliers", map[string]any{"name": "Other"})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	require.Equal(t, "permission_denied", env.Error.Kind)

	rec, env = do(approver, http.MethodPost, "/suppliers", map[string]any{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Equal(t, "validation", env.Error.Kind)

	rec, _ = do(approver, http.MethodPut, fmt.Sprintf("/suppliers/%d", supplier.ID), map[string]any{"phone": "555-0100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = do(approver, http.MethodPatch, fmt.Sprintf("/suppliers/%d/toggle-active", supplier.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &supplier))
	require.False(t, supplier.Active)
	require.Equal(t, "555-0100", supplier.Phone)

	_, env = do(operator, http.MethodGet, "/suppliers", nil)
	var listed []entity.Supplier
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Empty(t, listed)
	_, env = do(operator, http.MethodGet, "/suppliers?all=true", nil)
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)

	rec, env = do(approver, http.MethodPost, "/categories", map[string]any{"name": "Paper"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var category entity.Category
	require.NoError(t, json.Unmarshal(env.Data, &category))
	require.Equal(t, service.DefaultColor, category.Color)

	rec, _ = do(approver, http.MethodPut, fmt.Sprintf("/categories/%d", category.ID), map[string]any{"color": "blue"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec, _ = do(approver, http.MethodPatch, "/categories/999/toggle-active", nil)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
