package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

type errorEnvelope struct {
	Success bool               `json:"success"`
	Error   response.ErrorBody `json:"error"`
	Meta    map[string]any     `json:"meta"`
}

func serve(e *echo.Echo, method, path string) (*httptest.ResponseRecorder, errorEnvelope) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	e := NewEcho(config.Config{}, nil, nil, zap.NewNop())
	e.GET("/boom", func(echo.Context) error { return errors.New("db exploded") })
	e.GET("/denied", func(echo.Context) error {
		return errorbank.PermissionDenied("operators cannot approve", errorbank.WithDetail("role", "operator"))
	})
	e.GET("/panic", func(echo.Context) error { panic("unexpected") })

	cases := []struct {
		path   string
		method string
		status int
		kind   errorbank.Kind
	}{
		{"/missing", http.MethodGet, http.StatusNotFound, errorbank.KindNotFound},
		{"/boom", http.MethodPost, http.StatusBadRequest, errorbank.KindBadRequest},
		{"/boom", http.MethodGet, http.StatusInternalServerError, errorbank.KindInternal},
		{"/denied", http.MethodGet, http.StatusForbidden, errorbank.KindPermissionDenied},
		{"/panic", http.MethodGet, http.StatusInternalServerError, errorbank.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec, env := serve(e, tc.method, tc.path)
			require.Equal(t, tc.status, rec.Code)
			require.False(t, env.Success)
			require.Equal(t, tc.kind, env.Error.Kind)
			require.NotEmpty(t, env.Meta["request_id"])
			require.NotContains(t, rec.Body.String(), "db exploded")
		})
	}
}

func TestHealthPingsDatabase(t *testing.T) {
	e := NewEcho(config.Config{}, nil, dbtest.Open(t), zap.NewNop())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestValidatorUsesJSONNames(t *testing.T) {
	type payload struct {
		Title string `json:"title" validate:"required"`
	}
	err := NewValidator().Validate(payload{})
	appErr := translate(err)
	require.Equal(t, errorbank.KindValidation, appErr.Kind())
	require.Equal(t, "title", appErr.Details()["field"])
}
