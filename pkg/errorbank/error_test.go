package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *AppError
		http int
		grpc codes.Code
	}{
		{Validation("title is required"), http.StatusBadRequest, codes.InvalidArgument},
		{InvalidTransition("draft -> completed"), http.StatusConflict, codes.FailedPrecondition},
		{PermissionDenied("approver role required"), http.StatusForbidden, codes.PermissionDenied},
		{Forbidden("not your order"), http.StatusForbidden, codes.PermissionDenied},
		{NotFound("order not found"), http.StatusNotFound, codes.NotFound},
		{Conflict("duplicate code"), http.StatusConflict, codes.AlreadyExists},
		{EditNotAllowed("only drafts"), http.StatusConflict, codes.FailedPrecondition},
		{GenerationFailed("store down"), http.StatusServiceUnavailable, codes.Unavailable},
		{StorageUnavailable("store down"), http.StatusServiceUnavailable, codes.Unavailable},
		{Unauthorized("token required"), http.StatusUnauthorized, codes.Unauthenticated},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			require.Equal(t, tc.http, tc.err.StatusCode())
			require.Equal(t, tc.grpc, tc.err.GRPCCode())
		})
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := From(cause)
	require.Equal(t, KindInternal, appErr.Kind())
	require.ErrorIs(t, appErr, cause)
	require.True(t, appErr.Infrastructure())

	wrapped := fmt.Errorf("loading: %w", NotFound("order not found"))
	require.Equal(t, KindNotFound, From(wrapped).Kind())
	require.True(t, Is(wrapped, KindNotFound))
	require.False(t, Is(wrapped, KindConflict))
	require.Nil(t, From(nil))
}

func TestDetails(t *testing.T) {
	err := InvalidTransition("cannot move", WithDetail("from", "draft"), WithDetails(map[string]any{"to": "completed"}))
	require.Equal(t, map[string]any{"from": "draft", "to": "completed"}, err.Details())

	err = Validation("title is required", WithField("title"))
	require.Equal(t, "title", err.Details()["field"])
	require.False(t, err.Infrastructure())
}
