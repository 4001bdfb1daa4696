package inbox

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/inbox"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
)

// Module wires HTTP notification handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes the caller's notification inbox.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an inbox Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the notification routes.
func Register(e *echo.Echo, h *Handler, authn *auth.Authenticator) {
	g := e.Group("/notifications", authn.Middleware())
	g.GET("", h.list)
	g.PATCH("/read-all", h.markAll)
	g.PATCH("/:id/read", h.markRead)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	box, err := h.svc.List(c.Request().Context(), auth.Actor(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(box).Build()
}

func (h *Handler) markRead(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	if err := h.svc.MarkRead(c.Request().Context(), auth.Actor(c), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"id": id, "read": true}).Build()
}

func (h *Handler) markAll(c echo.Context) error {
	b := response.New(c)
	n, err := h.svc.MarkAllRead(c.Request().Context(), auth.Actor(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int64{"updated": n}).Build()
}
