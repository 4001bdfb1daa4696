package directory

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/directory"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
)

// Module wires the user administration endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes user administration to administrators.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a directory Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the /users routes.
func Register(e *echo.Echo, h *Handler, authn *auth.Authenticator) {
	g := e.Group("/users", authn.Middleware())
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.PATCH("/:id/toggle-active", h.toggle)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	users, err := h.svc.List(c.Request().Context(), auth.Actor(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(users).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	user, err := h.svc.Get(c.Request().Context(), auth.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(user).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	var payload dto.UserRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	user, err := h.svc.Create(c.Request().Context(), auth.Actor(c), payload.ToInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(user).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UserPatchRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	user, err := h.svc.Update(c.Request().Context(), auth.Actor(c), id, payload.ToPatch())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(user).Build()
}

func (h *Handler) toggle(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	user, err := h.svc.ToggleActive(c.Request().Context(), auth.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(user).Build()
}
