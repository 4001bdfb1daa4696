package catalog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/catalog"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
)

// Module wires the supplier and category endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler serves the reference data used by order forms and its maintenance.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a catalog Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the catalog routes. Any authenticated user may read; the service limits
// changes to administrators and approvers.
func Register(e *echo.Echo, h *Handler, authn *auth.Authenticator) {
	suppliers := e.Group("/suppliers", authn.Middleware())
	suppliers.GET("", h.suppliers)
	suppliers.POST("", h.createSupplier)
	suppliers.PUT("/:id", h.updateSupplier)
	suppliers.PATCH("/:id/toggle-active", h.toggleSupplier)

	categories := e.Group("/categories", authn.Middleware())
	categories.GET("", h.categories)
	categories.POST("", h.createCategory)
	categories.PUT("/:id", h.updateCategory)
	categories.PATCH("/:id/toggle-active", h.toggleCategory)
}

func (h *Handler) suppliers(c echo.Context) error {
	b := response.New(c)
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	rows, err := h.svc.Suppliers(c.Request().Context(), all)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(rows).Build()
}

func (h *Handler) createSupplier(c echo.Context) error {
	b := response.New(c)
	var payload dto.SupplierRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	supplier, err := h.svc.CreateSupplier(c.Request().Context(), auth.Actor(c), payload.ToInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(supplier).Build()
}

func (h *Handler) updateSupplier(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.SupplierPatchRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	supplier, err := h.svc.UpdateSupplier(c.Request().Context(), auth.Actor(c), id, payload.ToPatch())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(supplier).Build()
}

func (h *Handler) toggleSupplier(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	supplier, err := h.svc.ToggleSupplier(c.Request().Context(), auth.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(supplier).Build()
}

func (h *Handler) categories(c echo.Context) error {
	b := response.New(c)
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	rows, err := h.svc.Categories(c.Request().Context(), all)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(rows).Build()
}

func (h *Handler) createCategory(c echo.Context) error {
	b := response.New(c)
	var payload dto.CategoryRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	category, err := h.svc.CreateCategory(c.Request().Context(), auth.Actor(c), payload.ToInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(category).Build()
}

func (h *Handler) updateCategory(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CategoryPatchRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	category, err := h.svc.UpdateCategory(c.Request().Context(), auth.Actor(c), id, payload.ToPatch())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(category).Build()
}

func (h *Handler) toggleCategory(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	category, err := h.svc.ToggleCategory(c.Request().Context(), auth.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(category).Build()
}
