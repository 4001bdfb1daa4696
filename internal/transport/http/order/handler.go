package order

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/order"
	reportsvc "github.com/Additional-Code/procura/internal/service/report"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
	reporthttp "github.com/Additional-Code/procura/internal/transport/http/report"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/procura/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc     *service.Service
	reports *reportsvc.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, reports *reportsvc.Service) *Handler {
	return &Handler{svc: svc, reports: reports}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler, authn *auth.Authenticator) {
	g := e.Group("/orders", authn.Middleware())
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/export", h.export)
	g.GET("/code", h.nextCode)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
	g.PATCH("/:id/status", h.transition)
	g.PUT("/:id/attachment", h.attach)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/history", h.history)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor := auth.Actor(c)
	order, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(actor, order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	defer span.End()

	actor := auth.Actor(c)
	order, err := h.svc.Create(ctx, actor, payload.ToInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.String("order.code", order.Code))

	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(actor, order)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor := auth.Actor(c)
	order, err := h.svc.Update(ctx, actor, id, payload.ToInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(actor, order)).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.TransitionRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", payload.Status),
	))
	defer span.End()

	actor := auth.Actor(c)
	order, err := h.svc.Transition(ctx, actor, id, entity.Status(payload.Status), payload.Comment)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(actor, order)).Build()
}

func (h *Handler) attach(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.AttachmentRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	actor := auth.Actor(c)
	order, err := h.svc.Attach(c.Request().Context(), actor, id, payload.Reference)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(actor, order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	if err := h.svc.Delete(c.Request().Context(), auth.Actor(c), id); err != nil {
		return response.New(c).WithError(err).Build()
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	entries, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(entries).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	filter, err := listFilter(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	actor := auth.Actor(c)
	page, err := h.svc.List(ctx, actor, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	orders := make([]dto.OrderResponse, 0, len(page.Orders))
	for _, o := range page.Orders {
		orders = append(orders, dto.NewOrderResponse(actor, o))
	}
	return b.WithData(orders).WithPagination(page.Page, page.Limit, page.Total).Build()
}

func (h *Handler) export(c echo.Context) error {
	filter, err := reporthttp.Filter(c)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	return reporthttp.Export(c, h.reports, filter)
}

func (h *Handler) nextCode(c echo.Context) error {
	b := response.New(c)
	code, err := h.svc.GenerateCode(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"code": code}).Build()
}

func listFilter(c echo.Context) (service.ListFilter, error) {
	f := service.ListFilter{
		Status:     entity.Status(c.QueryParam("status")),
		Type:       entity.OrderType(c.QueryParam("type")),
		Priority:   entity.Priority(c.QueryParam("priority")),
		EntityKind: entity.EntityKind(c.QueryParam("entity_kind")),
		Search:     strings.TrimSpace(c.QueryParam("search")),
	}
	var err error
	if f.Page, err = request.Int(c, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = request.Int(c, "limit"); err != nil {
		return f, err
	}
	if f.CreatedFrom, err = request.Date(c, "date_from"); err != nil {
		return f, err
	}
	if f.CreatedTo, err = request.Date(c, "date_to"); err != nil {
		return f, err
	}
	return f, nil
}
