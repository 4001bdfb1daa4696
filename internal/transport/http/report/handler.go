package report

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/report"
	"github.com/Additional-Code/procura/internal/transport/http/auth"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/procura/transport/http/report")

// Module wires HTTP report handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes dashboards and report listings.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a report Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the report routes.
func Register(e *echo.Echo, h *Handler, authn *auth.Authenticator) {
	g := e.Group("/reports", authn.Middleware())
	g.GET("", h.list)
	g.GET("/statistics", h.statistics)
	g.GET("/export", h.export)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	filter, err := Filter(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "reports.list")
	defer span.End()

	r, err := h.svc.Report(ctx, auth.Actor(c), filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(r).WithPagination(r.Page, r.Limit, r.Count).Build()
}

func (h *Handler) statistics(c echo.Context) error {
	b := response.New(c)
	dates, err := DateRange(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "reports.statistics")
	defer span.End()

	stats, err := h.svc.Statistics(ctx, auth.Actor(c), dates)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func (h *Handler) export(c echo.Context) error {
	filter, err := Filter(c)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	return Export(c, h.svc, filter)
}

// Filter reads report filters from the query string. status may repeat or be comma separated.
func Filter(c echo.Context) (service.Filter, error) {
	f := service.Filter{EntityKind: entity.EntityKind(c.QueryParam("entity_kind"))}
	for _, raw := range c.QueryParams()["status"] {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				f.Statuses = append(f.Statuses, entity.Status(st))
			}
		}
	}
	var err error
	if f.SupplierID, err = request.OptionalID(c, "supplier_id"); err != nil {
		return f, err
	}
	if f.CreatedBy, err = request.OptionalID(c, "created_by"); err != nil {
		return f, err
	}
	if f.Page, err = request.Int(c, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = request.Int(c, "limit"); err != nil {
		return f, err
	}
	f.Dates, err = DateRange(c)
	return f, err
}

// DateRange reads date_from and date_to.
func DateRange(c echo.Context) (service.DateRange, error) {
	var r service.DateRange
	var err error
	if r.From, err = request.Date(c, "date_from"); err != nil {
		return r, err
	}
	r.To, err = request.Date(c, "date_to")
	return r, err
}

// Export streams the CSV export of filter. Errors raised before the first row render as JSON.
func Export(c echo.Context, svc *service.Service, filter service.Filter) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "reports.export")
	defer span.End()

	w := &csvWriter{res: c.Response()}
	if err := svc.Export(ctx, auth.Actor(c), filter, w); err != nil {
		if w.started {
			return err
		}
		return response.New(c).WithError(err).Build()
	}
	if !w.started {
		w.start()
	}
	return nil
}

type csvWriter struct {
	res     *echo.Response
	started bool
}

func (w *csvWriter) start() {
	w.started = true
	w.res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	w.res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="orders.csv"`)
	w.res.WriteHeader(http.StatusOK)
}

func (w *csvWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.start()
	}
	return w.res.Write(p)
}
