// Package server exposes the engine over HTTP.
//
//	GET  /employees                          run a sync, respond with the change set
//	POST /employees                          import one employee record
//	GET  /reporting?start_date=&end_date=    export and parse the accounting report
//	GET  /healthz                            liveness
//
// Failures respond with the engine envelope body and its status code.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/roach88/rostersync/internal/diff"
	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/record"
)

// DateLayout is the format of the reporting query parameters.
const DateLayout = "2006-01-02"

// Runner runs the operations served. *engine.Engine implements it.
type Runner interface {
	Sync(ctx context.Context) (*diff.ChangeSet, error)
	PutEmployee(ctx context.Context, rec record.Record) (string, error)
	Report(ctx context.Context, start, end time.Time) (*engine.ReportResult, error)
}

var _ Runner = (*engine.Engine)(nil)

// Handler serves the routes.
type Handler struct {
	runner     Runner
	runTimeout time.Duration
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRunTimeout bounds each operation. Zero leaves only the client
// connection as the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.runTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a Handler around r.
func NewHandler(r Runner, opts ...Option) *Handler {
	h := &Handler{runner: r, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/employees", h.GetEmployees)
	e.POST("/employees", h.PostEmployee)
	e.GET("/reporting", h.GetReporting)
	e.GET("/healthz", h.Healthz)
}

// New builds an echo instance with recovery and request logging.
func New(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	h.RegisterRoutes(e)
	return e
}

func (h *Handler) runContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if h.runTimeout > 0 {
		return context.WithTimeout(ctx, h.runTimeout)
	}
	return context.WithCancel(ctx)
}

func (h *Handler) fail(c echo.Context, op engine.Operation, err error) error {
	env := engine.NewEnvelope(op, err)
	h.logger.Error("operation failed", "op", op, "kind", env.Body.Error, "stage", env.Body.Stage, "error", err)
	return c.JSON(env.StatusCode, env.Body)
}

func invalid(stage engine.Stage, msg string, err error) error {
	return &engine.RunError{Kind: engine.KindInvalidInput, Stage: stage, Message: msg, Err: err}
}

// GetEmployees runs a sync.
func (h *Handler) GetEmployees(c echo.Context) error {
	ctx, cancel := h.runContext(c)
	defer cancel()
	cs, err := h.runner.Sync(ctx)
	if err != nil {
		return h.fail(c, engine.OpSync, err)
	}
	return c.JSON(http.StatusOK, cs)
}

// PostEmployee imports the record in the request body.
func (h *Handler) PostEmployee(c echo.Context) error {
	var rec record.Record
	if err := json.NewDecoder(c.Request().Body).Decode(&rec); err != nil {
		return h.fail(c, engine.OpPut, invalid(engine.StageNormalize, "request body is not a flat employee record", err))
	}
	ctx, cancel := h.runContext(c)
	defer cancel()
	result, err := h.runner.PutEmployee(ctx, rec)
	if err != nil {
		return h.fail(c, engine.OpPut, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": result})
}

// GetReporting exports the accounting report for start_date..end_date.
func (h *Handler) GetReporting(c echo.Context) error {
	start, err := time.Parse(DateLayout, c.QueryParam("start_date"))
	if err != nil {
		return h.fail(c, engine.OpReport, invalid(engine.StageReport, "start_date must be YYYY-MM-DD", err))
	}
	end, err := time.Parse(DateLayout, c.QueryParam("end_date"))
	if err != nil {
		return h.fail(c, engine.OpReport, invalid(engine.StageReport, "end_date must be YYYY-MM-DD", err))
	}
	ctx, cancel := h.runContext(c)
	defer cancel()
	res, err := h.runner.Report(ctx, start, end)
	if err != nil {
		return h.fail(c, engine.OpReport, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
