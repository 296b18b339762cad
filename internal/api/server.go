// Package api is the thin admin HTTP surface over the scheduler: schedule
// CRUD, manual triggers, approval resolution and cancellation.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/scheduler"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

type Config struct {
	Addr string
}

type Server struct {
	cfg Config
	svc *scheduler.Service
	log logx.Logger
	e   *echo.Echo
}

func New(cfg Config, svc *scheduler.Service, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8870"
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{cfg: cfg, svc: svc, log: log, e: e}

	e.GET("/health", s.health)
	e.GET("/v1/stats", s.stats)
	e.POST("/v1/schedules", s.createSchedule)
	e.GET("/v1/schedules", s.listSchedules)
	e.GET("/v1/schedules/:id", s.getSchedule)
	e.POST("/v1/schedules/:id/trigger", s.trigger)
	e.GET("/v1/schedules/:id/executions", s.listExecutions)
	e.POST("/v1/executions/:id/approval", s.resolveApproval)
	e.POST("/v1/executions/:id/cancel", s.cancelExecution)

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("admin api listening", logx.String("addr", s.cfg.Addr))
	err := s.e.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(c echo.Context) error {
	st, err := s.svc.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) createSchedule(c echo.Context) error {
	var sch domain.Schedule
	if err := c.Bind(&sch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	created, err := s.svc.CreateSchedule(c.Request().Context(), sch)
	if err != nil {
		if scheduler.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) listSchedules(c echo.Context) error {
	schedules, err := s.svc.ListSchedules(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}
	return c.JSON(http.StatusOK, schedules)
}

func (s *Server) getSchedule(c echo.Context) error {
	sch, err := s.svc.GetSchedule(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if sch == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "schedule not found"})
	}
	return c.JSON(http.StatusOK, sch)
}

func (s *Server) trigger(c echo.Context) error {
	err := s.svc.TriggerNow(c.Request().Context(), c.Param("id"))
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "fired"})
	case errors.Is(err, scheduler.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case scheduler.IsValidation(err):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) listExecutions(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}
	execs, err := s.svc.ListExecutions(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if execs == nil {
		execs = []domain.Execution{}
	}
	return c.JSON(http.StatusOK, execs)
}

func (s *Server) resolveApproval(c echo.Context) error {
	var body struct {
		Approved bool `json:"approved"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	exec, err := s.svc.ResolveApproval(c.Request().Context(), c.Param("id"), body.Approved)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if exec == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "execution not awaiting approval"})
	}
	return c.JSON(http.StatusOK, exec)
}

func (s *Server) cancelExecution(c echo.Context) error {
	exec, err := s.svc.CancelExecution(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if exec == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "execution not running"})
	}
	return c.JSON(http.StatusOK, exec)
}
