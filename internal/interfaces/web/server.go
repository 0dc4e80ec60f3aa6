package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/amenity-reservations/internal/application/usecases"
)

// HealthFunc reports whether the service's backing store is reachable.
type HealthFunc func(ctx context.Context) error

type Deps struct {
	Create       usecases.CreateReservation
	Manage       usecases.ManageReservations
	Availability usecases.Availability
	Attendance   usecases.Attendance
	Blackouts    usecases.Blackouts
	Tokens       TokenValidator
	Health       HealthFunc
	Log          *slog.Logger
}

type Server struct {
	deps Deps
	e    *echo.Echo
	log  *slog.Logger
}

func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{deps: deps, e: echo.New(), log: log}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Validator = newRequestValidator()
	s.e.HTTPErrorHandler = errorHandler(log)
	s.e.Use(s.accessLog)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.handleHealth)

	auth := authenticate(s.deps.Tokens)

	r := s.e.Group("/reservations", auth)
	r.POST("", s.handleCreateReservation)
	r.GET("", s.handleListReservations)
	r.GET("/availability/:amenityId", s.handleAvailability)
	r.GET("/:id", s.handleGetReservation)
	r.POST("/:id/cancel", s.handleCancelReservation)
	r.POST("/:id/approve", s.handleApproveReservation, requireAdmin)
	r.POST("/:id/attendance/check-in", s.handleCheckIn)
	r.POST("/:id/attendance/check-out", s.handleCheckOut)
	r.GET("/:id/attendance", s.handleGetAttendance)
	r.POST("/:id/attendance/pass", s.handleIssuePass)

	b := s.e.Group("/blackouts", auth)
	b.POST("", s.handleCreateBlackout, requireAdmin)
	b.GET("", s.handleListBlackouts)
	b.GET("/amenity/:amenityId/conflicts", s.handleBlackoutConflicts)
	b.GET("/:id", s.handleGetBlackout)
	b.DELETE("/:id", s.handleDeleteBlackout, requireAdmin)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.e,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.Info("http request",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", c.Response().Status),
			slog.Duration("duration", time.Since(start)),
			slog.String("tenantId", c.Request().Header.Get(HeaderTenant)))
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
