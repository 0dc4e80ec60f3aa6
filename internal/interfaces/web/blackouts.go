package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

func (s *Server) handleCreateBlackout(c echo.Context) error {
	p := principal(c)
	var req createBlackoutRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := s.deps.Blackouts.Create(c.Request().Context(), usecases.CreateBlackoutCommand{
		TenantID:      p.TenantID,
		CondominiumID: req.CondominiumID,
		AmenityID:     req.AmenityID,
		Start:         req.StartTime,
		End:           req.EndTime,
		Reason:        req.Reason,
		Source:        blackout.Source(req.Source),
		CreatedBy:     p.Subject,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b.View())
}

func (s *Server) handleListBlackouts(c echo.Context) error {
	p := principal(c)
	f := blackout.Filter{
		TenantID:      p.TenantID,
		CondominiumID: c.QueryParam("condominiumId"),
		AmenityID:     c.QueryParam("amenityId"),
	}
	if raw := c.QueryParam("source"); raw != "" {
		src, ok := blackout.ParseSource(raw)
		if !ok {
			return internaltypes.New(internaltypes.KindInvalidRequest, "unknown blackout source %q", raw)
		}
		f.Source = src
	}
	var err error
	if f.From, err = queryTime(c, "from", false); err != nil {
		return err
	}
	if f.To, err = queryTime(c, "to", false); err != nil {
		return err
	}

	bs, err := s.deps.Blackouts.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views(bs))
}

func (s *Server) handleGetBlackout(c echo.Context) error {
	b, err := s.deps.Blackouts.Get(c.Request().Context(), principal(c).TenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b.View())
}

func (s *Server) handleDeleteBlackout(c echo.Context) error {
	p := principal(c)
	if err := s.deps.Blackouts.Delete(c.Request().Context(), p.TenantID, c.Param("id"), p.Actor()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Blackout deleted successfully"})
}

func (s *Server) handleBlackoutConflicts(c echo.Context) error {
	start, err := queryTime(c, "startTime", true)
	if err != nil {
		return err
	}
	end, err := queryTime(c, "endTime", true)
	if err != nil {
		return err
	}
	bs, err := s.deps.Blackouts.CheckConflicts(c.Request().Context(), principal(c).TenantID, c.Param("amenityId"), *start, *end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conflictsResponse{HasConflicts: len(bs) > 0, Conflicts: views(bs)})
}

func views(bs []blackout.Blackout) []blackout.View {
	out := make([]blackout.View, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.View())
	}
	return out
}
