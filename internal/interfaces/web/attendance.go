package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

// ownerOf resolves whose attendance the caller acts on. Members act on their
// own reservations; administrators act on behalf of the reservation owner.
func (s *Server) ownerOf(c echo.Context, reservationID string) (string, error) {
	p := principal(c)
	if !p.Admin {
		return p.Subject, nil
	}
	r, err := s.deps.Manage.Get(c.Request().Context(), p.TenantID, reservationID, p.Actor())
	if err != nil {
		return "", err
	}
	return r.UserID, nil
}

func (s *Server) handleCheckIn(c echo.Context) error {
	p := principal(c)
	var req checkInRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	method, err := attendance.ParseMethod(req.Method)
	if err != nil {
		return internaltypes.New(internaltypes.KindInvalidRequest, "%s", err.Error())
	}
	userID := p.Subject
	if p.Admin {
		if userID, err = s.ownerOf(c, c.Param("id")); err != nil {
			return err
		}
		if req.UserID != "" && req.UserID != userID {
			return internaltypes.New(internaltypes.KindInvalidRequest, "userId does not own this reservation")
		}
	}

	rec, err := s.deps.Attendance.CheckIn(c.Request().Context(), usecases.CheckInCommand{
		TenantID:      p.TenantID,
		ReservationID: c.Param("id"),
		UserID:        userID,
		Actor:         p.Actor(),
		Method:        method,
		Payload:       req.Payload,
		Location:      req.location(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec.View())
}

func (s *Server) handleCheckOut(c echo.Context) error {
	p := principal(c)
	userID, err := s.ownerOf(c, c.Param("id"))
	if err != nil {
		return err
	}
	rec, err := s.deps.Attendance.CheckOut(c.Request().Context(), p.TenantID, c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec.View())
}

func (s *Server) handleGetAttendance(c echo.Context) error {
	p := principal(c)
	userID, err := s.ownerOf(c, c.Param("id"))
	if err != nil {
		return err
	}
	rec, err := s.deps.Attendance.Get(c.Request().Context(), p.TenantID, c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec.View())
}

func (s *Server) handleIssuePass(c echo.Context) error {
	p := principal(c)
	token, expires, err := s.deps.Attendance.IssuePass(c.Request().Context(), p.TenantID, c.Param("id"), p.Subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, passResponse{Token: token, ExpiresAt: expires})
}
