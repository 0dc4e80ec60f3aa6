package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const headerReplayed = "Idempotent-Replayed"

func (s *Server) handleCreateReservation(c echo.Context) error {
	p := principal(c)
	token := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
	if token == "" {
		return internaltypes.New(internaltypes.KindInvalidRequest, "%s header is required", HeaderIdempotencyKey)
	}
	var req createReservationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := s.deps.Create.Execute(c.Request().Context(), usecases.CreateReservationCommand{
		TenantID:         p.TenantID,
		CondominiumID:    req.CondominiumID,
		AmenityID:        req.AmenityID,
		UserID:           p.Subject,
		Start:            req.StartTime,
		End:              req.EndTime,
		PartySize:        req.PartySize,
		IdempotencyToken: token,
	})
	if err != nil {
		return err
	}
	if res.Replayed {
		c.Response().Header().Set(headerReplayed, "true")
	}
	return c.Blob(res.Status, echo.MIMEApplicationJSON, res.Body)
}

func (s *Server) handleGetReservation(c echo.Context) error {
	p := principal(c)
	r, err := s.deps.Manage.Get(c.Request().Context(), p.TenantID, c.Param("id"), p.Actor())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.View())
}

func (s *Server) handleListReservations(c echo.Context) error {
	p := principal(c)
	var statuses []reservation.Status
	if raw := c.QueryParam("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := reservation.Status(strings.ToUpper(strings.TrimSpace(part)))
			if !st.Valid() {
				return internaltypes.New(internaltypes.KindInvalidRequest, "unknown status %q", part)
			}
			statuses = append(statuses, st)
		}
	}
	rs, err := s.deps.Manage.ListMine(c.Request().Context(), p.TenantID, p.Actor(), statuses)
	if err != nil {
		return err
	}
	out := make([]reservation.View, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.View())
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCancelReservation(c echo.Context) error {
	p := principal(c)
	var req cancelReservationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := s.deps.Manage.Cancel(c.Request().Context(), usecases.CancelCommand{
		TenantID:      p.TenantID,
		ReservationID: c.Param("id"),
		Actor:         p.Actor(),
		Reason:        req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.View())
}

func (s *Server) handleApproveReservation(c echo.Context) error {
	p := principal(c)
	r, err := s.deps.Manage.Approve(c.Request().Context(), p.TenantID, c.Param("id"), p.Actor())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.View())
}

func (s *Server) handleAvailability(c echo.Context) error {
	p := principal(c)
	from, err := queryTime(c, "from", true)
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		return err
	}
	q := usecases.AvailabilityQuery{
		TenantID:  p.TenantID,
		AmenityID: c.Param("amenityId"),
		From:      *from,
		To:        *to,
	}
	if raw := c.QueryParam("slotMinutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return internaltypes.New(internaltypes.KindInvalidRequest, "slotMinutes must be a positive integer")
		}
		q.SlotWidth = time.Duration(n) * time.Minute
	}
	if raw := c.QueryParam("includeBlackouts"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return internaltypes.New(internaltypes.KindInvalidRequest, "includeBlackouts must be a boolean")
		}
		q.IncludeBlackouts = b
	}

	slots, err := s.deps.Availability.Execute(c.Request().Context(), q)
	if err != nil {
		return err
	}
	out := make([]slotView, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotView{Start: sl.Window.Start, End: sl.Window.End, Available: sl.Available, Reason: sl.Reason})
	}
	return c.JSON(http.StatusOK, out)
}

type slotView struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// queryTime parses an RFC3339 query parameter. Absent optional values are nil.
func queryTime(c echo.Context, name string, required bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		if required {
			return nil, internaltypes.New(internaltypes.KindInvalidRequest, "query parameter %q is required", name)
		}
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, internaltypes.New(internaltypes.KindInvalidRequest, "query parameter %q must be an RFC3339 timestamp", name)
	}
	t = t.UTC()
	return &t, nil
}
