package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationApproved  = "reservation.approved"
	EventReservationExpired   = "reservation.expired"
	EventBlackoutCreated      = "blackout.created"
	EventBlackoutDeleted      = "blackout.deleted"
	EventCheckedIn            = "attendance.checked-in"
	EventCheckedOut           = "attendance.checked-out"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	Subject string
	Admin   bool
}

func newID(fn func() string) string {
	if fn != nil {
		return fn()
	}
	return uuid.NewString()
}

func clockOrSystem(c ports.Clock) ports.Clock {
	if c == nil {
		return ports.SystemClock{}
	}
	return c
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// serviceError passes classified errors through and turns anything else
// into a retryable Unavailable.
func serviceError(err error, what string) error {
	if err == nil {
		return nil
	}
	if internaltypes.KindOf(err) != "" {
		return err
	}
	return internaltypes.Wrap(internaltypes.KindUnavailable, err, what)
}

// publish runs after commit. Failures are logged; the write already happened.
func publish(ctx context.Context, pub ports.EventPublisher, log *slog.Logger, events ...ports.Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil {
		for _, e := range events {
			loggerOrDefault(log).Error("event publish failed",
				slog.String("type", e.Type),
				slog.String("aggregateId", e.AggregateID),
				slog.Any("error", err))
		}
	}
}

func event(typ, tenantID, aggregateID string, at time.Time, data any) ports.Event {
	return ports.Event{
		ID:          uuid.NewString(),
		Type:        typ,
		TenantID:    tenantID,
		AggregateID: aggregateID,
		OccurredAt:  at,
		Data:        data,
	}
}

type reservationEvent struct {
	ReservationID    string             `json:"reservationId"`
	TenantID         string             `json:"tenantId"`
	CondominiumID    string             `json:"condominiumId"`
	AmenityID        string             `json:"amenityId"`
	UserID           string             `json:"userId"`
	StartTime        time.Time          `json:"startTime"`
	EndTime          time.Time          `json:"endTime"`
	Status           reservation.Status `json:"status"`
	RequiresApproval bool               `json:"requiresApproval"`
	ChargeAmount     string             `json:"chargeAmount"`
	Reason           string             `json:"reason,omitempty"`
}

func reservationEventOf(typ string, r reservation.Reservation, at time.Time) ports.Event {
	return event(typ, r.TenantID, r.ID, at, reservationEvent{
		ReservationID:    r.ID,
		TenantID:         r.TenantID,
		CondominiumID:    r.CondominiumID,
		AmenityID:        r.AmenityID,
		UserID:           r.UserID,
		StartTime:        r.Window.Start,
		EndTime:          r.Window.End,
		Status:           r.Status,
		RequiresApproval: r.RequiresApproval,
		ChargeAmount:     r.ChargeAmount.StringFixed(2),
		Reason:           r.CancelReason,
	})
}

func blackoutEventOf(typ string, b blackout.Blackout, at time.Time) ports.Event {
	return event(typ, b.TenantID, b.ID, at, b.View())
}

type attendanceEvent struct {
	TenantID      string            `json:"tenantId"`
	ReservationID string            `json:"reservationId"`
	UserID        string            `json:"userId"`
	Method        attendance.Method `json:"method"`
	Timestamp     time.Time         `json:"timestamp"`
}

func attendanceEventOf(typ string, rec attendance.Record, at time.Time) ports.Event {
	return event(typ, rec.TenantID, rec.ReservationID, at, attendanceEvent{
		TenantID:      rec.TenantID,
		ReservationID: rec.ReservationID,
		UserID:        rec.UserID,
		Method:        rec.Method,
		Timestamp:     at,
	})
}
