package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

type Attendance struct {
	Reservations ports.ReservationStore
	Store        ports.AttendanceStore
	Proofs       ports.ProofVerifier
	Passes       ports.PassIssuer
	Hasher       ports.Hasher
	Events       ports.EventPublisher
	Clock        ports.Clock
	Log          *slog.Logger

	BiometricEnabled bool
}

type CheckInCommand struct {
	TenantID      string
	ReservationID string
	UserID        string
	Actor         Actor
	Method        attendance.Method
	Payload       string
	Location      *attendance.Location
}

func (u Attendance) CheckIn(ctx context.Context, cmd CheckInCommand) (attendance.Record, error) {
	r, amenity, err := u.confirmedReservation(ctx, cmd.TenantID, cmd.ReservationID, cmd.UserID)
	if err != nil {
		return attendance.Record{}, err
	}

	existing, err := u.Store.GetAttendance(ctx, cmd.TenantID, cmd.ReservationID)
	switch {
	case err == nil && existing.CheckedIn():
		return attendance.Record{}, internaltypes.New(internaltypes.KindAlreadyCheckedIn, "already checked in")
	case err != nil && !errors.Is(err, internaltypes.ErrNotFound):
		return attendance.Record{}, serviceError(err, "get attendance")
	}

	now := clockOrSystem(u.Clock).Now()
	window := attendance.WindowAround(r.Window.Start, amenity.CheckInWindow)
	switch window.Position(now) {
	case -1:
		return attendance.Record{}, internaltypes.New(internaltypes.KindWindowNotOpen, "check-in opens at %s", window.Opens.Format(time.RFC3339))
	case 1:
		return attendance.Record{}, internaltypes.New(internaltypes.KindWindowClosed, "check-in closed at %s", window.Closes.Format(time.RFC3339))
	}

	if err := u.verify(ctx, cmd); err != nil {
		return attendance.Record{}, err
	}

	rec := attendance.Record{
		TenantID:      cmd.TenantID,
		ReservationID: cmd.ReservationID,
		UserID:        cmd.UserID,
		Method:        cmd.Method,
		Actor:         cmd.Actor.Subject,
		Location:      cmd.Location,
		CheckInAt:     &now,
		CreatedAt:     now,
	}
	if cmd.Payload != "" && u.Hasher != nil {
		rec.ProofHash = u.Hasher.Hash(cmd.Payload)
	}
	if err := u.Store.SaveCheckIn(ctx, rec); err != nil {
		return attendance.Record{}, serviceError(err, "save check-in")
	}
	loggerOrDefault(u.Log).Info("checked in",
		slog.String("tenantId", rec.TenantID),
		slog.String("reservationId", rec.ReservationID),
		slog.String("method", string(rec.Method)))
	publish(ctx, u.Events, u.Log, attendanceEventOf(EventCheckedIn, rec, now))
	return rec, nil
}

func (u Attendance) verify(ctx context.Context, cmd CheckInCommand) error {
	switch cmd.Method {
	case attendance.MethodManual:
		if !cmd.Actor.Admin {
			return internaltypes.New(internaltypes.KindForbidden, "manual check-in requires an administrator")
		}
		return nil
	case attendance.MethodBiometric:
		if !u.BiometricEnabled {
			return internaltypes.New(internaltypes.KindInvalidRequest, "biometric check-in is not enabled")
		}
	case attendance.MethodQR, attendance.MethodSMS:
	default:
		return internaltypes.New(internaltypes.KindInvalidRequest, "unsupported check-in method %q", cmd.Method)
	}

	if cmd.Payload == "" {
		return internaltypes.New(internaltypes.KindInvalidRequest, "validation payload is required for %s check-in", cmd.Method)
	}
	if u.Proofs == nil {
		return internaltypes.New(internaltypes.KindUpstreamUnavailable, "no verifier configured for %s check-in", cmd.Method)
	}
	ok, err := u.Proofs.Verify(ctx, ports.ProofRequest{
		Method:        cmd.Method,
		Payload:       cmd.Payload,
		TenantID:      cmd.TenantID,
		ReservationID: cmd.ReservationID,
		UserID:        cmd.UserID,
	})
	if err != nil {
		return internaltypes.Wrap(internaltypes.KindUpstreamUnavailable, err, "%s validation unavailable", cmd.Method)
	}
	if !ok {
		return internaltypes.New(internaltypes.KindInvalidRequest, "%s validation failed", cmd.Method)
	}
	return nil
}

func (u Attendance) CheckOut(ctx context.Context, tenantID, reservationID, userID string) (attendance.Record, error) {
	if _, err := u.ownedReservation(ctx, tenantID, reservationID, userID); err != nil {
		return attendance.Record{}, err
	}
	rec, err := u.Store.GetAttendance(ctx, tenantID, reservationID)
	if errors.Is(err, internaltypes.ErrNotFound) || (err == nil && !rec.CheckedIn()) {
		return attendance.Record{}, internaltypes.New(internaltypes.KindNotCheckedIn, "must check in before checking out")
	}
	if err != nil {
		return attendance.Record{}, serviceError(err, "get attendance")
	}
	if rec.CheckedOut() {
		return attendance.Record{}, internaltypes.New(internaltypes.KindAlreadyCheckedOut, "already checked out")
	}

	now := clockOrSystem(u.Clock).Now()
	if err := u.Store.SaveCheckOut(ctx, tenantID, reservationID, now); err != nil {
		return attendance.Record{}, serviceError(err, "save check-out")
	}
	rec.CheckOutAt = &now
	publish(ctx, u.Events, u.Log, attendanceEventOf(EventCheckedOut, rec, now))
	return rec, nil
}

func (u Attendance) Get(ctx context.Context, tenantID, reservationID, userID string) (attendance.Record, error) {
	if _, err := u.ownedReservation(ctx, tenantID, reservationID, userID); err != nil {
		return attendance.Record{}, err
	}
	rec, err := u.Store.GetAttendance(ctx, tenantID, reservationID)
	if err != nil {
		return attendance.Record{}, serviceError(err, "get attendance")
	}
	return rec, nil
}

// IssuePass returns a signed QR payload valid until the check-in window closes.
func (u Attendance) IssuePass(ctx context.Context, tenantID, reservationID, userID string) (string, time.Time, error) {
	if u.Passes == nil {
		return "", time.Time{}, internaltypes.New(internaltypes.KindInvalidRequest, "check-in passes are not enabled")
	}
	r, amenity, err := u.confirmedReservation(ctx, tenantID, reservationID, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	expires := attendance.WindowAround(r.Window.Start, amenity.CheckInWindow).Closes
	if !expires.After(clockOrSystem(u.Clock).Now()) {
		return "", time.Time{}, internaltypes.New(internaltypes.KindWindowClosed, "check-in window has closed")
	}
	token, err := u.Passes.Issue(ports.Pass{
		TenantID:      tenantID,
		ReservationID: reservationID,
		UserID:        userID,
		ExpiresAt:     expires,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (u Attendance) ownedReservation(ctx context.Context, tenantID, reservationID, userID string) (reservation.Reservation, error) {
	r, err := u.Reservations.GetReservation(ctx, tenantID, reservationID)
	if err != nil {
		return reservation.Reservation{}, serviceError(err, "get reservation")
	}
	if r.UserID != userID {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindNotFound, "reservation not found")
	}
	return r, nil
}

func (u Attendance) confirmedReservation(ctx context.Context, tenantID, reservationID, userID string) (reservation.Reservation, reservation.Amenity, error) {
	r, err := u.ownedReservation(ctx, tenantID, reservationID, userID)
	if err != nil {
		return reservation.Reservation{}, reservation.Amenity{}, err
	}
	if r.Status != reservation.StatusConfirmed {
		return reservation.Reservation{}, reservation.Amenity{}, internaltypes.New(internaltypes.KindInvalidRequest, "reservation is not confirmed (status %s)", r.Status)
	}
	amenity, err := u.Reservations.GetAmenity(ctx, tenantID, r.AmenityID)
	if err != nil && !errors.Is(err, internaltypes.ErrNotFound) {
		return reservation.Reservation{}, reservation.Amenity{}, serviceError(err, "get amenity")
	}
	return r, amenity.WithDefaults(), nil
}
