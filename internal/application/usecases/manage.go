package usecases

import (
	"context"
	"log/slog"
	"strings"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

// ManageReservations covers reads and status changes of existing reservations.
type ManageReservations struct {
	Store  ports.ReservationStore
	Saga   *OrderSaga
	Events ports.EventPublisher
	Clock  ports.Clock
	Log    *slog.Logger
}

// Get hides reservations of other users from non-admin callers.
func (u ManageReservations) Get(ctx context.Context, tenantID, id string, actor Actor) (reservation.Reservation, error) {
	r, err := u.Store.GetReservation(ctx, tenantID, id)
	if err != nil {
		return reservation.Reservation{}, serviceError(err, "get reservation")
	}
	if !actor.Admin && r.UserID != actor.Subject {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindNotFound, "reservation not found")
	}
	return r, nil
}

type CancelCommand struct {
	TenantID      string
	ReservationID string
	Actor         Actor
	Reason        string
}

func (u ManageReservations) Cancel(ctx context.Context, cmd CancelCommand) (reservation.Reservation, error) {
	r, err := u.Get(ctx, cmd.TenantID, cmd.ReservationID, cmd.Actor)
	if err != nil {
		return reservation.Reservation{}, err
	}
	wasUnpaid := r.Status == reservation.StatusPendingUnpaid
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "cancelled by " + cmd.Actor.Subject
	}
	now := clockOrSystem(u.Clock).Now()
	if err := r.Cancel(reason, now); err != nil {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindInvalidRequest, "%s", err.Error())
	}
	if err := u.Store.UpdateReservation(ctx, r); err != nil {
		return reservation.Reservation{}, serviceError(err, "cancel reservation")
	}
	if wasUnpaid {
		u.Saga.Cancel(ctx, r)
	}
	loggerOrDefault(u.Log).Info("reservation cancelled",
		slog.String("tenantId", r.TenantID),
		slog.String("reservationId", r.ID),
		slog.String("actor", cmd.Actor.Subject))
	publish(ctx, u.Events, u.Log, reservationEventOf(EventReservationCancelled, r, now))
	return r, nil
}

func (u ManageReservations) Approve(ctx context.Context, tenantID, id string, actor Actor) (reservation.Reservation, error) {
	if !actor.Admin {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindForbidden, "only administrators can approve reservations")
	}
	r, err := u.Store.GetReservation(ctx, tenantID, id)
	if err != nil {
		return reservation.Reservation{}, serviceError(err, "get reservation")
	}
	now := clockOrSystem(u.Clock).Now()
	if err := r.Approve(actor.Subject, now); err != nil {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindInvalidRequest, "%s", err.Error())
	}
	if err := u.Store.UpdateReservation(ctx, r); err != nil {
		return reservation.Reservation{}, serviceError(err, "approve reservation")
	}
	publish(ctx, u.Events, u.Log, reservationEventOf(EventReservationApproved, r, now))
	return r, nil
}

// ListMine returns the caller's reservations, oldest first.
func (u ManageReservations) ListMine(ctx context.Context, tenantID string, actor Actor, statuses []reservation.Status) ([]reservation.Reservation, error) {
	out, err := u.Store.ListReservations(ctx, ports.ReservationQuery{
		TenantID: tenantID,
		UserID:   actor.Subject,
		Statuses: statuses,
		Limit:    200,
	})
	if err != nil {
		return nil, serviceError(err, "list reservations")
	}
	return out, nil
}
