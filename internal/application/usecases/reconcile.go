package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const defaultBatchSize = 25

// Housekeeping holds the background transitions driven by the scheduler.
type Housekeeping struct {
	Store  ports.ReservationStore
	Saga   *OrderSaga
	Events ports.EventPublisher
	Clock  ports.Clock
	Log    *slog.Logger
	// OrderWindow is how long an unpaid reservation holds its slot.
	OrderWindow time.Duration
	BatchSize   int
}

func (u Housekeeping) window() time.Duration {
	if u.OrderWindow > 0 {
		return u.OrderWindow
	}
	return defaultOrderExpiresAfter * time.Minute
}

func (u Housekeeping) batch() int {
	if u.BatchSize > 0 {
		return u.BatchSize
	}
	return defaultBatchSize
}

// ExpireUnpaid releases slots held by reservations whose payment window elapsed.
func (u Housekeeping) ExpireUnpaid(ctx context.Context) (int, error) {
	now := clockOrSystem(u.Clock).Now()
	cutoff := now.Add(-u.window())
	due, err := u.Store.ListReservations(ctx, ports.ReservationQuery{
		Statuses:      []reservation.Status{reservation.StatusPendingUnpaid},
		CreatedBefore: &cutoff,
		Limit:         u.batch(),
	})
	if err != nil {
		return 0, serviceError(err, "list unpaid reservations")
	}

	expired := 0
	for _, r := range due {
		if err := r.Transition(reservation.StatusExpired, now); err != nil {
			continue
		}
		if err := u.Store.UpdateReservation(ctx, r); err != nil {
			if errors.Is(err, internaltypes.ErrVersionConflict) {
				// Paid or cancelled concurrently.
				continue
			}
			return expired, serviceError(err, "expire reservation")
		}
		expired++
		u.Saga.Cancel(ctx, r)
		publish(ctx, u.Events, u.Log, reservationEventOf(EventReservationExpired, r, now))
	}
	if expired > 0 {
		loggerOrDefault(u.Log).Info("expired unpaid reservations", slog.Int("count", expired))
	}
	return expired, nil
}

// ReconcileOrders retries the order saga for unpaid reservations that have
// no order yet. The original idempotency key is reused so the finance
// service deduplicates.
func (u Housekeeping) ReconcileOrders(ctx context.Context) (int, error) {
	now := clockOrSystem(u.Clock).Now()
	since := now.Add(-u.window())
	pending, err := u.Store.ListReservations(ctx, ports.ReservationQuery{
		Statuses:     []reservation.Status{reservation.StatusPendingUnpaid},
		CreatedAfter: &since,
		MissingOrder: true,
		Limit:        u.batch(),
	})
	if err != nil {
		return 0, serviceError(err, "list reservations awaiting orders")
	}

	reconciled := 0
	for _, r := range pending {
		if !r.NeedsOrder() {
			continue
		}
		name := r.AmenityID
		if a, err := u.Store.GetAmenity(ctx, r.TenantID, r.AmenityID); err == nil {
			name = a.Name
		}
		order := u.Saga.Start(ctx, r, name)
		if order == nil {
			continue
		}
		r.Metadata = u.Saga.Record(r.Metadata, order)
		r.Version++
		r.UpdatedAt = now
		if err := u.Store.UpdateReservation(ctx, r); err != nil {
			if errors.Is(err, internaltypes.ErrVersionConflict) {
				continue
			}
			return reconciled, serviceError(err, "record order")
		}
		reconciled++
	}
	if reconciled > 0 {
		loggerOrDefault(u.Log).Info("reconciled reservation orders", slog.Int("count", reconciled))
	}
	return reconciled, nil
}
