package usecases

import (
	"context"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const (
	DefaultSlotWidth    = time.Hour
	minSlotWidth        = 15 * time.Minute
	maxAvailabilitySpan = 31 * 24 * time.Hour
)

type AvailabilityQuery struct {
	TenantID         string
	AmenityID        string
	From             time.Time
	To               time.Time
	SlotWidth        time.Duration
	IncludeBlackouts bool
}

type Availability struct {
	Store ports.ReservationStore
}

// Execute returns fixed-width slots over [From, To) with their occupancy.
// Blackouts only mark slots when IncludeBlackouts is set.
func (u Availability) Execute(ctx context.Context, q AvailabilityQuery) ([]reservation.Slot, error) {
	span, err := timerange.New(q.From, q.To)
	if err != nil {
		return nil, internaltypes.New(internaltypes.KindInvalidRequest, "'to' must be after 'from'")
	}
	if span.Duration() > maxAvailabilitySpan {
		return nil, internaltypes.New(internaltypes.KindInvalidRequest, "availability range is limited to 31 days")
	}
	width := q.SlotWidth
	if width == 0 {
		width = DefaultSlotWidth
	}
	if width < minSlotWidth {
		return nil, internaltypes.New(internaltypes.KindInvalidRequest, "slot width must be at least 15 minutes")
	}

	if _, err := u.Store.GetAmenity(ctx, q.TenantID, q.AmenityID); err != nil {
		return nil, serviceError(err, "get amenity")
	}
	active, err := u.Store.ActiveReservations(ctx, q.TenantID, q.AmenityID, span)
	if err != nil {
		return nil, serviceError(err, "load reservations")
	}
	busy := make([]timerange.Range, 0, len(active))
	for _, r := range active {
		busy = append(busy, r.Window)
	}

	var blocked []timerange.Range
	if q.IncludeBlackouts {
		bs, err := u.Store.OverlappingBlackouts(ctx, q.TenantID, q.AmenityID, span)
		if err != nil {
			return nil, serviceError(err, "load blackouts")
		}
		for _, b := range bs {
			blocked = append(blocked, b.Window)
		}
	}
	return reservation.Slots(span, width, busy, blocked), nil
}
