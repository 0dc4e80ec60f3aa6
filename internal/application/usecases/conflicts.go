package usecases

import (
	"context"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

// DetectConflicts rejects window if it overlaps an active reservation or a
// blackout on the amenity. Reservations are checked first so a slot that is
// both taken and blocked reports SlotTaken.
func DetectConflicts(ctx context.Context, src ports.ConflictSource, tenantID, amenityID string, window timerange.Range) error {
	active, err := src.ActiveReservations(ctx, tenantID, amenityID, window)
	if err != nil {
		return internaltypes.Wrap(internaltypes.KindUnavailable, err, "load reservations")
	}
	for _, r := range active {
		if r.Status.Active() && r.Window.Overlaps(window) {
			return internaltypes.Conflict(internaltypes.KindSlotTaken, r.Window, "time slot is already reserved")
		}
	}

	blackouts, err := src.OverlappingBlackouts(ctx, tenantID, amenityID, window)
	if err != nil {
		return internaltypes.Wrap(internaltypes.KindUnavailable, err, "load blackouts")
	}
	for _, b := range blackouts {
		if b.Applies(amenityID) && b.Window.Overlaps(window) {
			return internaltypes.Conflict(internaltypes.KindSlotBlocked, b.Window, "time slot conflicts with a blackout: %s", b.Reason)
		}
	}
	return nil
}
