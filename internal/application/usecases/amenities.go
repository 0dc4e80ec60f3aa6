package usecases

import (
	"context"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

// Amenities seeds amenity definitions. The reservation flow only reads them.
type Amenities struct {
	Store ports.AmenityStore
	Clock ports.Clock
}

func (u Amenities) Upsert(ctx context.Context, a reservation.Amenity) (reservation.Amenity, error) {
	a = a.WithDefaults()
	if err := a.Validate(); err != nil {
		return reservation.Amenity{}, internaltypes.New(internaltypes.KindInvalidRequest, "%s", err.Error())
	}
	now := clockOrSystem(u.Clock).Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if err := u.Store.UpsertAmenity(ctx, a); err != nil {
		return reservation.Amenity{}, serviceError(err, "upsert amenity")
	}
	return a, nil
}
