package memory

import (
	"context"

	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

// tx stages writes and applies them atomically on commit. Amenity locks are
// held until the transaction ends either way.
type tx struct {
	s        *Store
	held     map[key]chan struct{}
	inserts  []reservation.Reservation
	metadata map[key]reservation.Metadata
	records  []idempotency.Record
}

func (t *tx) LockAmenity(ctx context.Context, tenantID, amenityID string) (reservation.Amenity, error) {
	k := key{tenantID, amenityID}
	if _, err := t.s.GetAmenity(ctx, tenantID, amenityID); err != nil {
		return reservation.Amenity{}, err
	}
	if _, ok := t.held[k]; !ok {
		ch := t.s.lockFor(k)
		select {
		case ch <- struct{}{}:
			t.held[k] = ch
		case <-ctx.Done():
			return reservation.Amenity{}, ctx.Err()
		}
	}
	return t.s.GetAmenity(ctx, tenantID, amenityID)
}

func (t *tx) FindIdempotency(ctx context.Context, k idempotency.Key) (*idempotency.Record, error) {
	for _, rec := range t.records {
		if rec.Key == k {
			rec := rec
			return &rec, nil
		}
	}
	return t.s.FindIdempotency(ctx, k)
}

func (t *tx) ActiveReservations(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]reservation.Reservation, error) {
	out, err := t.s.ActiveReservations(ctx, tenantID, amenityID, window)
	if err != nil {
		return nil, err
	}
	for _, r := range t.inserts {
		if r.TenantID == tenantID && r.AmenityID == amenityID && r.Status.Active() && r.Window.Overlaps(window) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tx) OverlappingBlackouts(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error) {
	return t.s.OverlappingBlackouts(ctx, tenantID, amenityID, window)
}

func (t *tx) InsertReservation(_ context.Context, r reservation.Reservation) error {
	t.inserts = append(t.inserts, r)
	return nil
}

func (t *tx) UpdateReservationMetadata(ctx context.Context, tenantID, id string, md reservation.Metadata) error {
	for i := range t.inserts {
		if t.inserts[i].TenantID == tenantID && t.inserts[i].ID == id {
			t.inserts[i].Metadata = md
			return nil
		}
	}
	if _, err := t.s.GetReservation(ctx, tenantID, id); err != nil {
		return err
	}
	t.metadata[key{tenantID, id}] = md
	return nil
}

func (t *tx) SaveIdempotency(ctx context.Context, rec idempotency.Record) error {
	existing, err := t.FindIdempotency(ctx, rec.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		return idempotency.ErrDuplicate
	}
	t.records = append(t.records, rec)
	return nil
}

// commit re-checks the constraints the database would enforce: unique
// ledger keys and no overlapping active reservations per amenity.
func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range t.records {
		if _, ok := s.ledger[rec.Key]; ok {
			return idempotency.ErrDuplicate
		}
	}
	for _, r := range t.inserts {
		if !r.Status.Active() {
			continue
		}
		if clash := s.activeLocked(r.TenantID, r.AmenityID, r.Window); len(clash) > 0 {
			return internaltypes.Conflict(internaltypes.KindSlotTaken, clash[0].Window, "time slot is already reserved")
		}
	}

	for _, r := range t.inserts {
		s.reservations[key{r.TenantID, r.ID}] = r
	}
	for k, md := range t.metadata {
		if r, ok := s.reservations[k]; ok {
			r.Metadata = md
			s.reservations[k] = r
		}
	}
	for _, rec := range t.records {
		s.ledger[rec.Key] = rec
	}
	return nil
}

func (t *tx) release() {
	for k, ch := range t.held {
		<-ch
		delete(t.held, k)
	}
}
