// Package memory is a process-local store with the same locking and
// constraint semantics as the Postgres store. It backs tests and
// single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

type key struct{ tenant, id string }

type Store struct {
	mu           sync.RWMutex
	amenities    map[key]reservation.Amenity
	reservations map[key]reservation.Reservation
	blackouts    map[key]blackout.Blackout
	attendance   map[key]attendance.Record
	ledger       map[idempotency.Key]idempotency.Record

	locksMu sync.Mutex
	// one-slot semaphores standing in for row locks on amenities
	locks map[key]chan struct{}
}

func New() *Store {
	return &Store{
		amenities:    map[key]reservation.Amenity{},
		reservations: map[key]reservation.Reservation{},
		blackouts:    map[key]blackout.Blackout{},
		attendance:   map[key]attendance.Record{},
		ledger:       map[idempotency.Key]idempotency.Record{},
		locks:        map[key]chan struct{}{},
	}
}

var (
	_ ports.ReservationStore = (*Store)(nil)
	_ ports.AmenityStore     = (*Store)(nil)
	_ ports.BlackoutStore    = (*Store)(nil)
	_ ports.AttendanceStore  = (*Store)(nil)
)

func notFound(what string) error {
	return internaltypes.New(internaltypes.KindNotFound, "%s not found", what)
}

func (s *Store) lockFor(k key) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[k]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[k] = ch
	}
	return ch
}

// --- amenities ---

func (s *Store) UpsertAmenity(_ context.Context, a reservation.Amenity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{a.TenantID, a.ID}
	if cur, ok := s.amenities[k]; ok {
		a.CreatedAt = cur.CreatedAt
	}
	s.amenities[k] = a
	return nil
}

func (s *Store) GetAmenity(_ context.Context, tenantID, amenityID string) (reservation.Amenity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.amenities[key{tenantID, amenityID}]
	if !ok {
		return reservation.Amenity{}, notFound("amenity")
	}
	return a, nil
}

// --- reservations ---

func (s *Store) FindIdempotency(_ context.Context, k idempotency.Key) (*idempotency.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.ledger[k]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) GetReservation(_ context.Context, tenantID, id string) (reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[key{tenantID, id}]
	if !ok {
		return reservation.Reservation{}, notFound("reservation")
	}
	return r, nil
}

func (s *Store) ActiveReservations(_ context.Context, tenantID, amenityID string, window timerange.Range) ([]reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(tenantID, amenityID, window), nil
}

func (s *Store) activeLocked(tenantID, amenityID string, window timerange.Range) []reservation.Reservation {
	var out []reservation.Reservation
	for _, r := range s.reservations {
		if r.TenantID == tenantID && r.AmenityID == amenityID && r.Status.Active() && r.Window.Overlaps(window) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out
}

func (s *Store) ListReservations(_ context.Context, q ports.ReservationQuery) ([]reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reservation.Reservation
	for _, r := range s.reservations {
		if matches(q, r) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(q ports.ReservationQuery, r reservation.Reservation) bool {
	if q.TenantID != "" && r.TenantID != q.TenantID {
		return false
	}
	if q.AmenityID != "" && r.AmenityID != q.AmenityID {
		return false
	}
	if q.UserID != "" && r.UserID != q.UserID {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if r.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Overlapping != nil && !r.Window.Overlaps(*q.Overlapping) {
		return false
	}
	if q.CreatedBefore != nil && !r.CreatedAt.Before(*q.CreatedBefore) {
		return false
	}
	if q.CreatedAfter != nil && !r.CreatedAt.After(*q.CreatedAfter) {
		return false
	}
	if q.MissingOrder && r.Metadata.OrderID != "" {
		return false
	}
	return true
}

func sortReservations(rs []reservation.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

func (s *Store) UpdateReservation(_ context.Context, r reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{r.TenantID, r.ID}
	cur, ok := s.reservations[k]
	if !ok {
		return notFound("reservation")
	}
	if cur.Version != r.Version-1 {
		return internaltypes.New(internaltypes.KindVersionConflict, "reservation was modified concurrently")
	}
	s.reservations[k] = r
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.ReservationTx) error) error {
	t := &tx{s: s, held: map[key]chan struct{}{}, metadata: map[key]reservation.Metadata{}}
	defer t.release()
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

// --- blackouts ---

func (s *Store) CreateBlackout(_ context.Context, b blackout.Blackout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blackouts[key{b.TenantID, b.ID}] = b
	return nil
}

func (s *Store) GetBlackout(_ context.Context, tenantID, id string) (blackout.Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blackouts[key{tenantID, id}]
	if !ok {
		return blackout.Blackout{}, notFound("blackout")
	}
	return b, nil
}

func (s *Store) ListBlackouts(_ context.Context, f blackout.Filter) ([]blackout.Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []blackout.Blackout
	for _, b := range s.blackouts {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	sortBlackouts(out)
	return out, nil
}

func (s *Store) DeleteBlackout(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tenantID, id}
	if _, ok := s.blackouts[k]; !ok {
		return notFound("blackout")
	}
	delete(s.blackouts, k)
	return nil
}

func (s *Store) DeleteBlackoutsByWorkOrder(_ context.Context, tenantID, workOrderID string) ([]blackout.Blackout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []blackout.Blackout
	for k, b := range s.blackouts {
		if b.TenantID == tenantID && b.Source == blackout.SourceMaintenance && b.Metadata.WorkOrderID == workOrderID {
			removed = append(removed, b)
			delete(s.blackouts, k)
		}
	}
	sortBlackouts(removed)
	return removed, nil
}

func (s *Store) OverlappingBlackouts(_ context.Context, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []blackout.Blackout
	for _, b := range s.blackouts {
		if b.TenantID == tenantID && b.Applies(amenityID) && b.Window.Overlaps(window) {
			out = append(out, b)
		}
	}
	sortBlackouts(out)
	return out, nil
}

func sortBlackouts(bs []blackout.Blackout) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].Window.Start.Equal(bs[j].Window.Start) {
			return bs[i].Window.Start.Before(bs[j].Window.Start)
		}
		return bs[i].ID < bs[j].ID
	})
}

// --- attendance ---

func (s *Store) GetAttendance(_ context.Context, tenantID, reservationID string) (attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attendance[key{tenantID, reservationID}]
	if !ok {
		return attendance.Record{}, notFound("attendance")
	}
	return rec, nil
}

func (s *Store) SaveCheckIn(_ context.Context, rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{rec.TenantID, rec.ReservationID}
	if _, ok := s.attendance[k]; ok {
		return internaltypes.New(internaltypes.KindAlreadyCheckedIn, "already checked in")
	}
	s.attendance[k] = rec
	return nil
}

func (s *Store) SaveCheckOut(_ context.Context, tenantID, reservationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tenantID, reservationID}
	rec, ok := s.attendance[k]
	if !ok || rec.CheckInAt == nil {
		return internaltypes.New(internaltypes.KindNotCheckedIn, "must check in before checking out")
	}
	if rec.CheckOutAt != nil {
		return internaltypes.New(internaltypes.KindAlreadyCheckedOut, "already checked out")
	}
	rec.CheckOutAt = &at
	s.attendance[k] = rec
	return nil
}
