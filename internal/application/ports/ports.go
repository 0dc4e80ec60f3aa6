// Package ports declares the collaborators the use cases depend on.
package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/policy"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ConflictSource answers overlap queries for one amenity. Inside a
// transaction it sees that transaction's own writes.
type ConflictSource interface {
	ActiveReservations(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]reservation.Reservation, error)
	OverlappingBlackouts(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error)
}

// ReservationTx is a unit of work holding the amenity lock once LockAmenity returns.
type ReservationTx interface {
	ConflictSource
	LockAmenity(ctx context.Context, tenantID, amenityID string) (reservation.Amenity, error)
	FindIdempotency(ctx context.Context, key idempotency.Key) (*idempotency.Record, error)
	InsertReservation(ctx context.Context, r reservation.Reservation) error
	UpdateReservationMetadata(ctx context.Context, tenantID, id string, md reservation.Metadata) error
	// SaveIdempotency returns idempotency.ErrDuplicate if the key already exists.
	SaveIdempotency(ctx context.Context, rec idempotency.Record) error
}

type ReservationQuery struct {
	// TenantID empty means every tenant (background jobs only).
	TenantID      string
	AmenityID     string
	UserID        string
	Statuses      []reservation.Status
	Overlapping   *timerange.Range
	CreatedBefore *time.Time
	CreatedAfter  *time.Time
	// MissingOrder keeps only reservations without a finance order id.
	MissingOrder bool
	Limit        int
}

type ReservationStore interface {
	ConflictSource
	FindIdempotency(ctx context.Context, key idempotency.Key) (*idempotency.Record, error)
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx ReservationTx) error) error
	GetAmenity(ctx context.Context, tenantID, amenityID string) (reservation.Amenity, error)
	GetReservation(ctx context.Context, tenantID, id string) (reservation.Reservation, error)
	ListReservations(ctx context.Context, q ReservationQuery) ([]reservation.Reservation, error)
	// UpdateReservation persists r if the stored version equals r.Version-1;
	// otherwise it returns a VersionConflict error.
	UpdateReservation(ctx context.Context, r reservation.Reservation) error
}

type AmenityStore interface {
	UpsertAmenity(ctx context.Context, a reservation.Amenity) error
	GetAmenity(ctx context.Context, tenantID, amenityID string) (reservation.Amenity, error)
}

type BlackoutStore interface {
	CreateBlackout(ctx context.Context, b blackout.Blackout) error
	GetBlackout(ctx context.Context, tenantID, id string) (blackout.Blackout, error)
	ListBlackouts(ctx context.Context, f blackout.Filter) ([]blackout.Blackout, error)
	DeleteBlackout(ctx context.Context, tenantID, id string) error
	DeleteBlackoutsByWorkOrder(ctx context.Context, tenantID, workOrderID string) ([]blackout.Blackout, error)
	OverlappingBlackouts(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error)
}

type AttendanceStore interface {
	GetAttendance(ctx context.Context, tenantID, reservationID string) (attendance.Record, error)
	// SaveCheckIn returns an AlreadyCheckedIn error if a record exists.
	SaveCheckIn(ctx context.Context, rec attendance.Record) error
	// SaveCheckOut returns AlreadyCheckedOut if a check-out is already recorded.
	SaveCheckOut(ctx context.Context, tenantID, reservationID string, at time.Time) error
}

// PolicyEvaluator always yields a decision; unavailability is absorbed by a fallback.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, req policy.Request) policy.Decision
}

type OrderRequest struct {
	TenantID          string
	CondominiumID     string
	UserID            string
	Type              string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	ReferenceID       string
	ReferenceType     string
	ExpirationMinutes int
}

type Order struct {
	ID        string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	ExpiresAt *time.Time
}

type OrderService interface {
	CreateOrder(ctx context.Context, req OrderRequest, idempotencyKey string) (*Order, error)
	CancelOrder(ctx context.Context, tenantID, orderID string) error
}

type ProofRequest struct {
	Method        attendance.Method
	Payload       string
	TenantID      string
	ReservationID string
	UserID        string
}

type ProofVerifier interface {
	// Verify returns false for a rejected proof and an error when the
	// verifier could not be reached.
	Verify(ctx context.Context, req ProofRequest) (bool, error)
}

type Pass struct {
	TenantID      string
	ReservationID string
	UserID        string
	ExpiresAt     time.Time
}

type PassIssuer interface {
	Issue(p Pass) (string, error)
}

type Hasher interface {
	Hash(payload string) string
}

type Event struct {
	ID          string
	Type        string
	TenantID    string
	AggregateID string
	OccurredAt  time.Time
	Data        any
}

type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
