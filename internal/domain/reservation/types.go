package reservation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/domain/policy"
	"github.com/example/amenity-reservations/internal/domain/timerange"
)

type Reservation struct {
	TenantID      string
	ID            string
	CondominiumID string
	AmenityID     string
	UserID        string
	CreatedBy     string

	PartySize int
	Window    timerange.Range
	Status    Status

	ChargeAmount   decimal.Decimal
	ChargeCurrency string

	RequiresApproval bool
	ApprovedBy       string
	ApprovedAt       *time.Time
	CancelReason     string

	// Version is bumped on every update after creation and used for compare-and-swap.
	Version  int64
	Metadata Metadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata is persisted as a JSON document next to the reservation.
type Metadata struct {
	PolicyDecision *policy.Snapshot `json:"policyDecision,omitempty"`
	// IdempotencyKey is the client token that created the reservation; the
	// order saga reuses it so retries never double-charge.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	OrderPending   bool   `json:"orderPending,omitempty"`
}

func (r Reservation) Owes() bool { return r.ChargeAmount.IsPositive() }

// NeedsOrder is true for charged reservations still waiting for a finance order.
func (r Reservation) NeedsOrder() bool {
	return r.Status == StatusPendingUnpaid && r.Metadata.OrderID == ""
}

// Transition moves the reservation to next, bumping the version.
func (r *Reservation) Transition(next Status, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition reservation from %s to %s", r.Status, next)
	}
	r.Status = next
	r.Version++
	r.UpdatedAt = now
	return nil
}

func (r *Reservation) Cancel(reason string, now time.Time) error {
	if err := r.Transition(StatusCancelled, now); err != nil {
		return err
	}
	r.CancelReason = reason
	return nil
}

func (r *Reservation) Approve(approver string, now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("only pending reservations can be approved (status %s)", r.Status)
	}
	if err := r.Transition(StatusConfirmed, now); err != nil {
		return err
	}
	r.ApprovedBy = approver
	at := now
	r.ApprovedAt = &at
	return nil
}

// View is the client-facing JSON shape of a reservation. It is also the body
// stored in the idempotency ledger, so field order and names are stable.
type View struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenantId"`
	CondominiumID    string    `json:"condominiumId"`
	AmenityID        string    `json:"amenityId"`
	UserID           string    `json:"userId"`
	PartySize        int       `json:"partySize"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Status           Status    `json:"status"`
	ChargeAmount     string    `json:"chargeAmount"`
	ChargeCurrency   string    `json:"chargeCurrency"`
	RequiresApproval bool      `json:"requiresApproval"`
	OrderID          string    `json:"orderId,omitempty"`
	OrderPending     bool      `json:"orderPending,omitempty"`
	CancelReason     string    `json:"cancelReason,omitempty"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (r Reservation) View() View {
	return View{
		ID:               r.ID,
		TenantID:         r.TenantID,
		CondominiumID:    r.CondominiumID,
		AmenityID:        r.AmenityID,
		UserID:           r.UserID,
		PartySize:        r.PartySize,
		StartTime:        r.Window.Start,
		EndTime:          r.Window.End,
		Status:           r.Status,
		ChargeAmount:     r.ChargeAmount.StringFixed(2),
		ChargeCurrency:   r.ChargeCurrency,
		RequiresApproval: r.RequiresApproval,
		OrderID:          r.Metadata.OrderID,
		OrderPending:     r.Metadata.OrderPending,
		CancelReason:     r.CancelReason,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
	}
}
