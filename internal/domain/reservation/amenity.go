package reservation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/domain/timerange"
)

const (
	DefaultCheckInWindow = 15 * time.Minute
	DefaultMinDuration   = 30 * time.Minute
	DefaultMaxDuration   = 4 * time.Hour
	DefaultMinAdvance    = time.Hour
	DefaultMaxAdvance    = 90 * 24 * time.Hour
	DefaultCurrency      = "PEN"
)

type Amenity struct {
	TenantID      string
	ID            string
	CondominiumID string
	LocalCode     string
	Name          string
	Type          string

	Capacity    int
	MinDuration time.Duration
	MaxDuration time.Duration
	MinAdvance  time.Duration
	MaxAdvance  time.Duration

	CheckInRequired bool
	CheckInWindow   time.Duration

	ChargeAmount   decimal.Decimal
	ChargeCurrency string

	Rules  map[string]any
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithDefaults fills unset upper bounds with the standard amenity defaults.
// A zero minimum duration or advance is a configured "no minimum" and is
// kept; the DefaultMin* values apply where amenities are seeded.
func (a Amenity) WithDefaults() Amenity {
	if a.Capacity < 1 {
		a.Capacity = 1
	}
	if a.MinDuration < 0 {
		a.MinDuration = 0
	}
	if a.MaxDuration <= 0 {
		a.MaxDuration = DefaultMaxDuration
	}
	if a.MinAdvance < 0 {
		a.MinAdvance = 0
	}
	if a.MaxAdvance <= 0 {
		a.MaxAdvance = DefaultMaxAdvance
	}
	if a.CheckInWindow <= 0 {
		a.CheckInWindow = DefaultCheckInWindow
	}
	if a.ChargeCurrency == "" {
		a.ChargeCurrency = DefaultCurrency
	}
	return a
}

// Validate checks the amenity's own bounds are coherent.
func (a Amenity) Validate() error {
	switch {
	case a.TenantID == "" || a.ID == "":
		return fmt.Errorf("amenity: tenant and id are required")
	case a.Capacity < 1:
		return fmt.Errorf("amenity: capacity must be at least 1")
	case a.MinDuration > a.MaxDuration:
		return fmt.Errorf("amenity: min duration exceeds max duration")
	case a.MinAdvance > a.MaxAdvance:
		return fmt.Errorf("amenity: min advance exceeds max advance")
	case a.ChargeAmount.IsNegative():
		return fmt.Errorf("amenity: charge must not be negative")
	}
	return nil
}

// Resource is the policy resource identifier for this amenity.
func (a Amenity) Resource() string {
	code := a.LocalCode
	if code == "" {
		code = a.ID
	}
	return "amenity:" + code
}

// CheckWindow validates a requested window and party size against the
// amenity's bounds. The returned message is safe to show to clients.
func (a Amenity) CheckWindow(r timerange.Range, partySize int, now time.Time) error {
	if !r.Start.After(now) {
		return fmt.Errorf("start time must be in the future")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("end time must be after start time")
	}
	if d := r.Duration(); d < a.MinDuration || d > a.MaxDuration {
		return fmt.Errorf("duration must be between %s and %s", fmtDuration(a.MinDuration), fmtDuration(a.MaxDuration))
	}
	if adv := r.Start.Sub(now); adv < a.MinAdvance || adv > a.MaxAdvance {
		return fmt.Errorf("reservation must be made between %s and %s in advance", fmtDuration(a.MinAdvance), fmtDuration(a.MaxAdvance))
	}
	if partySize < 1 || partySize > a.Capacity {
		return fmt.Errorf("party size must be between 1 and %d", a.Capacity)
	}
	return nil
}

func fmtDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
}
