package policy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Effect string

const (
	Permit        Effect = "PERMIT"
	Deny          Effect = "DENY"
	Indeterminate Effect = "INDETERMINATE"
)

const (
	ActionCreateReservation = "reservation:create"

	ObligationRequiresApproval = "REQUIRES_APPROVAL"
	ObligationFeeRequired      = "FEE_REQUIRED"
	ObligationLogFallback      = "LOG_FALLBACK_DECISION"
)

// Context is the typed evaluation context sent alongside a request.
type Context struct {
	AmenityID   string
	AmenityType string
	Start       time.Time
	End         time.Time
	PartySize   int
	Capacity    int
	// MaxAdvance is the amenity's booking horizon; zero means unknown.
	MaxAdvance time.Duration
}

type Request struct {
	TenantID      string
	CondominiumID string
	Action        string
	Resource      string
	Subject       string
	Context       Context
}

type Obligation struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type Decision struct {
	Effect      Effect
	Obligations []Obligation
	Reason      string
	PolicyID    string
	Version     string
	// Fallback marks decisions produced locally while the policy service was unreachable.
	Fallback bool
}

func (d Decision) Denied() bool { return d.Effect == Deny }

func (d Decision) Has(obligation string) bool {
	for _, o := range d.Obligations {
		if o.Type == obligation {
			return true
		}
	}
	return false
}

// RequiresApproval is true when the policy demands manual approval. An
// indeterminate verdict is never auto-confirmed.
func (d Decision) RequiresApproval() bool {
	return d.Effect == Indeterminate || d.Has(ObligationRequiresApproval)
}

// FeeOverride returns the charge carried by a FEE_REQUIRED obligation.
// Negative amounts are ignored.
func (d Decision) FeeOverride() (decimal.Decimal, bool) {
	for _, o := range d.Obligations {
		if o.Type != ObligationFeeRequired || len(o.Value) == 0 {
			continue
		}
		var amount decimal.Decimal
		if err := json.Unmarshal(o.Value, &amount); err != nil || amount.IsNegative() {
			continue
		}
		return amount, true
	}
	return decimal.Zero, false
}

// Snapshot is the part of a decision persisted with a reservation.
type Snapshot struct {
	Decision    Effect       `json:"decision"`
	PolicyID    string       `json:"policyId,omitempty"`
	Version     string       `json:"version,omitempty"`
	Obligations []Obligation `json:"obligations,omitempty"`
	Fallback    bool         `json:"fallback,omitempty"`
}

func (d Decision) Snapshot() *Snapshot {
	return &Snapshot{
		Decision:    d.Effect,
		PolicyID:    d.PolicyID,
		Version:     d.Version,
		Obligations: d.Obligations,
		Fallback:    d.Fallback,
	}
}
