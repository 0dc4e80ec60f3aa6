package blackout

import (
	"strings"
	"time"

	"github.com/example/amenity-reservations/internal/domain/timerange"
)

type Source string

const (
	SourceMaintenance Source = "MAINTENANCE"
	SourceAdmin       Source = "ADMIN"
	SourceSystem      Source = "SYSTEM"
)

const maintenancePrefix = "Maintenance: "

func ParseSource(s string) (Source, bool) {
	switch src := Source(strings.ToUpper(strings.TrimSpace(s))); src {
	case SourceMaintenance, SourceAdmin, SourceSystem:
		return src, true
	}
	return "", false
}

type Blackout struct {
	TenantID      string
	ID            string
	CondominiumID string
	// AmenityID is empty for blackouts covering every amenity of the condominium.
	AmenityID string
	Window    timerange.Range
	Reason    string
	Source    Source
	Metadata  Metadata
	CreatedAt time.Time
}

type Metadata struct {
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	WorkOrderID string    `json:"workOrderId,omitempty"`
}

// Applies reports whether the blackout covers amenityID.
func (b Blackout) Applies(amenityID string) bool {
	return b.AmenityID == "" || b.AmenityID == amenityID
}

// Deletable is true only for blackouts created by an administrator.
func (b Blackout) Deletable() bool { return b.Source == SourceAdmin }

func MaintenanceReason(reason string) string {
	if strings.HasPrefix(reason, maintenancePrefix) {
		return reason
	}
	return maintenancePrefix + reason
}

type Filter struct {
	TenantID      string
	CondominiumID string
	// AmenityID also matches amenity-wide blackouts.
	AmenityID string
	Source    Source
	From      *time.Time
	To        *time.Time
}

func (f Filter) Match(b Blackout) bool {
	if f.TenantID != "" && b.TenantID != f.TenantID {
		return false
	}
	if f.CondominiumID != "" && b.CondominiumID != f.CondominiumID {
		return false
	}
	if f.AmenityID != "" && !b.Applies(f.AmenityID) {
		return false
	}
	if f.Source != "" && b.Source != f.Source {
		return false
	}
	if f.From != nil && !b.Window.End.After(*f.From) {
		return false
	}
	if f.To != nil && !b.Window.Start.Before(*f.To) {
		return false
	}
	return true
}

// View is the JSON shape returned to clients.
type View struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	CondominiumID string    `json:"condominiumId"`
	AmenityID     string    `json:"amenityId,omitempty"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Reason        string    `json:"reason"`
	Source        Source    `json:"source"`
	Metadata      Metadata  `json:"metadata"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (b Blackout) View() View {
	return View{
		ID:            b.ID,
		TenantID:      b.TenantID,
		CondominiumID: b.CondominiumID,
		AmenityID:     b.AmenityID,
		StartTime:     b.Window.Start,
		EndTime:       b.Window.End,
		Reason:        b.Reason,
		Source:        b.Source,
		Metadata:      b.Metadata,
		CreatedAt:     b.CreatedAt,
	}
}
