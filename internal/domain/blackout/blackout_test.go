package blackout

import (
	"testing"
	"time"

	"github.com/example/amenity-reservations/internal/domain/timerange"
)

func TestFilterMatch(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	b := Blackout{
		TenantID:      "t1",
		CondominiumID: "c1",
		AmenityID:     "pool",
		Window:        timerange.Range{Start: start, End: start.Add(2 * time.Hour)},
		Source:        SourceMaintenance,
	}
	wide := b
	wide.AmenityID = ""

	before := start.Add(-time.Hour)
	atEnd := start.Add(2 * time.Hour)

	cases := []struct {
		name string
		f    Filter
		b    Blackout
		want bool
	}{
		{"tenant", Filter{TenantID: "t1"}, b, true},
		{"other tenant", Filter{TenantID: "t2"}, b, false},
		{"amenity match", Filter{AmenityID: "pool"}, b, true},
		{"other amenity", Filter{AmenityID: "gym"}, b, false},
		{"amenity-wide applies", Filter{AmenityID: "gym"}, wide, true},
		{"source", Filter{Source: SourceAdmin}, b, false},
		{"to before start", Filter{To: &before}, b, false},
		{"from at end", Filter{From: &atEnd}, b, false},
		{"from before", Filter{From: &before}, b, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Match(tc.b); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMaintenanceReason(t *testing.T) {
	if got := MaintenanceReason("pump repair"); got != "Maintenance: pump repair" {
		t.Fatalf("got %q", got)
	}
	if got := MaintenanceReason("Maintenance: pump repair"); got != "Maintenance: pump repair" {
		t.Fatalf("prefix must not be doubled, got %q", got)
	}
}

func TestDeletable(t *testing.T) {
	for src, want := range map[Source]bool{SourceAdmin: true, SourceMaintenance: false, SourceSystem: false} {
		if got := (Blackout{Source: src}).Deletable(); got != want {
			t.Fatalf("%s deletable = %v", src, got)
		}
	}
}
