package reservation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/domain/timerange"
)

func TestInitialStatus(t *testing.T) {
	cases := []struct {
		charge   string
		approval bool
		want     Status
	}{
		{"0", false, StatusConfirmed},
		{"0", true, StatusPending},
		{"15.00", false, StatusPendingUnpaid},
		{"15.00", true, StatusPendingUnpaid},
	}
	for _, tc := range cases {
		got := InitialStatus(decimal.RequireFromString(tc.charge), tc.approval)
		if got != tc.want {
			t.Fatalf("InitialStatus(%s, %v) = %s, want %s", tc.charge, tc.approval, got, tc.want)
		}
	}
}

func TestTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPendingUnpaid: {StatusConfirmed, StatusCancelled, StatusExpired},
		StatusPending:       {StatusConfirmed, StatusCancelled},
		StatusConfirmed:     {StatusCompleted, StatusCancelled, StatusNoShow},
	}
	all := []Status{StatusPendingUnpaid, StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusExpired, StatusNoShow}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusExpired, StatusNoShow} {
		if !s.Terminal() || s.Active() {
			t.Fatalf("%s must be terminal and inactive", s)
		}
	}
}

func TestTransitionBumpsVersion(t *testing.T) {
	r := Reservation{Status: StatusPending, Version: 1}
	now := time.Now()
	if err := r.Approve("admin-1", now); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if r.Status != StatusConfirmed || r.Version != 2 || r.ApprovedBy != "admin-1" {
		t.Fatalf("unexpected state after approve: %+v", r)
	}
	if err := r.Approve("admin-1", now); err == nil {
		t.Fatalf("approving a confirmed reservation must fail")
	}
	if err := r.Cancel("changed plans", now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Version != 3 || r.CancelReason != "changed plans" {
		t.Fatalf("unexpected state after cancel: %+v", r)
	}
	if err := r.Cancel("again", now); err == nil {
		t.Fatalf("cancelling a terminal reservation must fail")
	}
}

func TestCheckWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Amenity{Capacity: 10, MinDuration: DefaultMinDuration, MinAdvance: DefaultMinAdvance}.WithDefaults()
	win := func(startIn, length time.Duration) timerange.Range {
		return timerange.Range{Start: now.Add(startIn), End: now.Add(startIn + length)}
	}

	cases := []struct {
		name  string
		r     timerange.Range
		party int
		ok    bool
	}{
		{"valid", win(2*time.Hour, time.Hour), 4, true},
		{"past", win(-time.Hour, time.Hour), 1, false},
		{"too short", win(2*time.Hour, 10*time.Minute), 1, false},
		{"too long", win(2*time.Hour, 5*time.Hour), 1, false},
		{"too soon", win(30*time.Minute, time.Hour), 1, false},
		{"too far", win(91*24*time.Hour, time.Hour), 1, false},
		{"over capacity", win(2*time.Hour, time.Hour), 11, false},
		{"zero party", win(2*time.Hour, time.Hour), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := a.CheckWindow(tc.r, tc.party, now)
			if (err == nil) != tc.ok {
				t.Fatalf("CheckWindow err = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestZeroMinimumsAreKept(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Amenity{Capacity: 4}.WithDefaults()
	if a.MinAdvance != 0 || a.MinDuration != 0 {
		t.Fatalf("minimums overridden: advance=%s duration=%s", a.MinAdvance, a.MinDuration)
	}
	if a.MaxAdvance != DefaultMaxAdvance || a.MaxDuration != DefaultMaxDuration || a.CheckInWindow != DefaultCheckInWindow {
		t.Fatalf("upper bounds not defaulted: %+v", a)
	}
	r := timerange.Range{Start: now.Add(10 * time.Minute), End: now.Add(20 * time.Minute)}
	if err := a.CheckWindow(r, 1, now); err != nil {
		t.Fatalf("short notice booking rejected: %v", err)
	}
}

func TestSlots(t *testing.T) {
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	span := timerange.Range{Start: start, End: start.Add(4 * time.Hour)}
	busy := []timerange.Range{{Start: start.Add(time.Hour), End: start.Add(90 * time.Minute)}}
	blocked := []timerange.Range{{Start: start.Add(3 * time.Hour), End: start.Add(5 * time.Hour)}}

	slots := Slots(span, time.Hour, busy, blocked)
	want := []string{SlotFree, SlotReserved, SlotFree, SlotBlackout}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, s := range slots {
		if s.Reason != want[i] {
			t.Fatalf("slot %d reason = %s, want %s", i, s.Reason, want[i])
		}
	}
}
