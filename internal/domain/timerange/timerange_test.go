package timerange

import (
	"errors"
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"identical", Range{at(0, 0), at(1, 0)}, Range{at(0, 0), at(1, 0)}, true},
		{"partial", Range{at(0, 0), at(1, 0)}, Range{at(0, 30), at(1, 30)}, true},
		{"contained", Range{at(0, 0), at(4, 0)}, Range{at(1, 0), at(2, 0)}, true},
		{"touching end", Range{at(0, 0), at(1, 0)}, Range{at(1, 0), at(2, 0)}, false},
		{"touching start", Range{at(1, 0), at(2, 0)}, Range{at(0, 0), at(1, 0)}, false},
		{"disjoint", Range{at(0, 0), at(1, 0)}, Range{at(3, 0), at(4, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("%s.Overlaps(%s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("overlap must be symmetric: %s.Overlaps(%s) = %v", tc.b, tc.a, got)
			}
		})
	}
}

func TestNewRejectsEmptyRange(t *testing.T) {
	now := time.Now()
	if _, err := New(now, now); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for zero-length range, got %v", err)
	}
	if _, err := New(now, now.Add(-time.Minute)); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for inverted range, got %v", err)
	}
	r, err := New(now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Start.Location() != time.UTC {
		t.Fatalf("expected UTC normalisation, got %v", r.Start.Location())
	}
}

func TestSplit(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	r := Range{Start: start, End: start.Add(150 * time.Minute)}
	slots := r.Split(time.Hour)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if got := slots[2].Duration(); got != 30*time.Minute {
		t.Fatalf("expected truncated final slot of 30m, got %v", got)
	}
	if !slots[0].Contains(start) || slots[0].Contains(start.Add(time.Hour)) {
		t.Fatalf("slot containment must be half-open")
	}
}
