package reservation

import (
	"time"

	"github.com/example/amenity-reservations/internal/domain/timerange"
)

const (
	SlotFree     = "available"
	SlotReserved = "reserved"
	SlotBlackout = "blackout"
)

type Slot struct {
	Window    timerange.Range `json:"window"`
	Available bool            `json:"available"`
	Reason    string          `json:"reason"`
}

// Slots cuts span into fixed-width slots and marks each one taken if any
// active reservation or blackout overlaps it. Reservations win over blackouts
// when both apply.
func Slots(span timerange.Range, step time.Duration, busy []timerange.Range, blocked []timerange.Range) []Slot {
	parts := span.Split(step)
	out := make([]Slot, 0, len(parts))
	for _, p := range parts {
		s := Slot{Window: p, Available: true, Reason: SlotFree}
		if overlapsAny(p, busy) {
			s.Available, s.Reason = false, SlotReserved
		} else if overlapsAny(p, blocked) {
			s.Available, s.Reason = false, SlotBlackout
		}
		out = append(out, s)
	}
	return out
}

func overlapsAny(r timerange.Range, others []timerange.Range) bool {
	for _, o := range others {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}
