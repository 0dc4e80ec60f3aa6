// Package timerange models half-open time intervals [Start, End).
package timerange

import (
	"errors"
	"fmt"
	"time"
)

var ErrEmpty = errors.New("timerange: end must be after start")

type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns a range normalised to UTC. End must be strictly after Start.
func New(start, end time.Time) (Range, error) {
	if !end.After(start) {
		return Range{}, ErrEmpty
	}
	return Range{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two half-open ranges share any instant.
// Ranges that only touch at a boundary do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether t lies in [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) Duration() time.Duration { return r.End.Sub(r.Start) }

func (r Range) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Split cuts r into consecutive slots of width step. The final slot is
// truncated at r.End.
func (r Range) Split(step time.Duration) []Range {
	if step <= 0 {
		return []Range{r}
	}
	var out []Range
	for s := r.Start; s.Before(r.End); s = s.Add(step) {
		e := s.Add(step)
		if e.After(r.End) {
			e = r.End
		}
		out = append(out, Range{Start: s, End: e})
	}
	return out
}
