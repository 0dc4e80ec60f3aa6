package attendance

import (
	"fmt"
	"strings"
	"time"
)

type Method string

const (
	MethodQR        Method = "QR"
	MethodBiometric Method = "BIOMETRIC"
	MethodSMS       Method = "SMS"
	MethodManual    Method = "MANUAL"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodQR, MethodBiometric, MethodSMS, MethodManual:
		return m, nil
	}
	return "", fmt.Errorf("unknown check-in method %q", s)
}

// NeedsProof reports whether the method requires an externally validated payload.
func (m Method) NeedsProof() bool { return m != MethodManual }

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Record struct {
	TenantID      string
	ReservationID string
	UserID        string
	Method        Method
	// ProofHash is the salted hash of the validation payload. The raw payload is never stored.
	ProofHash  string
	Actor      string
	Location   *Location
	CheckInAt  *time.Time
	CheckOutAt *time.Time
	CreatedAt  time.Time
}

func (r Record) CheckedIn() bool  { return r.CheckInAt != nil }
func (r Record) CheckedOut() bool { return r.CheckOutAt != nil }

// Window is the closed interval [start-w, start+w] in which check-in is accepted.
type Window struct {
	Opens  time.Time
	Closes time.Time
}

func WindowAround(start time.Time, w time.Duration) Window {
	return Window{Opens: start.Add(-w), Closes: start.Add(w)}
}

// Position returns -1 before the window opens, 1 after it closes and 0 inside.
func (w Window) Position(now time.Time) int {
	switch {
	case now.Before(w.Opens):
		return -1
	case now.After(w.Closes):
		return 1
	}
	return 0
}

type View struct {
	ReservationID string     `json:"reservationId"`
	UserID        string     `json:"userId"`
	Method        Method     `json:"method"`
	CheckInAt     *time.Time `json:"checkInTime,omitempty"`
	CheckOutAt    *time.Time `json:"checkOutTime,omitempty"`
	Location      *Location  `json:"location,omitempty"`
}

func (r Record) View() View {
	return View{
		ReservationID: r.ReservationID,
		UserID:        r.UserID,
		Method:        r.Method,
		CheckInAt:     r.CheckInAt,
		CheckOutAt:    r.CheckOutAt,
		Location:      r.Location,
	}
}
