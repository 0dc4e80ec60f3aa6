// Package passes issues and verifies signed, encrypted check-in passes that
// are rendered as QR codes.
package passes

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
)

const passName = "checkin_pass"

var ErrNotSupported = errors.New("passes: only QR proofs can be verified locally")

type Manager struct {
	sc  *securecookie.SecureCookie
	now func() time.Time
}

func New(hashKey, blockKey []byte, now func() time.Time) *Manager {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int((7 * 24 * time.Hour).Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	if now == nil {
		now = time.Now
	}
	return &Manager{sc: sc, now: now}
}

var (
	_ ports.PassIssuer    = (*Manager)(nil)
	_ ports.ProofVerifier = (*Manager)(nil)
)

type claims struct {
	Tenant      string `json:"t"`
	Reservation string `json:"r"`
	User        string `json:"u"`
	Expires     int64  `json:"e"`
}

func (m *Manager) Issue(p ports.Pass) (string, error) {
	return m.sc.Encode(passName, claims{
		Tenant:      p.TenantID,
		Reservation: p.ReservationID,
		User:        p.UserID,
		Expires:     p.ExpiresAt.Unix(),
	})
}

// Verify accepts a pass only for the reservation, user and tenant it was
// issued for, and only before it expires.
func (m *Manager) Verify(_ context.Context, req ports.ProofRequest) (bool, error) {
	if req.Method != attendance.MethodQR {
		return false, ErrNotSupported
	}
	var c claims
	if err := m.sc.Decode(passName, req.Payload, &c); err != nil {
		return false, nil
	}
	if m.now().Unix() > c.Expires {
		return false, nil
	}
	return eq(c.Tenant, req.TenantID) && eq(c.Reservation, req.ReservationID) && eq(c.User, req.UserID), nil
}

func eq(a, b string) bool { return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1 }
