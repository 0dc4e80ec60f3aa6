package passes

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := New(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32), clock)

	token, err := m.Issue(ports.Pass{TenantID: "t1", ReservationID: "r1", UserID: "u1", ExpiresAt: now.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := ports.ProofRequest{Method: attendance.MethodQR, Payload: token, TenantID: "t1", ReservationID: "r1", UserID: "u1"}
	cases := []struct {
		name string
		mut  func(*ports.ProofRequest)
		want bool
	}{
		{"valid", func(*ports.ProofRequest) {}, true},
		{"other reservation", func(r *ports.ProofRequest) { r.ReservationID = "r2" }, false},
		{"other user", func(r *ports.ProofRequest) { r.UserID = "u2" }, false},
		{"other tenant", func(r *ports.ProofRequest) { r.TenantID = "t2" }, false},
		{"tampered", func(r *ports.ProofRequest) { r.Payload = token[:len(token)-2] + "xx" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := req
			tc.mut(&r)
			ok, err := m.Verify(context.Background(), r)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("valid=%v want %v", ok, tc.want)
			}
		})
	}

	now = now.Add(31 * time.Minute)
	if ok, _ := m.Verify(context.Background(), req); ok {
		t.Fatalf("expired pass must be rejected")
	}
}

func TestVerifyRejectsOtherMethods(t *testing.T) {
	m := New(securecookie.GenerateRandomKey(32), nil, nil)
	if _, err := m.Verify(context.Background(), ports.ProofRequest{Method: attendance.MethodSMS, Payload: "1"}); err != ErrNotSupported {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
