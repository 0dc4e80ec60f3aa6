package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/policy"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

type stubVerifier struct {
	ok   bool
	err  error
	last ports.ProofRequest
}

func (v *stubVerifier) Verify(_ context.Context, req ports.ProofRequest) (bool, error) {
	v.last = req
	return v.ok, v.err
}

type prefixHasher struct{}

func (prefixHasher) Hash(p string) string { return "h:" + p }

type stubPasses struct{ issued []ports.Pass }

func (s *stubPasses) Issue(p ports.Pass) (string, error) {
	s.issued = append(s.issued, p)
	return "pass-token", nil
}

func (h *harness) attendance(v ports.ProofVerifier) Attendance {
	return Attendance{
		Reservations: h.store,
		Store:        h.store,
		Proofs:       v,
		Hasher:       prefixHasher{},
		Events:       h.events,
		Clock:        h.clock,
		Log:          quietLogger(),
	}
}

func checkIn(r reservation.Reservation, method attendance.Method, payload string) CheckInCommand {
	return CheckInCommand{
		TenantID:      r.TenantID,
		ReservationID: r.ID,
		UserID:        r.UserID,
		Actor:         Actor{Subject: r.UserID},
		Method:        method,
		Payload:       payload,
	}
}

func TestCheckInScenarioWindow(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	r := mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))
	v := &stubVerifier{ok: true}
	uc := h.attendance(v)

	h.clock.Set(r.Window.Start.Add(-20 * time.Minute))
	_, err := uc.CheckIn(context.Background(), checkIn(r, attendance.MethodQR, "qr-payload"))
	expectKind(t, err, internaltypes.KindWindowNotOpen)

	h.clock.Set(r.Window.Start.Add(-5 * time.Minute))
	rec, err := uc.CheckIn(context.Background(), checkIn(r, attendance.MethodQR, "qr-payload"))
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if rec.ProofHash != "h:qr-payload" || rec.CheckInAt == nil {
		t.Fatalf("record = %+v", rec)
	}
	if v.last.Method != attendance.MethodQR || v.last.ReservationID != r.ID {
		t.Fatalf("verifier saw %+v", v.last)
	}

	_, err = uc.CheckIn(context.Background(), checkIn(r, attendance.MethodQR, "qr-payload"))
	expectKind(t, err, internaltypes.KindAlreadyCheckedIn)
	if n := h.events.count(EventCheckedIn); n != 1 {
		t.Fatalf("checked-in events = %d", n)
	}
}

func TestCheckInWindowClosed(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", func(a *reservation.Amenity) { a.CheckInWindow = 10 * time.Minute })
	r := mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))
	h.clock.Set(r.Window.Start.Add(11 * time.Minute))
	_, err := h.attendance(&stubVerifier{ok: true}).CheckIn(context.Background(), checkIn(r, attendance.MethodSMS, "123456"))
	expectKind(t, err, internaltypes.KindWindowClosed)

	// both bounds are inclusive
	h.clock.Set(r.Window.Start.Add(10 * time.Minute))
	if _, err := h.attendance(&stubVerifier{ok: true}).CheckIn(context.Background(), checkIn(r, attendance.MethodSMS, "123456")); err != nil {
		t.Fatalf("check-in at closing edge: %v", err)
	}
}

func TestCheckInMethods(t *testing.T) {
	cases := []struct {
		name      string
		method    attendance.Method
		payload   string
		admin     bool
		biometric bool
		verifier  *stubVerifier
		kind      internaltypes.Kind
	}{
		{"rejected proof", attendance.MethodQR, "bad", false, false, &stubVerifier{ok: false}, internaltypes.KindInvalidRequest},
		{"verifier down", attendance.MethodSMS, "1", false, false, &stubVerifier{err: errors.New("timeout")}, internaltypes.KindUpstreamUnavailable},
		{"missing payload", attendance.MethodQR, "", false, false, &stubVerifier{ok: true}, internaltypes.KindInvalidRequest},
		{"biometric disabled", attendance.MethodBiometric, "face", false, false, &stubVerifier{ok: true}, internaltypes.KindInvalidRequest},
		{"biometric enabled", attendance.MethodBiometric, "face", false, true, &stubVerifier{ok: true}, ""},
		{"manual by member", attendance.MethodManual, "", false, false, &stubVerifier{ok: true}, internaltypes.KindForbidden},
		{"manual by admin", attendance.MethodManual, "", true, false, &stubVerifier{ok: false}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.amenity(t, "a1", nil)
			r := mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))
			h.clock.Set(r.Window.Start)
			uc := h.attendance(tc.verifier)
			uc.BiometricEnabled = tc.biometric
			cmd := checkIn(r, tc.method, tc.payload)
			if tc.admin {
				cmd.Actor = Actor{Subject: "admin-1", Admin: true}
			}
			rec, err := uc.CheckIn(context.Background(), cmd)
			if tc.kind != "" {
				expectKind(t, err, tc.kind)
				return
			}
			if err != nil {
				t.Fatalf("check-in: %v", err)
			}
			if tc.admin && rec.Actor != "admin-1" {
				t.Fatalf("actor = %q", rec.Actor)
			}
		})
	}
}

func TestCheckInRequiresConfirmedOwnedReservation(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	h.policy.decision = policy.Decision{Effect: policy.Indeterminate}
	pending := mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))
	h.clock.Set(pending.Window.Start)
	uc := h.attendance(&stubVerifier{ok: true})

	_, err := uc.CheckIn(context.Background(), checkIn(pending, attendance.MethodQR, "p"))
	expectKind(t, err, internaltypes.KindInvalidRequest)

	stranger := checkIn(pending, attendance.MethodQR, "p")
	stranger.UserID = "u2"
	_, err = uc.CheckIn(context.Background(), stranger)
	expectKind(t, err, internaltypes.KindNotFound)
}

func TestCheckOutFlow(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	r := mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))
	uc := h.attendance(&stubVerifier{ok: true})

	_, err := uc.CheckOut(context.Background(), tenant, r.ID, r.UserID)
	expectKind(t, err, internaltypes.KindNotCheckedIn)

	h.clock.Set(r.Window.Start)
	if _, err := uc.CheckIn(context.Background(), checkIn(r, attendance.MethodQR, "p")); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	h.clock.Set(r.Window.End)
	rec, err := uc.CheckOut(context.Background(), tenant, r.ID, r.UserID)
	if err != nil || rec.CheckOutAt == nil || !rec.CheckOutAt.Equal(r.Window.End) {
		t.Fatalf("check-out = %+v, %v", rec, err)
	}
	_, err = uc.CheckOut(context.Background(), tenant, r.ID, r.UserID)
	expectKind(t, err, internaltypes.KindAlreadyCheckedOut)

	got, err := uc.Get(context.Background(), tenant, r.ID, r.UserID)
	if err != nil || !got.CheckedIn() || !got.CheckedOut() {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if n := h.events.count(EventCheckedOut); n != 1 {
		t.Fatalf("checked-out events = %d", n)
	}
}

func TestIssuePassExpiresWithWindow(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	r := mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))
	passes := &stubPasses{}
	uc := h.attendance(&stubVerifier{ok: true})

	if _, _, err := uc.IssuePass(context.Background(), tenant, r.ID, r.UserID); internaltypes.KindOf(err) != internaltypes.KindInvalidRequest {
		t.Fatalf("passes disabled: got %v", err)
	}

	uc.Passes = passes
	token, expires, err := uc.IssuePass(context.Background(), tenant, r.ID, r.UserID)
	if err != nil || token != "pass-token" {
		t.Fatalf("issue: %q %v", token, err)
	}
	if want := r.Window.Start.Add(15 * time.Minute); !expires.Equal(want) || !passes.issued[0].ExpiresAt.Equal(want) {
		t.Fatalf("expires = %v, want %v", expires, want)
	}

	h.clock.Set(r.Window.Start.Add(16 * time.Minute))
	_, _, err = uc.IssuePass(context.Background(), tenant, r.ID, r.UserID)
	expectKind(t, err, internaltypes.KindWindowClosed)
}
