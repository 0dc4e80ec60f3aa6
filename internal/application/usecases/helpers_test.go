package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/policy"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/infrastructure/memory"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const (
	tenant = "t1"
	condo  = "c1"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type stubPolicy struct {
	mu       sync.Mutex
	decision policy.Decision
	calls    int
}

func (p *stubPolicy) Evaluate(_ context.Context, _ policy.Request) policy.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.decision.Effect == "" {
		return policy.Decision{Effect: policy.Permit}
	}
	return p.decision
}

type fakeOrders struct {
	mu        sync.Mutex
	byKey     map[string]*ports.Order
	keys      []string
	calls     int
	fail      error
	cancelled []string
}

func newFakeOrders() *fakeOrders { return &fakeOrders{byKey: map[string]*ports.Order{}} }

func (f *fakeOrders) CreateOrder(_ context.Context, req ports.OrderRequest, key string) (*ports.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, key)
	if f.fail != nil {
		return nil, f.fail
	}
	if o, ok := f.byKey[key]; ok {
		return o, nil
	}
	o := &ports.Order{ID: fmt.Sprintf("order-%d", len(f.byKey)+1), Status: "PENDING", Amount: req.Amount, Currency: req.Currency}
	f.byKey[key] = o
	return o, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, _ string, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeOrders) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byKey)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *recordingEvents) Publish(_ context.Context, events ...ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingEvents) count(typ string) int {
	n := 0
	for _, t := range r.types() {
		if t == typ {
			n++
		}
	}
	return n
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires every use case to one in-memory store.
type harness struct {
	store  *memory.Store
	clock  *manualClock
	policy *stubPolicy
	orders *fakeOrders
	events *recordingEvents
	ids    *sequentialIDs
	saga   *OrderSaga
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  memory.New(),
		clock:  &manualClock{t: baseTime},
		policy: &stubPolicy{},
		orders: newFakeOrders(),
		events: &recordingEvents{},
		ids:    &sequentialIDs{},
	}
	h.saga = &OrderSaga{Orders: h.orders, Timeout: time.Second, ExpirationMinutes: 30, Log: quietLogger()}
	return h
}

func (h *harness) amenity(t *testing.T, id string, mutate func(*reservation.Amenity)) reservation.Amenity {
	t.Helper()
	a := reservation.Amenity{
		TenantID:      tenant,
		ID:            id,
		CondominiumID: condo,
		Name:          "Amenity " + id,
		Type:          "pool",
		Capacity:      10,
		MinDuration:   30 * time.Minute,
		MaxDuration:   240 * time.Minute,
		MinAdvance:    time.Hour,
		MaxAdvance:    90 * 24 * time.Hour,
		Active:        true,
	}
	if mutate != nil {
		mutate(&a)
	}
	out, err := Amenities{Store: h.store, Clock: h.clock}.Upsert(context.Background(), a)
	if err != nil {
		t.Fatalf("upsert amenity: %v", err)
	}
	return out
}

func (h *harness) create() CreateReservation {
	return CreateReservation{Store: h.store, Policy: h.policy, Saga: h.saga, Events: h.events, Clock: h.clock, Log: quietLogger(), NewID: h.ids.Next}
}

func (h *harness) manage() ManageReservations {
	return ManageReservations{Store: h.store, Saga: h.saga, Events: h.events, Clock: h.clock, Log: quietLogger()}
}

func (h *harness) blackouts() Blackouts {
	return Blackouts{Store: h.store, Events: h.events, Clock: h.clock, Log: quietLogger(), NewID: h.ids.Next}
}

func (h *harness) housekeeping() Housekeeping {
	return Housekeeping{Store: h.store, Saga: h.saga, Events: h.events, Clock: h.clock, Log: quietLogger(), OrderWindow: 30 * time.Minute}
}

// command books [base+from, base+to) for user u1.
func command(amenityID, token string, from, to time.Duration) CreateReservationCommand {
	return CreateReservationCommand{
		TenantID:         tenant,
		CondominiumID:    condo,
		AmenityID:        amenityID,
		UserID:           "u1",
		Start:            baseTime.Add(from),
		End:              baseTime.Add(to),
		PartySize:        2,
		IdempotencyToken: token,
	}
}

func mustCreate(t *testing.T, h *harness, cmd CreateReservationCommand) reservation.Reservation {
	t.Helper()
	res, err := h.create().Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("create %s: %v", cmd.IdempotencyToken, err)
	}
	if res.Reservation == nil {
		t.Fatalf("create %s: no reservation returned", cmd.IdempotencyToken)
	}
	return *res.Reservation
}

func mustRange(t *testing.T, from, to time.Duration) timerange.Range {
	t.Helper()
	r, err := timerange.New(baseTime.Add(from), baseTime.Add(to))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func expectKind(t *testing.T, err error, kind internaltypes.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if got := internaltypes.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %s (%v)", kind, got, err)
	}
}

func feeObligation(amount string) policy.Obligation {
	return policy.Obligation{Type: policy.ObligationFeeRequired, Value: []byte(`"` + decimal.RequireFromString(amount).String() + `"`)}
}

var errFinanceDown = errors.New("finance service unreachable")
