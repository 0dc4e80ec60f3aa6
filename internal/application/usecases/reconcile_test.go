package usecases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/policy"
	"github.com/example/amenity-reservations/internal/domain/reservation"
)

func charged(h *harness) {
	h.policy.decision = policy.Decision{Effect: policy.Permit, Obligations: []policy.Obligation{feeObligation("40")}}
}

func TestExpireUnpaid(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	charged(h)
	old := mustCreate(t, h, command("a1", "k1", 2*time.Hour, 3*time.Hour))
	h.clock.Set(baseTime.Add(20 * time.Minute))
	fresh := mustCreate(t, h, command("a1", "k2", 4*time.Hour, 5*time.Hour))

	h.clock.Set(baseTime.Add(31 * time.Minute))
	n, err := h.housekeeping().ExpireUnpaid(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expire = %d, %v", n, err)
	}

	got, err := h.store.GetReservation(context.Background(), tenant, old.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != reservation.StatusExpired || got.Version != old.Version+1 {
		t.Fatalf("expired = %s v%d", got.Status, got.Version)
	}
	if len(h.orders.cancelled) != 1 || h.orders.cancelled[0] != old.Metadata.OrderID {
		t.Fatalf("cancelled orders = %v", h.orders.cancelled)
	}
	if h.events.count(EventReservationExpired) != 1 {
		t.Fatalf("events = %v", h.events.types())
	}
	if still, _ := h.store.GetReservation(context.Background(), tenant, fresh.ID); still.Status != reservation.StatusPendingUnpaid {
		t.Fatalf("fresh = %s", still.Status)
	}

	// the expired slot can be booked again
	h.policy.decision = policy.Decision{}
	mustCreate(t, h, command("a1", "k3", 2*time.Hour, 3*time.Hour))

	if n, _ := h.housekeeping().ExpireUnpaid(context.Background()); n != 0 {
		t.Fatalf("second run expired %d", n)
	}
}

func TestExpireUnpaidLeavesOtherStatuses(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	mustCreate(t, h, command("a1", "k1", 2*time.Hour, 3*time.Hour))
	h.policy.decision = policy.Decision{Effect: policy.Indeterminate}
	mustCreate(t, h, command("a1", "k2", 4*time.Hour, 5*time.Hour))

	h.clock.Set(baseTime.Add(2 * time.Hour))
	if n, err := h.housekeeping().ExpireUnpaid(context.Background()); err != nil || n != 0 {
		t.Fatalf("expire = %d, %v", n, err)
	}
}

func TestReconcileOrdersReusesKey(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	charged(h)
	h.orders.fail = errFinanceDown
	r := mustCreate(t, h, command("a1", "pay-9", 2*time.Hour, 3*time.Hour))
	if !r.Metadata.OrderPending || r.Metadata.OrderID != "" {
		t.Fatalf("metadata = %+v", r.Metadata)
	}

	h.orders.fail = nil
	h.clock.Set(baseTime.Add(10 * time.Minute))
	n, err := h.housekeeping().ReconcileOrders(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("reconcile = %d, %v", n, err)
	}
	got, _ := h.store.GetReservation(context.Background(), tenant, r.ID)
	if got.Metadata.OrderID != "order-1" || got.Metadata.OrderPending || got.Version != r.Version+1 {
		t.Fatalf("reconciled = %+v v%d", got.Metadata, got.Version)
	}
	for _, k := range h.orders.keys {
		if k != idempotency.OrderKey("pay-9") {
			t.Fatalf("order key = %q", k)
		}
	}
	if len(h.orders.keys) != 2 {
		t.Fatalf("order attempts = %d", len(h.orders.keys))
	}

	if n, _ := h.housekeeping().ReconcileOrders(context.Background()); n != 0 {
		t.Fatalf("second reconcile = %d", n)
	}
}

func TestReconcileSkipsReservationsPastOrderWindow(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	charged(h)
	h.orders.fail = errFinanceDown
	mustCreate(t, h, command("a1", "k", 2*time.Hour, 3*time.Hour))

	h.orders.fail = nil
	h.clock.Set(baseTime.Add(45 * time.Minute))
	if n, err := h.housekeeping().ReconcileOrders(context.Background()); err != nil || n != 0 {
		t.Fatalf("reconcile = %d, %v", n, err)
	}
	if h.orders.created() != 0 {
		t.Fatalf("orders created = %d", h.orders.created())
	}
}

func TestReconcileReachesPastReservationsWithOrders(t *testing.T) {
	h := newHarness(t)
	h.amenity(t, "a1", nil)
	charged(h)
	for i := 0; i < 3; i++ {
		from := time.Duration(2+i) * time.Hour
		if r := mustCreate(t, h, command("a1", fmt.Sprintf("paid-%d", i), from, from+time.Hour)); r.Metadata.OrderID == "" {
			t.Fatalf("reservation %d has no order", i)
		}
	}
	h.orders.fail = errFinanceDown
	late := mustCreate(t, h, command("a1", "late", 6*time.Hour, 7*time.Hour))

	h.orders.fail = nil
	h.clock.Set(baseTime.Add(5 * time.Minute))
	hk := h.housekeeping()
	hk.BatchSize = 2
	n, err := hk.ReconcileOrders(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("reconcile = %d, %v", n, err)
	}
	got, _ := h.store.GetReservation(context.Background(), tenant, late.ID)
	if got.Metadata.OrderID == "" || got.Metadata.OrderPending {
		t.Fatalf("late reservation metadata = %+v", got.Metadata)
	}
}
