package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/application/ports"
)

func TestCreateOrderSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotTenant string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		gotTenant = r.Header.Get("X-Tenant-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ord-1","status":"PENDING","amount":"25.00","currency":"PEN"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	order, err := c.CreateOrder(context.Background(), ports.OrderRequest{
		TenantID:      "t1",
		Amount:        decimal.RequireFromString("25"),
		Currency:      "PEN",
		Type:          "RESERVATION_FEE",
		ReferenceID:   "res-1",
		ReferenceType: "reservation",
	}, "create-order:tok-1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "ord-1" || !order.Amount.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("unexpected order %+v", order)
	}
	if gotKey != "create-order:tok-1" || gotTenant != "t1" {
		t.Fatalf("headers: key=%q tenant=%q", gotKey, gotTenant)
	}
	if gotBody["referenceId"] != "res-1" || gotBody["type"] != "RESERVATION_FEE" {
		t.Fatalf("body: %v", gotBody)
	}
}

func TestCreateOrderErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		"missing id":   func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"status":"PENDING"}`)) },
		"bad json":     func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`<html>`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			if _, err := New(srv.URL, time.Second).CreateOrder(context.Background(), ports.OrderRequest{TenantID: "t1"}, "k"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL, time.Second).CancelOrder(context.Background(), "t1", "ord-9"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if method != http.MethodPut || path != "/v1/orders/ord-9/cancel" {
		t.Fatalf("unexpected %s %s", method, path)
	}
}
