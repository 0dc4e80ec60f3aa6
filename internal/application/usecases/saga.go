package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/reservation"
)

const (
	OrderTypeReservationFee = "RESERVATION_FEE"
	OrderReferenceType      = "reservation"

	defaultSagaTimeout       = 10 * time.Second
	defaultOrderExpiresAfter = 30
)

// OrderSaga creates the finance order for a charged reservation. It never
// fails the reservation: an unreachable finance service leaves the
// reservation marked as waiting for an order, to be reconciled later.
type OrderSaga struct {
	Orders            ports.OrderService
	Timeout           time.Duration
	ExpirationMinutes int
	Log               *slog.Logger
}

// Start returns the created order, or nil if creation failed or timed out.
func (s *OrderSaga) Start(ctx context.Context, r reservation.Reservation, amenityName string) *ports.Order {
	if s == nil || s.Orders == nil {
		return nil
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSagaTimeout
	}
	expires := s.ExpirationMinutes
	if expires <= 0 {
		expires = defaultOrderExpiresAfter
	}

	// Detached from the request: a client hang-up must not abort an in-flight order.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	token := r.Metadata.IdempotencyKey
	if token == "" {
		token = r.ID
	}
	req := ports.OrderRequest{
		TenantID:          r.TenantID,
		CondominiumID:     r.CondominiumID,
		UserID:            r.UserID,
		Type:              OrderTypeReservationFee,
		Amount:            r.ChargeAmount,
		Currency:          r.ChargeCurrency,
		Description:       "Reservation fee for " + amenityName,
		ReferenceID:       r.ID,
		ReferenceType:     OrderReferenceType,
		ExpirationMinutes: expires,
	}
	order, err := s.Orders.CreateOrder(ctx, req, idempotency.OrderKey(token))
	if err != nil {
		s.logger().Warn("order creation failed, reservation left pending",
			slog.String("tenantId", r.TenantID),
			slog.String("reservationId", r.ID),
			slog.Any("error", err))
		return nil
	}
	s.logger().Info("order created",
		slog.String("tenantId", r.TenantID),
		slog.String("reservationId", r.ID),
		slog.String("orderId", order.ID))
	return order
}

// Record writes the saga outcome into the reservation metadata.
func (s *OrderSaga) Record(md reservation.Metadata, order *ports.Order) reservation.Metadata {
	if order == nil || order.ID == "" {
		md.OrderID = ""
		md.OrderPending = true
		return md
	}
	md.OrderID = order.ID
	md.OrderPending = false
	return md
}

// Cancel is best-effort; failures are only logged.
func (s *OrderSaga) Cancel(ctx context.Context, r reservation.Reservation) {
	if s == nil || s.Orders == nil || r.Metadata.OrderID == "" {
		return
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSagaTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Orders.CancelOrder(ctx, r.TenantID, r.Metadata.OrderID); err != nil {
		s.logger().Warn("order cancellation failed",
			slog.String("reservationId", r.ID),
			slog.String("orderId", r.Metadata.OrderID),
			slog.Any("error", err))
	}
}

func (s *OrderSaga) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
