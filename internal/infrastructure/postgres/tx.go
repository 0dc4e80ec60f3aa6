package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

// tx is a read-committed transaction. LockAmenity takes the amenity row
// lock, so overlap checks made after it see every committed competitor.
type tx struct {
	q pgx.Tx
}

func (t *tx) LockAmenity(ctx context.Context, tenantID, amenityID string) (reservation.Amenity, error) {
	return getAmenity(ctx, t.q, tenantID, amenityID, true)
}

func (t *tx) FindIdempotency(ctx context.Context, key idempotency.Key) (*idempotency.Record, error) {
	return findIdempotency(ctx, t.q, key)
}

func (t *tx) ActiveReservations(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]reservation.Reservation, error) {
	return activeReservations(ctx, t.q, tenantID, amenityID, window)
}

func (t *tx) OverlappingBlackouts(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error) {
	return overlappingBlackouts(ctx, t.q, tenantID, amenityID, window)
}

func (t *tx) InsertReservation(ctx context.Context, r reservation.Reservation) error {
	md, err := json.Marshal(r.Metadata)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO reservations (tenant_id, id, condominium_id, amenity_id, user_id, created_by, party_size,
			start_at, end_at, status, charge_amount, charge_currency, requires_approval, approved_by, approved_at,
			cancel_reason, version, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::numeric,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, r.TenantID, r.ID, r.CondominiumID, r.AmenityID, r.UserID, r.CreatedBy, r.PartySize,
		r.Window.Start, r.Window.End, string(r.Status), r.ChargeAmount.String(), r.ChargeCurrency,
		r.RequiresApproval, r.ApprovedBy, r.ApprovedAt, r.CancelReason, r.Version, md,
		stamp(r.CreatedAt), stamp(r.UpdatedAt))
	return mapErr(err, "reservation")
}

func (t *tx) UpdateReservationMetadata(ctx context.Context, tenantID, id string, md reservation.Metadata) error {
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, `UPDATE reservations SET metadata=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, id, b)
	if err != nil {
		return mapErr(err, "reservation")
	}
	if tag.RowsAffected() == 0 {
		return internaltypes.New(internaltypes.KindNotFound, "reservation not found")
	}
	return nil
}

func (t *tx) SaveIdempotency(ctx context.Context, rec idempotency.Record) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO idempotency_keys (tenant_id, route, token, fingerprint, response_status, response_body, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.TenantID, rec.Route, rec.Token, rec.Fingerprint, rec.Status, rec.Body, stamp(rec.CreatedAt))
	return mapErr(err, "idempotency record")
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
