// Package postgres persists amenities, reservations, blackouts, attendance
// and the idempotency ledger. Overlap exclusion for active reservations is
// enforced by the reservations_no_overlap constraint; the amenity row lock
// serialises writers before they get that far.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/db"
	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeSerialization      = "40001"
	codeDeadlock           = "40P01"

	idempotencyPK = "idempotency_keys_pkey"
	attendancePK  = "attendances_pkey"
)

type Store struct {
	d *db.DB
}

func New(d *db.DB) *Store { return &Store{d: d} }

var (
	_ ports.ReservationStore = (*Store)(nil)
	_ ports.AmenityStore     = (*Store)(nil)
	_ ports.BlackoutStore    = (*Store)(nil)
	_ ports.AttendanceStore  = (*Store)(nil)
)

// mapErr turns driver errors into domain errors. Unknown errors pass through
// so the use case can classify them as unavailable.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if internaltypes.KindOf(err) != "" || errors.Is(err, idempotency.ErrDuplicate) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return internaltypes.New(internaltypes.KindNotFound, "%s not found", what)
	}
	switch db.SQLState(err) {
	case codeExclusionViolation:
		return internaltypes.Wrap(internaltypes.KindSlotTaken, err, "time slot is already reserved")
	case codeUniqueViolation:
		switch db.ConstraintName(err) {
		case idempotencyPK:
			return idempotency.ErrDuplicate
		case attendancePK:
			return internaltypes.Wrap(internaltypes.KindAlreadyCheckedIn, err, "already checked in")
		}
	case codeSerialization, codeDeadlock:
		return internaltypes.Wrap(internaltypes.KindUnavailable, err, "transaction aborted, retry")
	}
	return fmt.Errorf("postgres: %s: %w", what, err)
}

// --- amenities ---

const amenityCols = `tenant_id, id, condominium_id, local_code, name, amenity_type, capacity,
	min_duration_minutes, max_duration_minutes, min_advance_minutes, max_advance_minutes,
	check_in_required, check_in_window_minutes, charge_amount::text, charge_currency, rules, active,
	created_at, updated_at`

func (s *Store) UpsertAmenity(ctx context.Context, a reservation.Amenity) error {
	rules, err := json.Marshal(rulesOrEmpty(a.Rules))
	if err != nil {
		return err
	}
	_, err = s.d.Q().Exec(ctx, `
		INSERT INTO amenities (tenant_id, id, condominium_id, local_code, name, amenity_type, capacity,
			min_duration_minutes, max_duration_minutes, min_advance_minutes, max_advance_minutes,
			check_in_required, check_in_window_minutes, charge_amount, charge_currency, rules, active,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::numeric,$15,$16,$17,$18,$18)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			condominium_id=EXCLUDED.condominium_id, local_code=EXCLUDED.local_code, name=EXCLUDED.name,
			amenity_type=EXCLUDED.amenity_type, capacity=EXCLUDED.capacity,
			min_duration_minutes=EXCLUDED.min_duration_minutes, max_duration_minutes=EXCLUDED.max_duration_minutes,
			min_advance_minutes=EXCLUDED.min_advance_minutes, max_advance_minutes=EXCLUDED.max_advance_minutes,
			check_in_required=EXCLUDED.check_in_required, check_in_window_minutes=EXCLUDED.check_in_window_minutes,
			charge_amount=EXCLUDED.charge_amount, charge_currency=EXCLUDED.charge_currency,
			rules=EXCLUDED.rules, active=EXCLUDED.active, updated_at=EXCLUDED.updated_at
	`, a.TenantID, a.ID, a.CondominiumID, a.LocalCode, a.Name, a.Type, a.Capacity,
		minutes(a.MinDuration), minutes(a.MaxDuration), minutes(a.MinAdvance), minutes(a.MaxAdvance),
		a.CheckInRequired, minutes(a.CheckInWindow), a.ChargeAmount.String(), a.ChargeCurrency, rules, a.Active,
		stamp(a.UpdatedAt))
	return mapErr(err, "amenity")
}

func (s *Store) GetAmenity(ctx context.Context, tenantID, amenityID string) (reservation.Amenity, error) {
	return getAmenity(ctx, s.d.Q(), tenantID, amenityID, false)
}

func getAmenity(ctx context.Context, q db.Querier, tenantID, amenityID string, forUpdate bool) (reservation.Amenity, error) {
	sql := `SELECT ` + amenityCols + ` FROM amenities WHERE tenant_id=$1 AND id=$2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	a, err := scanAmenity(q.QueryRow(ctx, sql, tenantID, amenityID))
	return a, mapErr(err, "amenity")
}

func scanAmenity(row pgx.Row) (reservation.Amenity, error) {
	var (
		a                                  reservation.Amenity
		minDur, maxDur, minAdv, maxAdv, ci int
		charge                             string
		rules                              []byte
	)
	err := row.Scan(&a.TenantID, &a.ID, &a.CondominiumID, &a.LocalCode, &a.Name, &a.Type, &a.Capacity,
		&minDur, &maxDur, &minAdv, &maxAdv, &a.CheckInRequired, &ci, &charge, &a.ChargeCurrency, &rules, &a.Active,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return reservation.Amenity{}, err
	}
	a.MinDuration, a.MaxDuration = fromMinutes(minDur), fromMinutes(maxDur)
	a.MinAdvance, a.MaxAdvance = fromMinutes(minAdv), fromMinutes(maxAdv)
	a.CheckInWindow = fromMinutes(ci)
	if a.ChargeAmount, err = parseDecimal(charge); err != nil {
		return reservation.Amenity{}, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &a.Rules); err != nil {
			return reservation.Amenity{}, fmt.Errorf("amenity rules: %w", err)
		}
	}
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return a, nil
}

// --- reservations ---

const reservationCols = `tenant_id, id, condominium_id, amenity_id, user_id, created_by, party_size,
	start_at, end_at, status, charge_amount::text, charge_currency, requires_approval, approved_by, approved_at,
	cancel_reason, version, metadata, created_at, updated_at`

func scanReservation(row pgx.Row) (reservation.Reservation, error) {
	var (
		r          reservation.Reservation
		start, end time.Time
		status     string
		charge     string
		md         []byte
	)
	err := row.Scan(&r.TenantID, &r.ID, &r.CondominiumID, &r.AmenityID, &r.UserID, &r.CreatedBy, &r.PartySize,
		&start, &end, &status, &charge, &r.ChargeCurrency, &r.RequiresApproval, &r.ApprovedBy, &r.ApprovedAt,
		&r.CancelReason, &r.Version, &md, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return reservation.Reservation{}, err
	}
	r.Window = timerange.Range{Start: start.UTC(), End: end.UTC()}
	r.Status = reservation.Status(status)
	if r.ChargeAmount, err = parseDecimal(charge); err != nil {
		return reservation.Reservation{}, err
	}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &r.Metadata); err != nil {
			return reservation.Reservation{}, fmt.Errorf("reservation metadata: %w", err)
		}
	}
	r.ApprovedAt = utcPtr(r.ApprovedAt)
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

func collectReservations(rows pgx.Rows) ([]reservation.Reservation, error) {
	defer rows.Close()
	var out []reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetReservation(ctx context.Context, tenantID, id string) (reservation.Reservation, error) {
	r, err := scanReservation(s.d.Q().QueryRow(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	return r, mapErr(err, "reservation")
}

func (s *Store) ActiveReservations(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]reservation.Reservation, error) {
	return activeReservations(ctx, s.d.Q(), tenantID, amenityID, window)
}

func activeReservations(ctx context.Context, q db.Querier, tenantID, amenityID string, window timerange.Range) ([]reservation.Reservation, error) {
	rows, err := q.Query(ctx, `
		SELECT `+reservationCols+` FROM reservations
		WHERE tenant_id=$1 AND amenity_id=$2 AND status = ANY($3)
		  AND tstzrange(start_at, end_at, '[)') && tstzrange($4, $5, '[)')
		ORDER BY created_at, id
	`, tenantID, amenityID, statusNames(reservation.ActiveStatuses), window.Start, window.End)
	if err != nil {
		return nil, mapErr(err, "reservations")
	}
	out, err := collectReservations(rows)
	return out, mapErr(err, "reservations")
}

func (s *Store) ListReservations(ctx context.Context, q ports.ReservationQuery) ([]reservation.Reservation, error) {
	sql, args := reservationQuerySQL(q)
	rows, err := s.d.Q().Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "reservations")
	}
	out, err := collectReservations(rows)
	return out, mapErr(err, "reservations")
}

func reservationQuerySQL(q ports.ReservationQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		where = append(where, cond)
	}
	if q.TenantID != "" {
		add("tenant_id = ?", q.TenantID)
	}
	if q.AmenityID != "" {
		add("amenity_id = ?", q.AmenityID)
	}
	if q.UserID != "" {
		add("user_id = ?", q.UserID)
	}
	if len(q.Statuses) > 0 {
		add("status = ANY(?)", statusNames(q.Statuses))
	}
	if q.Overlapping != nil {
		add("tstzrange(start_at, end_at, '[)') && tstzrange(?, ?, '[)')", q.Overlapping.Start, q.Overlapping.End)
	}
	if q.CreatedBefore != nil {
		add("created_at < ?", *q.CreatedBefore)
	}
	if q.CreatedAfter != nil {
		add("created_at > ?", *q.CreatedAfter)
	}
	if q.MissingOrder {
		add("COALESCE(metadata->>'orderId', '') = ''")
	}

	sql := `SELECT ` + reservationCols + ` FROM reservations`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return sql, args
}

func (s *Store) UpdateReservation(ctx context.Context, r reservation.Reservation) error {
	md, err := json.Marshal(r.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.d.Q().Exec(ctx, `
		UPDATE reservations SET status=$3, requires_approval=$4, approved_by=$5, approved_at=$6,
			cancel_reason=$7, version=$8, metadata=$9, updated_at=$10
		WHERE tenant_id=$1 AND id=$2 AND version=$8-1
	`, r.TenantID, r.ID, string(r.Status), r.RequiresApproval, r.ApprovedBy, r.ApprovedAt,
		r.CancelReason, r.Version, md, stamp(r.UpdatedAt))
	if err != nil {
		return mapErr(err, "reservation")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetReservation(ctx, r.TenantID, r.ID); err != nil {
		return err
	}
	return internaltypes.New(internaltypes.KindVersionConflict, "reservation was modified concurrently")
}

func (s *Store) FindIdempotency(ctx context.Context, key idempotency.Key) (*idempotency.Record, error) {
	return findIdempotency(ctx, s.d.Q(), key)
}

func findIdempotency(ctx context.Context, q db.Querier, key idempotency.Key) (*idempotency.Record, error) {
	rec := idempotency.Record{Key: key}
	err := q.QueryRow(ctx, `
		SELECT fingerprint, response_status, response_body, created_at
		FROM idempotency_keys WHERE tenant_id=$1 AND route=$2 AND token=$3
	`, key.TenantID, key.Route, key.Token).Scan(&rec.Fingerprint, &rec.Status, &rec.Body, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, "idempotency record")
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.ReservationTx) error) error {
	err := s.d.InTx(ctx, func(t pgx.Tx) error {
		return fn(ctx, &tx{q: t})
	})
	return mapErr(err, "transaction")
}

// --- blackouts ---

const blackoutCols = `tenant_id, id, condominium_id, amenity_id, start_at, end_at, reason, source, metadata, created_at`

func scanBlackout(row pgx.Row) (blackout.Blackout, error) {
	var (
		b          blackout.Blackout
		amenity    *string
		start, end time.Time
		source     string
		md         []byte
	)
	if err := row.Scan(&b.TenantID, &b.ID, &b.CondominiumID, &amenity, &start, &end, &b.Reason, &source, &md, &b.CreatedAt); err != nil {
		return blackout.Blackout{}, err
	}
	if amenity != nil {
		b.AmenityID = *amenity
	}
	b.Window = timerange.Range{Start: start.UTC(), End: end.UTC()}
	b.Source = blackout.Source(source)
	if len(md) > 0 {
		if err := json.Unmarshal(md, &b.Metadata); err != nil {
			return blackout.Blackout{}, fmt.Errorf("blackout metadata: %w", err)
		}
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func collectBlackouts(rows pgx.Rows) ([]blackout.Blackout, error) {
	defer rows.Close()
	var out []blackout.Blackout
	for rows.Next() {
		b, err := scanBlackout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateBlackout(ctx context.Context, b blackout.Blackout) error {
	md, err := json.Marshal(b.Metadata)
	if err != nil {
		return err
	}
	_, err = s.d.Q().Exec(ctx, `
		INSERT INTO blackouts (tenant_id, id, condominium_id, amenity_id, start_at, end_at, reason, source, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, b.TenantID, b.ID, b.CondominiumID, nullable(b.AmenityID), b.Window.Start, b.Window.End,
		b.Reason, string(b.Source), md, stamp(b.CreatedAt))
	return mapErr(err, "blackout")
}

func (s *Store) GetBlackout(ctx context.Context, tenantID, id string) (blackout.Blackout, error) {
	b, err := scanBlackout(s.d.Q().QueryRow(ctx,
		`SELECT `+blackoutCols+` FROM blackouts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	return b, mapErr(err, "blackout")
}

func (s *Store) ListBlackouts(ctx context.Context, f blackout.Filter) ([]blackout.Blackout, error) {
	// empty filter fields collapse to true
	rows, err := s.d.Q().Query(ctx, `
		SELECT `+blackoutCols+` FROM blackouts
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR condominium_id = $2)
		  AND ($3 = '' OR amenity_id IS NULL OR amenity_id = $3)
		  AND ($4 = '' OR source = $4)
		  AND ($5::timestamptz IS NULL OR end_at > $5)
		  AND ($6::timestamptz IS NULL OR start_at < $6)
		ORDER BY start_at, id
	`, f.TenantID, f.CondominiumID, f.AmenityID, string(f.Source), f.From, f.To)
	if err != nil {
		return nil, mapErr(err, "blackouts")
	}
	out, err := collectBlackouts(rows)
	return out, mapErr(err, "blackouts")
}

func (s *Store) DeleteBlackout(ctx context.Context, tenantID, id string) error {
	tag, err := s.d.Q().Exec(ctx, `DELETE FROM blackouts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return mapErr(err, "blackout")
	}
	if tag.RowsAffected() == 0 {
		return internaltypes.New(internaltypes.KindNotFound, "blackout not found")
	}
	return nil
}

func (s *Store) DeleteBlackoutsByWorkOrder(ctx context.Context, tenantID, workOrderID string) ([]blackout.Blackout, error) {
	rows, err := s.d.Q().Query(ctx, `
		DELETE FROM blackouts
		WHERE tenant_id=$1 AND source=$2 AND metadata->>'workOrderId' = $3
		RETURNING `+blackoutCols, tenantID, string(blackout.SourceMaintenance), workOrderID)
	if err != nil {
		return nil, mapErr(err, "blackouts")
	}
	out, err := collectBlackouts(rows)
	return out, mapErr(err, "blackouts")
}

func (s *Store) OverlappingBlackouts(ctx context.Context, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error) {
	return overlappingBlackouts(ctx, s.d.Q(), tenantID, amenityID, window)
}

func overlappingBlackouts(ctx context.Context, q db.Querier, tenantID, amenityID string, window timerange.Range) ([]blackout.Blackout, error) {
	rows, err := q.Query(ctx, `
		SELECT `+blackoutCols+` FROM blackouts
		WHERE tenant_id=$1 AND (amenity_id IS NULL OR amenity_id=$2)
		  AND tstzrange(start_at, end_at, '[)') && tstzrange($3, $4, '[)')
		ORDER BY start_at, id
	`, tenantID, amenityID, window.Start, window.End)
	if err != nil {
		return nil, mapErr(err, "blackouts")
	}
	out, err := collectBlackouts(rows)
	return out, mapErr(err, "blackouts")
}

// --- attendance ---

func (s *Store) GetAttendance(ctx context.Context, tenantID, reservationID string) (attendance.Record, error) {
	var (
		rec    attendance.Record
		method string
		loc    []byte
	)
	err := s.d.Q().QueryRow(ctx, `
		SELECT tenant_id, reservation_id, user_id, method, proof_hash, actor, location, check_in_at, check_out_at, created_at
		FROM attendances WHERE tenant_id=$1 AND reservation_id=$2
	`, tenantID, reservationID).Scan(&rec.TenantID, &rec.ReservationID, &rec.UserID, &method, &rec.ProofHash,
		&rec.Actor, &loc, &rec.CheckInAt, &rec.CheckOutAt, &rec.CreatedAt)
	if err != nil {
		return attendance.Record{}, mapErr(err, "attendance")
	}
	rec.Method = attendance.Method(method)
	if len(loc) > 0 {
		rec.Location = &attendance.Location{}
		if err := json.Unmarshal(loc, rec.Location); err != nil {
			return attendance.Record{}, fmt.Errorf("attendance location: %w", err)
		}
	}
	rec.CheckInAt, rec.CheckOutAt = utcPtr(rec.CheckInAt), utcPtr(rec.CheckOutAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (s *Store) SaveCheckIn(ctx context.Context, rec attendance.Record) error {
	var loc []byte
	if rec.Location != nil {
		b, err := json.Marshal(rec.Location)
		if err != nil {
			return err
		}
		loc = b
	}
	_, err := s.d.Q().Exec(ctx, `
		INSERT INTO attendances (tenant_id, reservation_id, user_id, method, proof_hash, actor, location, check_in_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.TenantID, rec.ReservationID, rec.UserID, string(rec.Method), rec.ProofHash, rec.Actor, loc,
		rec.CheckInAt, stamp(rec.CreatedAt))
	return mapErr(err, "attendance")
}

func (s *Store) SaveCheckOut(ctx context.Context, tenantID, reservationID string, at time.Time) error {
	tag, err := s.d.Q().Exec(ctx, `
		UPDATE attendances SET check_out_at=$3
		WHERE tenant_id=$1 AND reservation_id=$2 AND check_in_at IS NOT NULL AND check_out_at IS NULL
	`, tenantID, reservationID, at)
	if err != nil {
		return mapErr(err, "attendance")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	rec, err := s.GetAttendance(ctx, tenantID, reservationID)
	if err != nil || !rec.CheckedIn() {
		return internaltypes.New(internaltypes.KindNotCheckedIn, "must check in before checking out")
	}
	return internaltypes.New(internaltypes.KindAlreadyCheckedOut, "already checked out")
}

// --- helpers ---

func statusNames(ss []reservation.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func minutes(d time.Duration) int     { return int(d / time.Minute) }
func fromMinutes(m int) time.Duration { return time.Duration(m) * time.Minute }

func rulesOrEmpty(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
