package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/idempotency"
	"github.com/example/amenity-reservations/internal/domain/policy"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

type CreateReservationCommand struct {
	TenantID         string
	CondominiumID    string
	AmenityID        string
	UserID           string
	Start            time.Time
	End              time.Time
	PartySize        int
	IdempotencyToken string
}

func (c CreateReservationCommand) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"tenantId":       c.TenantID,
		"condominiumId":  c.CondominiumID,
		"amenityId":      c.AmenityID,
		"userId":         c.UserID,
		"idempotencyKey": c.IdempotencyToken,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if c.Start.IsZero() {
		missing = append(missing, "startTime")
	}
	if c.End.IsZero() {
		missing = append(missing, "endTime")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return internaltypes.New(internaltypes.KindInvalidRequest, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if c.PartySize < 1 {
		return internaltypes.New(internaltypes.KindInvalidRequest, "party size must be at least 1")
	}
	return nil
}

// fingerprint covers everything that determines the outcome except the token itself.
func (c CreateReservationCommand) fingerprint() (string, error) {
	return idempotency.Fingerprint(struct {
		TenantID      string `json:"tenantId"`
		CondominiumID string `json:"condominiumId"`
		AmenityID     string `json:"amenityId"`
		UserID        string `json:"userId"`
		Start         string `json:"startTime"`
		End           string `json:"endTime"`
		PartySize     int    `json:"partySize"`
	}{
		TenantID:      c.TenantID,
		CondominiumID: c.CondominiumID,
		AmenityID:     c.AmenityID,
		UserID:        c.UserID,
		Start:         c.Start.UTC().Format(time.RFC3339Nano),
		End:           c.End.UTC().Format(time.RFC3339Nano),
		PartySize:     c.PartySize,
	})
}

// CreateResult carries the exact bytes to send back. Replays return the
// stored status and body without touching any other state.
type CreateResult struct {
	Status      int
	Body        []byte
	Replayed    bool
	Reservation *reservation.Reservation
}

type CreateReservation struct {
	Store  ports.ReservationStore
	Policy ports.PolicyEvaluator
	Saga   *OrderSaga
	Events ports.EventPublisher
	Clock  ports.Clock
	Log    *slog.Logger
	NewID  func() string
}

func (u CreateReservation) Execute(ctx context.Context, cmd CreateReservationCommand) (CreateResult, error) {
	if err := cmd.validate(); err != nil {
		return CreateResult{}, err
	}
	window, err := timerange.New(cmd.Start, cmd.End)
	if err != nil {
		return CreateResult{}, internaltypes.New(internaltypes.KindInvalidRequest, "end time must be after start time")
	}
	fp, err := cmd.fingerprint()
	if err != nil {
		return CreateResult{}, err
	}
	key := idempotency.Key{TenantID: cmd.TenantID, Route: idempotency.RouteCreateReservation, Token: cmd.IdempotencyToken}
	log := loggerOrDefault(u.Log).With(
		slog.String("tenantId", cmd.TenantID),
		slog.String("amenityId", cmd.AmenityID),
		slog.String("idempotencyKey", cmd.IdempotencyToken))

	rec, err := u.Store.FindIdempotency(ctx, key)
	if err != nil {
		return CreateResult{}, serviceError(err, "idempotency lookup")
	}
	if rec != nil {
		return replay(rec, fp)
	}

	var result CreateResult
	err = u.Store.WithinTx(ctx, func(ctx context.Context, tx ports.ReservationTx) error {
		amenity, err := tx.LockAmenity(ctx, cmd.TenantID, cmd.AmenityID)
		if err != nil {
			return err
		}
		// A concurrent request with the same token may have committed while we waited.
		rec, err := tx.FindIdempotency(ctx, key)
		if err != nil {
			return err
		}
		if rec != nil {
			result, err = replay(rec, fp)
			return err
		}

		r, err := u.admit(ctx, tx, cmd, amenity, window)
		if err != nil {
			return err
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		if r.Owes() {
			r.Metadata = u.Saga.Record(r.Metadata, u.Saga.Start(ctx, r, amenity.Name))
			if err := tx.UpdateReservationMetadata(ctx, r.TenantID, r.ID, r.Metadata); err != nil {
				return err
			}
		}

		body, err := json.Marshal(r.View())
		if err != nil {
			return err
		}
		if err := tx.SaveIdempotency(ctx, idempotency.Record{
			Key:         key,
			Fingerprint: fp,
			Status:      http.StatusCreated,
			Body:        body,
			CreatedAt:   r.CreatedAt,
		}); err != nil {
			return err
		}
		result = CreateResult{Status: http.StatusCreated, Body: body, Reservation: &r}
		return nil
	})
	if errors.Is(err, idempotency.ErrDuplicate) {
		// Lost the race to a twin on another connection; its outcome is authoritative.
		rec, ferr := u.Store.FindIdempotency(ctx, key)
		if ferr == nil && rec != nil {
			return replay(rec, fp)
		}
		return CreateResult{}, internaltypes.Wrap(internaltypes.KindUnavailable, err, "idempotency race")
	}
	if err != nil {
		if internaltypes.KindOf(err) == "" {
			log.Error("create reservation failed", slog.Any("error", err))
		}
		return CreateResult{}, serviceError(err, "create reservation")
	}

	if result.Reservation != nil {
		r := *result.Reservation
		log.Info("reservation created",
			slog.String("reservationId", r.ID),
			slog.String("status", string(r.Status)))
		publish(ctx, u.Events, u.Log, reservationEventOf(EventReservationCreated, r, r.CreatedAt))
	}
	return result, nil
}

// admit runs every check that must hold under the amenity lock and builds
// the reservation to insert.
func (u CreateReservation) admit(ctx context.Context, tx ports.ReservationTx, cmd CreateReservationCommand, amenity reservation.Amenity, window timerange.Range) (reservation.Reservation, error) {
	amenity = amenity.WithDefaults()
	if !amenity.Active {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindInvalidRequest, "amenity is not available for reservations")
	}
	now := clockOrSystem(u.Clock).Now()
	if err := amenity.CheckWindow(window, cmd.PartySize, now); err != nil {
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindInvalidRequest, "%s", err.Error())
	}
	if err := DetectConflicts(ctx, tx, cmd.TenantID, cmd.AmenityID, window); err != nil {
		return reservation.Reservation{}, err
	}

	decision := u.Policy.Evaluate(ctx, policy.Request{
		TenantID:      cmd.TenantID,
		CondominiumID: cmd.CondominiumID,
		Action:        policy.ActionCreateReservation,
		Resource:      amenity.Resource(),
		Subject:       cmd.UserID,
		Context: policy.Context{
			AmenityID:   amenity.ID,
			AmenityType: amenity.Type,
			Start:       window.Start,
			End:         window.End,
			PartySize:   cmd.PartySize,
			Capacity:    amenity.Capacity,
			MaxAdvance:  amenity.MaxAdvance,
		},
	})
	if decision.Denied() {
		reason := decision.Reason
		if reason == "" {
			reason = "reservation denied by policy"
		}
		return reservation.Reservation{}, internaltypes.New(internaltypes.KindPolicyDenied, "%s", reason)
	}

	charge := amenity.ChargeAmount
	if fee, ok := decision.FeeOverride(); ok {
		charge = fee
	}
	requiresApproval := decision.RequiresApproval()

	return reservation.Reservation{
		TenantID:         cmd.TenantID,
		ID:               newID(u.NewID),
		CondominiumID:    cmd.CondominiumID,
		AmenityID:        cmd.AmenityID,
		UserID:           cmd.UserID,
		CreatedBy:        cmd.UserID,
		PartySize:        cmd.PartySize,
		Window:           window,
		Status:           reservation.InitialStatus(charge, requiresApproval),
		ChargeAmount:     charge,
		ChargeCurrency:   amenity.ChargeCurrency,
		RequiresApproval: requiresApproval,
		Version:          1,
		Metadata: reservation.Metadata{
			PolicyDecision: decision.Snapshot(),
			IdempotencyKey: cmd.IdempotencyToken,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func replay(rec *idempotency.Record, fingerprint string) (CreateResult, error) {
	if !rec.Matches(fingerprint) {
		return CreateResult{}, internaltypes.New(internaltypes.KindIdempotencyConflict, "idempotency key was already used with a different request")
	}
	return CreateResult{Status: rec.Status, Body: rec.Body, Replayed: true}, nil
}
