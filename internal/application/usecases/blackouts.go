package usecases

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/domain/timerange"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

type Blackouts struct {
	Store  ports.BlackoutStore
	Events ports.EventPublisher
	Clock  ports.Clock
	Log    *slog.Logger
	NewID  func() string
}

type CreateBlackoutCommand struct {
	TenantID      string
	CondominiumID string
	AmenityID     string
	Start         time.Time
	End           time.Time
	Reason        string
	Source        blackout.Source
	CreatedBy     string
	WorkOrderID   string
}

func (u Blackouts) Create(ctx context.Context, cmd CreateBlackoutCommand) (blackout.Blackout, error) {
	if cmd.TenantID == "" || cmd.CondominiumID == "" {
		return blackout.Blackout{}, internaltypes.New(internaltypes.KindInvalidRequest, "tenant and condominium are required")
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return blackout.Blackout{}, internaltypes.New(internaltypes.KindInvalidRequest, "reason is required")
	}
	window, err := timerange.New(cmd.Start, cmd.End)
	if err != nil {
		return blackout.Blackout{}, internaltypes.New(internaltypes.KindInvalidRequest, "end time must be after start time")
	}
	src := cmd.Source
	if src == "" {
		src = blackout.SourceAdmin
	}
	now := clockOrSystem(u.Clock).Now()
	b := blackout.Blackout{
		TenantID:      cmd.TenantID,
		ID:            newID(u.NewID),
		CondominiumID: cmd.CondominiumID,
		AmenityID:     cmd.AmenityID,
		Window:        window,
		Reason:        strings.TrimSpace(cmd.Reason),
		Source:        src,
		Metadata: blackout.Metadata{
			CreatedBy:   cmd.CreatedBy,
			CreatedAt:   now,
			WorkOrderID: cmd.WorkOrderID,
		},
		CreatedAt: now,
	}
	if err := u.Store.CreateBlackout(ctx, b); err != nil {
		return blackout.Blackout{}, serviceError(err, "create blackout")
	}
	loggerOrDefault(u.Log).Info("blackout created",
		slog.String("tenantId", b.TenantID),
		slog.String("blackoutId", b.ID),
		slog.String("amenityId", b.AmenityID),
		slog.String("source", string(b.Source)))
	publish(ctx, u.Events, u.Log, blackoutEventOf(EventBlackoutCreated, b, now))
	return b, nil
}

func (u Blackouts) List(ctx context.Context, f blackout.Filter) ([]blackout.Blackout, error) {
	if f.TenantID == "" {
		return nil, internaltypes.New(internaltypes.KindInvalidRequest, "tenant is required")
	}
	out, err := u.Store.ListBlackouts(ctx, f)
	if err != nil {
		return nil, serviceError(err, "list blackouts")
	}
	return out, nil
}

func (u Blackouts) Get(ctx context.Context, tenantID, id string) (blackout.Blackout, error) {
	b, err := u.Store.GetBlackout(ctx, tenantID, id)
	if err != nil {
		return blackout.Blackout{}, serviceError(err, "get blackout")
	}
	return b, nil
}

// Delete removes an administrator-created blackout. Maintenance and system
// blackouts are owned by their producers.
func (u Blackouts) Delete(ctx context.Context, tenantID, id string, actor Actor) error {
	if !actor.Admin {
		return internaltypes.New(internaltypes.KindForbidden, "only administrators can delete blackouts")
	}
	b, err := u.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !b.Deletable() {
		return internaltypes.New(internaltypes.KindForbidden, "only ADMIN blackouts can be deleted (source %s)", b.Source)
	}
	if err := u.Store.DeleteBlackout(ctx, tenantID, id); err != nil {
		return serviceError(err, "delete blackout")
	}
	publish(ctx, u.Events, u.Log, blackoutEventOf(EventBlackoutDeleted, b, clockOrSystem(u.Clock).Now()))
	return nil
}

// CheckConflicts lists blackouts covering the amenity during window.
func (u Blackouts) CheckConflicts(ctx context.Context, tenantID, amenityID string, start, end time.Time) ([]blackout.Blackout, error) {
	window, err := timerange.New(start, end)
	if err != nil {
		return nil, internaltypes.New(internaltypes.KindInvalidRequest, "end time must be after start time")
	}
	out, err := u.Store.OverlappingBlackouts(ctx, tenantID, amenityID, window)
	if err != nil {
		return nil, serviceError(err, "check blackout conflicts")
	}
	return out, nil
}

type MaintenanceCommand struct {
	TenantID      string
	CondominiumID string
	AmenityID     string
	WorkOrderID   string
	Start         time.Time
	End           time.Time
	Reason        string
}

// CreateMaintenance registers a blackout on behalf of a maintenance work order.
func (u Blackouts) CreateMaintenance(ctx context.Context, cmd MaintenanceCommand) (blackout.Blackout, error) {
	if strings.TrimSpace(cmd.WorkOrderID) == "" {
		return blackout.Blackout{}, internaltypes.New(internaltypes.KindInvalidRequest, "work order id is required")
	}
	return u.Create(ctx, CreateBlackoutCommand{
		TenantID:      cmd.TenantID,
		CondominiumID: cmd.CondominiumID,
		AmenityID:     cmd.AmenityID,
		Start:         cmd.Start,
		End:           cmd.End,
		Reason:        blackout.MaintenanceReason(cmd.Reason),
		Source:        blackout.SourceMaintenance,
		CreatedBy:     "system",
		WorkOrderID:   cmd.WorkOrderID,
	})
}

// ClearMaintenance removes every blackout created for workOrderID.
func (u Blackouts) ClearMaintenance(ctx context.Context, tenantID, workOrderID string) (int, error) {
	if strings.TrimSpace(workOrderID) == "" {
		return 0, internaltypes.New(internaltypes.KindInvalidRequest, "work order id is required")
	}
	removed, err := u.Store.DeleteBlackoutsByWorkOrder(ctx, tenantID, workOrderID)
	if err != nil {
		return 0, serviceError(err, "clear maintenance blackouts")
	}
	now := clockOrSystem(u.Clock).Now()
	events := make([]ports.Event, 0, len(removed))
	for _, b := range removed {
		events = append(events, blackoutEventOf(EventBlackoutDeleted, b, now))
	}
	publish(ctx, u.Events, u.Log, events...)
	return len(removed), nil
}
