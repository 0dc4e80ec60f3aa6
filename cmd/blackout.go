package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/interfaces/cli"
)

func newBlackoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blackout",
		Short: "Manage blackouts outside the HTTP API",
	}
	maint := &cobra.Command{
		Use:   "maintenance",
		Short: "Blackouts owned by maintenance work orders",
	}
	maint.AddCommand(newMaintenanceCreateCmd())
	maint.AddCommand(newMaintenanceClearCmd())
	cmd.AddCommand(maint)
	return cmd
}

func newMaintenanceCreateCmd() *cobra.Command {
	var (
		mc         usecases.MaintenanceCommand
		start, end string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Block an amenity (or the whole condominium) for a work order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if mc.Start, err = time.Parse(time.RFC3339, start); err != nil {
				return fmt.Errorf("invalid --start (want RFC3339): %w", err)
			}
			if mc.End, err = time.Parse(time.RFC3339, end); err != nil {
				return fmt.Errorf("invalid --end (want RFC3339): %w", err)
			}
			mc.Start, mc.End = mc.Start.UTC(), mc.End.UTC()

			return withStore(cmd, func(ctx context.Context, store cli.Store) error {
				b, err := usecases.Blackouts{Store: store}.CreateMaintenance(ctx, mc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created blackout id=%s start=%s end=%s\n",
					b.ID, b.Window.Start.Format(time.RFC3339), b.Window.End.Format(time.RFC3339))
				return nil
			})
		},
	}

	c.Flags().StringVar(&mc.TenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&mc.CondominiumID, "condominium", "", "condominium id")
	c.Flags().StringVar(&mc.AmenityID, "amenity", "", "amenity id (empty blocks every amenity in the condominium)")
	c.Flags().StringVar(&mc.WorkOrderID, "work-order", "", "maintenance work order id")
	c.Flags().StringVar(&mc.Reason, "reason", "", "reason shown to residents")
	c.Flags().StringVar(&start, "start", "", "start time (RFC3339)")
	c.Flags().StringVar(&end, "end", "", "end time (RFC3339)")
	for _, f := range []string{"tenant", "condominium", "work-order", "reason", "start", "end"} {
		_ = c.MarkFlagRequired(f)
	}
	return c
}

func newMaintenanceClearCmd() *cobra.Command {
	var tenantID, workOrderID string

	c := &cobra.Command{
		Use:   "clear",
		Short: "Remove every blackout created for a work order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store cli.Store) error {
				n, err := usecases.Blackouts{Store: store}.ClearMaintenance(ctx, tenantID, workOrderID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d blackout(s) for work order %s\n", n, workOrderID)
				return nil
			})
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&workOrderID, "work-order", "", "maintenance work order id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("work-order")
	return c
}
