package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/domain/reservation"
	"github.com/example/amenity-reservations/internal/infrastructure/config"
	"github.com/example/amenity-reservations/internal/interfaces/cli"
)

func newAmenityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amenity",
		Short: "Manage bookable amenities",
	}
	cmd.AddCommand(newAmenityUpsertCmd())
	cmd.AddCommand(newAmenityShowCmd())
	return cmd
}

func newAmenityUpsertCmd() *cobra.Command {
	var (
		a        reservation.Amenity
		charge   string
		rules    string
		inactive bool
	)

	c := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update an amenity and its booking bounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if a.ChargeAmount, err = decimal.NewFromString(charge); err != nil {
				return fmt.Errorf("invalid --charge: %w", err)
			}
			if rules != "" {
				if err := json.Unmarshal([]byte(rules), &a.Rules); err != nil {
					return fmt.Errorf("invalid --rules (want a JSON object): %w", err)
				}
			}
			a.Active = !inactive

			return withStore(cmd, func(ctx context.Context, store cli.Store) error {
				saved, err := usecases.Amenities{Store: store}.Upsert(ctx, a)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved amenity tenant=%s id=%s capacity=%d duration=%s..%s advance=%s..%s charge=%s %s\n",
					saved.TenantID, saved.ID, saved.Capacity, saved.MinDuration, saved.MaxDuration,
					saved.MinAdvance, saved.MaxAdvance, saved.ChargeAmount.StringFixed(2), saved.ChargeCurrency)
				return nil
			})
		},
	}

	c.Flags().StringVar(&a.TenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&a.ID, "id", "", "amenity id")
	c.Flags().StringVar(&a.CondominiumID, "condominium", "", "condominium id")
	c.Flags().StringVar(&a.LocalCode, "local-code", "", "code used as the policy resource (defaults to id)")
	c.Flags().StringVar(&a.Name, "name", "", "display name")
	c.Flags().StringVar(&a.Type, "type", "", "amenity type (pool, gym, bbq, ...)")
	c.Flags().IntVar(&a.Capacity, "capacity", 1, "maximum party size")
	c.Flags().DurationVar(&a.MinDuration, "min-duration", reservation.DefaultMinDuration, "shortest reservation")
	c.Flags().DurationVar(&a.MaxDuration, "max-duration", reservation.DefaultMaxDuration, "longest reservation")
	c.Flags().DurationVar(&a.MinAdvance, "min-advance", reservation.DefaultMinAdvance, "how far ahead a reservation must start")
	c.Flags().DurationVar(&a.MaxAdvance, "max-advance", reservation.DefaultMaxAdvance, "how far ahead a reservation may start")
	c.Flags().BoolVar(&a.CheckInRequired, "check-in-required", false, "require attendance check-in")
	c.Flags().DurationVar(&a.CheckInWindow, "check-in-window", reservation.DefaultCheckInWindow, "check-in tolerance around the start time")
	c.Flags().StringVar(&charge, "charge", "0", "reservation fee")
	c.Flags().StringVar(&a.ChargeCurrency, "currency", reservation.DefaultCurrency, "fee currency")
	c.Flags().StringVar(&rules, "rules", "", "free-form rules as a JSON object")
	c.Flags().BoolVar(&inactive, "inactive", false, "mark the amenity as not bookable")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("condominium")
	_ = c.MarkFlagRequired("name")
	return c
}

func newAmenityShowCmd() *cobra.Command {
	var tenantID, id string

	c := &cobra.Command{
		Use:   "show",
		Short: "Print an amenity as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store cli.Store) error {
				a, err := store.GetAmenity(ctx, tenantID, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			})
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&id, "id", "", "amenity id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("id")
	return c
}

// withStore opens the configured Postgres store, applies migrations and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store cli.Store) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("%s requires STORE_DRIVER=%s", cmd.CommandPath(), config.StorePostgres)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, d, err := cli.OpenStore(ctx, cfg, cli.Logger(cfg), true)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, store)
}
