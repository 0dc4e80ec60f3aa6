// Package cli assembles the service from configuration for the commands in cmd.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/db"
	"github.com/example/amenity-reservations/internal/infrastructure/config"
	"github.com/example/amenity-reservations/internal/infrastructure/crypto"
	"github.com/example/amenity-reservations/internal/infrastructure/events"
	"github.com/example/amenity-reservations/internal/infrastructure/finance"
	"github.com/example/amenity-reservations/internal/infrastructure/identity"
	"github.com/example/amenity-reservations/internal/infrastructure/memory"
	"github.com/example/amenity-reservations/internal/infrastructure/passes"
	"github.com/example/amenity-reservations/internal/infrastructure/policy"
	"github.com/example/amenity-reservations/internal/infrastructure/postgres"
	"github.com/example/amenity-reservations/internal/interfaces/web"
	"github.com/example/amenity-reservations/internal/logging"
	"github.com/example/amenity-reservations/internal/migrate"
	"github.com/example/amenity-reservations/internal/scheduler"
)

// Store is everything the use cases need from persistence.
type Store interface {
	ports.ReservationStore
	ports.AmenityStore
	ports.BlackoutStore
	ports.AttendanceStore
}

// App is the fully wired service.
type App struct {
	Config config.Config
	Log    *slog.Logger
	Store  Store
	DB     *db.DB
	Events events.Publisher

	Create       usecases.CreateReservation
	Manage       usecases.ManageReservations
	Availability usecases.Availability
	Attendance   usecases.Attendance
	Blackouts    usecases.Blackouts
	Amenities    usecases.Amenities
	Housekeeping usecases.Housekeeping
	Tokens       web.TokenValidator
}

// Logger builds the process logger from configuration.
func Logger(cfg config.Config) *slog.Logger {
	return logging.New(nil, logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

// OpenStore connects the configured store. For Postgres it optionally applies
// pending migrations first. The returned *db.DB is nil for the memory store.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger, migrateUp bool) (Store, *db.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil, nil
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		applied, err := migrate.Up(ctx, d)
		if err != nil {
			d.Close()
			return nil, nil, err
		}
		for _, f := range applied {
			log.Info("applied migration", slog.String("file", f))
		}
	}
	return postgres.New(d), d, nil
}

// Build wires every adapter and use case from cfg.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger, migrateUp bool) (*App, error) {
	store, d, err := OpenStore(ctx, cfg, log, migrateUp)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Log: log, Store: store, DB: d}
	if err := app.wire(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	cfg, log := a.Config, a.Log
	clock := ports.SystemClock{}

	pub, err := events.New(events.Config{
		Driver:       cfg.EventsDriver,
		KafkaBrokers: cfg.KafkaBrokers,
		TopicPrefix:  cfg.TopicPrefix,
		AMQPURL:      cfg.AMQPURL,
		Exchange:     cfg.AMQPExchange,
	}, log)
	if err != nil {
		return err
	}
	a.Events = pub

	fallback, err := policy.NewFallback(cfg.PolicyRestrictedPattern, clock.Now)
	if err != nil {
		return fmt.Errorf("policy restricted pattern: %w", err)
	}
	gateway := policy.NewGateway(
		policy.NewClient(cfg.PolicyURL, cfg.PolicyTimeout, clock.Now),
		policy.NewBreaker(cfg.PolicyBreakerThreshold, cfg.PolicyBreakerCooldown, clock.Now),
		fallback,
		log,
	)

	saga := &usecases.OrderSaga{
		Orders:            finance.New(cfg.FinanceURL, cfg.FinanceTimeout),
		Timeout:           cfg.FinanceTimeout,
		ExpirationMinutes: int(cfg.OrderExpiration / time.Minute),
		Log:               log,
	}

	var (
		issuer   ports.PassIssuer
		verifier ports.ProofVerifier
	)
	if cfg.PassesEnabled() {
		m := passes.New(cfg.PassHashKey, cfg.PassBlockKey, clock.Now)
		issuer, verifier = m, m
	}
	if cfg.IdentityURL != "" {
		verifier = identity.New(cfg.IdentityURL, cfg.IdentityTimeout)
	}
	if verifier == nil {
		log.Warn("no check-in verifier configured; only manual check-in will succeed")
	}

	tokens, err := web.NewJWTValidator(cfg.JWTSecret, cfg.JWTPublicKey)
	if err != nil {
		return err
	}
	a.Tokens = tokens

	a.Create = usecases.CreateReservation{Store: a.Store, Policy: gateway, Saga: saga, Events: pub, Clock: clock, Log: log}
	a.Manage = usecases.ManageReservations{Store: a.Store, Saga: saga, Events: pub, Clock: clock, Log: log}
	a.Availability = usecases.Availability{Store: a.Store}
	a.Attendance = usecases.Attendance{
		Reservations:     a.Store,
		Store:            a.Store,
		Proofs:           verifier,
		Passes:           issuer,
		Hasher:           crypto.NewProofHasher(cfg.ValidationSalt),
		Events:           pub,
		Clock:            clock,
		Log:              log,
		BiometricEnabled: cfg.BiometricCheckIn,
	}
	a.Blackouts = usecases.Blackouts{Store: a.Store, Events: pub, Clock: clock, Log: log}
	a.Amenities = usecases.Amenities{Store: a.Store, Clock: clock}
	a.Housekeeping = usecases.Housekeeping{Store: a.Store, Saga: saga, Events: pub, Clock: clock, Log: log, OrderWindow: cfg.OrderExpiration}
	return nil
}

// Server returns the HTTP API bound to the app's use cases.
func (a *App) Server() *web.Server {
	var health web.HealthFunc
	if a.DB != nil {
		health = a.DB.Ping
	}
	return web.New(web.Deps{
		Create:       a.Create,
		Manage:       a.Manage,
		Availability: a.Availability,
		Attendance:   a.Attendance,
		Blackouts:    a.Blackouts,
		Tokens:       a.Tokens,
		Health:       health,
		Log:          a.Log,
	})
}

// Scheduler returns the housekeeping loop.
func (a *App) Scheduler() *scheduler.Scheduler {
	return &scheduler.Scheduler{
		Tasks:    scheduler.Housekeeping(a.Housekeeping),
		Interval: a.Config.SchedulerInterval,
		Log:      a.Log,
	}
}

func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Log.Warn("close event publisher", slog.Any("error", err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
