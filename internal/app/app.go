// Package app wires configuration into the storage, locking and event
// backends shared by the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
	"github.com/hackgods/provider-availability-scheduling/internal/db"
	"github.com/hackgods/provider-availability-scheduling/internal/events"
	"github.com/hackgods/provider-availability-scheduling/internal/records"
	redisclient "github.com/hackgods/provider-availability-scheduling/internal/redis"
)

type App struct {
	Config       config.Config
	Logger       zerolog.Logger
	Pool         *pgxpool.Pool // nil with memory storage
	Redis        *redis.Client // nil with the memory lock backend
	Store        *availability.Store
	Appointments *appointment.Service
	Records      *records.Service
	// AppointmentRepo is exposed so memory-mode callers can add patients and providers.
	AppointmentRepo appointment.Repository

	closers []func() error
}

// New connects every configured backend. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *App, err error) {
	if err := cfg.ValidateDuration(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var (
		availabilityRepo availability.Repository
		recordsRepo      records.Repository
	)

	switch cfg.Storage {
	case "postgres":
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		a.Pool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { a.Pool.Close(); return nil })
		logger.Info().Msg("connected to Postgres")

		if cfg.AutoMigrate {
			n, err := db.NewMigrator(a.Pool).Up(ctx)
			if err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Int("applied", n).Msg("migrations up to date")
		}

		a.AppointmentRepo = appointment.NewPgRepository(a.Pool)
		availabilityRepo = availability.NewPgRepository(a.Pool)
		recordsRepo = records.NewPgRepository(a.Pool)
	case "memory":
		a.AppointmentRepo = appointment.NewMemoryRepository()
		availabilityRepo = availability.NewMemoryRepository()
		recordsRepo = records.NewMemoryRepository()
		logger.Warn().Msg("using in-memory storage, data is lost on exit")
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	var locker redisclient.Locker
	switch cfg.LockBackend {
	case "redis":
		a.Redis, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Redis.Close)
		locker = redisclient.NewRedisLocker(a.Redis, cfg.LockTTL, cfg.LockWait)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	default:
		locker = redisclient.NewKeyedMutex(cfg.LockWait)
		logger.Warn().Msg("slot locks are process-local, run a single api-server instance")
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	catalog := availability.DefaultCatalog()
	if cfg.TemplatesPath != "" {
		loaded, err := availability.LoadCatalog(cfg.TemplatesPath)
		if err != nil {
			return nil, err
		}
		catalog.Replace(loaded)
		logger.Info().Str("path", cfg.TemplatesPath).Strs("templates", catalog.Names()).Msg("template catalog loaded")
	}

	policy, err := availability.ParseDayTogglePolicy(cfg.DayTogglePolicy)
	if err != nil {
		return nil, err
	}

	a.Store, err = availability.NewStore(availabilityRepo, a.AppointmentRepo, catalog, availability.StoreConfig{
		Grid:      cfg.Grid,
		DayToggle: policy,
		CacheSize: cfg.GridCacheSize,
		CacheTTL:  cfg.GridCacheTTL,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.Appointments = appointment.NewService(a.AppointmentRepo, a.Store, locker, publisher, cfg, logger)
	a.Records = records.NewService(recordsRepo, logger)
	return a, nil
}

func newPublisher(cfg config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		bus := events.NewBus()
		bus.Subscribe(func(_ context.Context, ev events.Event) {
			logger.Debug().
				Str("event", ev.Type).
				Str("appointment_id", ev.AppointmentID.String()).
				Msg("event")
		})
		return bus, nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
