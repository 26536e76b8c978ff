package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/provider-availability-scheduling/internal/app"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	providers := flag.Int("providers", 100, "number of providers to create")
	patients := flag.Int("patients", 9000, "number of patients to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Storage != "postgres" {
		log.Fatal().Str("storage", cfg.Storage).Msg("seed writes to Postgres, set STORAGE=postgres")
	}
	// seeding never contends for slots
	cfg.LockBackend = "memory"

	logger := config.NewLogger(cfg, "seed")
	logger.Info().Int("providers", *providers).Int("patients", *patients).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	ids, err := seedProviders(ctx, a.Pool, *providers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}
	if err := applyTemplates(ctx, a, ids, logger); err != nil {
		logger.Fatal().Err(err).Msg("apply templates")
	}
	if err := seedPatients(ctx, a.Pool, *patients, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), gofakeit.RandomString(specialties))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Int("count", count).Msg("providers seeded")
	return ids, nil
}

// applyTemplates gives every provider a random template from the catalog.
func applyTemplates(ctx context.Context, a *app.App, providers []uuid.UUID, logger zerolog.Logger) error {
	names := a.Store.Catalog().Names()
	if len(names) == 0 {
		return fmt.Errorf("template catalog is empty")
	}

	used := make(map[string]int)
	for _, id := range providers {
		name := gofakeit.RandomString(names)
		if _, err := a.Store.ApplyNamedTemplate(ctx, id, name); err != nil {
			return fmt.Errorf("provider %s: %w", id, err)
		}
		used[name]++
	}

	for name, n := range used {
		logger.Info().Str("template", name).Int("providers", n).Msg("templates applied")
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("seeded", end).Int("total", count).Msg("patients seeded")
	}
	return nil
}
