package main

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-availability-scheduling/internal/app"
	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
)

// seedDemo fills an in-memory deployment with a few fake providers and
// patients so the API is usable without Postgres.
func seedDemo(ctx context.Context, a *app.App, providers, patients int, logger zerolog.Logger) error {
	repo, ok := a.AppointmentRepo.(*appointment.MemoryRepository)
	if !ok {
		return nil
	}

	templates := a.Store.Catalog().Names()
	if len(templates) == 0 {
		return fmt.Errorf("template catalog is empty")
	}

	for i := 0; i < providers; i++ {
		specialty := gofakeit.RandomString([]string{"General Practice", "Cardiology", "Dermatology", "Pediatrics"})
		p := appointment.Provider{ID: uuid.New(), Name: "Dr. " + gofakeit.LastName(), Specialty: &specialty}
		repo.AddProvider(p)

		tmpl := templates[gofakeit.Number(0, len(templates)-1)]
		if _, err := a.Store.ApplyNamedTemplate(ctx, p.ID, tmpl); err != nil {
			return fmt.Errorf("apply %s to demo provider: %w", tmpl, err)
		}
		logger.Info().Str("provider_id", p.ID.String()).Str("name", p.Name).Str("template", tmpl).Msg("demo provider")
	}

	for i := 0; i < patients; i++ {
		email := gofakeit.Email()
		p := appointment.Patient{ID: uuid.New(), Name: gofakeit.Name(), Email: &email}
		repo.AddPatient(p)
		logger.Info().Str("patient_id", p.ID.String()).Str("name", p.Name).Msg("demo patient")
	}
	return nil
}
