package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Storage:         "memory",
		LockBackend:     "memory",
		LockTTL:         time.Second,
		LockWait:        time.Second,
		Grid:            calendar.DefaultGridParams(),
		DayTogglePolicy: "reset",
	}
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Redis)

	repo, ok := a.AppointmentRepo.(*appointment.MemoryRepository)
	require.True(t, ok)

	provider, patient := uuid.New(), uuid.New()
	repo.AddProvider(appointment.Provider{ID: provider, Name: "Dr. Lin"})
	repo.AddPatient(appointment.Patient{ID: patient, Name: "Sam"})

	ctx := context.Background()
	_, err = a.Store.ApplyNamedTemplate(ctx, provider, "extended")
	require.NoError(t, err)

	week, err := a.Store.GetWeek(ctx, provider, 1)
	require.NoError(t, err)
	saturday := week.Days[5]
	require.Equal(t, time.Saturday, saturday.DayOfWeek)
	assert.True(t, saturday.IsWorkingDay)

	appt, err := a.Appointments.Reserve(ctx, appointment.ReserveRequest{
		ProviderID: provider,
		PatientID:  patient,
		Date:       saturday.Date,
		Time:       600,
	})
	require.NoError(t, err)
	assert.Equal(t, provider, appt.ProviderID)
}

func TestNew_RedisLocksAndCatalogFile(t *testing.T) {
	mr := miniredis.RunT(t)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - name: night
    days:
      monday: {start: "18:00", end: "23:00"}
`), 0o644))

	cfg := memoryConfig()
	cfg.LockBackend = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.TemplatesPath = path

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.Redis)
	assert.Equal(t, []string{"night"}, a.Store.Catalog().Names())
}

func TestNew_Errors(t *testing.T) {
	cfg := memoryConfig()
	cfg.DayTogglePolicy = "sometimes"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorIs(t, err, calendar.ErrConfiguration)

	cfg = memoryConfig()
	cfg.TemplatesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.DefaultDuration = 45 * time.Minute
	_, err = New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorIs(t, err, calendar.ErrConfiguration)

	cfg = memoryConfig()
	cfg.Storage = "sqlite"
	_, err = New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
