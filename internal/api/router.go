package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/provider-availability-scheduling/internal/appointment"
	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/records"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Store
	Records      *records.Service
	PgPool       *pgxpool.Pool // nil in memory mode
	Redis        *redis.Client // nil when locks are process-local
	Logger       zerolog.Logger
	// ReserveLimiter throttles POST /v1/appointments; nil disables it.
	ReserveLimiter *rate.Limiter
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/templates", listTemplatesHandler(cfg.Availability))

		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Get("/template", getTemplateHandler(cfg.Availability))
			r.Put("/template", putTemplateHandler(cfg.Availability))
			r.Put("/template/{name}", putNamedTemplateHandler(cfg.Availability))

			r.Get("/weeks/{offset}", getWeekHandler(cfg.Availability))
			r.Post("/weeks/{offset}/days/{date}/toggle", toggleDayHandler(cfg.Availability))
			r.Post("/weeks/{offset}/days/{date}/slots/{time}/toggle", toggleSlotHandler(cfg.Availability))
		})

		r.With(RateLimitMiddleware(cfg.ReserveLimiter)).
			Post("/appointments", reserveAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/{action}", appointmentActionHandler(cfg.Appointments))

		r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Appointments))
		r.Get("/patients/{patientID}/records", listPatientRecordsHandler(cfg.Records))

		r.Post("/records/{kind}", createRecordHandler(cfg.Records))
		r.Get("/records/{kind}/{id}", getRecordHandler(cfg.Records))
		r.Post("/records/{kind}/{id}/transition", transitionRecordHandler(cfg.Records))
	})

	return r
}
