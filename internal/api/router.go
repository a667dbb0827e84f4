package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/calmclinic/therapy-booking/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(SessionMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Therapist directory and availability
	r.Get("/therapists", listTherapistsHandler(cfg.Service))
	r.Get("/therapists/{id}/slots", availableSlotsHandler(cfg.Service))

	// Working hours
	r.Get("/therapists/{id}/working-hours", listWorkingHoursHandler(cfg.Service))
	r.Post("/therapists/{id}/working-hours", addWorkingHourHandler(cfg.Service))
	r.Put("/working-hours/{id}", updateWorkingHourHandler(cfg.Service))
	r.Delete("/working-hours/{id}", deleteWorkingHourHandler(cfg.Service))

	// Booking requests
	r.Post("/booking-requests", createRequestHandler(cfg.Service))
	r.Get("/booking-requests", listRequestsHandler(cfg.Service))
	r.Post("/booking-requests/{id}/approve", approveRequestHandler(cfg.Service))
	r.Post("/booking-requests/{id}/reject", rejectRequestHandler(cfg.Service))
	r.Post("/booking-requests/{id}/cancel", cancelRequestHandler(cfg.Service))

	// Appointments
	r.Post("/appointments", scheduleAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Patch("/appointments/{id}", rescheduleAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Service))

	return r
}
