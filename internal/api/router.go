package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/token"
)

// TokenService is the part of *token.Service the HTTP layer calls.
type TokenService interface {
	Allocate(ctx context.Context, req token.AllocateRequest) (*token.AllocateResult, error)
	Cancel(ctx context.Context, tokenID uuid.UUID) (*opd.Doctor, bool, error)
	CheckIn(ctx context.Context, tokenID uuid.UUID) (*opd.Token, error)
	Complete(ctx context.Context, tokenID uuid.UUID) (*opd.Token, error)
	MarkNoShow(ctx context.Context, tokenID uuid.UUID) (*opd.Token, error)
	Events(ctx context.Context, tokenID uuid.UUID) ([]token.Event, error)
	Schedule(ctx context.Context, doctorID string) (*opd.Doctor, error)
	Doctors(ctx context.Context) ([]token.DoctorSummary, error)
	Stats(ctx context.Context) ([]token.DoctorStats, error)
}

type RouterConfig struct {
	Service TokenService
	PgPool  *pgxpool.Pool // optional
	Redis   *redis.Client // optional
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	r.Route("/api", func(r chi.Router) {
		r.Post("/tokens/allocate", allocateTokenHandler(svc))
		r.Delete("/tokens/{id}", cancelTokenHandler(svc))
		r.Post("/tokens/{id}/check-in", transitionTokenHandler(svc.CheckIn))
		r.Post("/tokens/{id}/complete", transitionTokenHandler(svc.Complete))
		r.Post("/tokens/{id}/no-show", transitionTokenHandler(svc.MarkNoShow))
		r.Get("/tokens/{id}/events", tokenEventsHandler(svc))

		r.Get("/doctors", listDoctorsHandler(svc))
		r.Get("/doctors/{id}/schedule", scheduleHandler(svc))
		r.Get("/stats", statsHandler(svc))
	})

	return otelhttp.NewHandler(r, "opd-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
