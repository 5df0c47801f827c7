package bot

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/account/premium"
	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/account/read"
	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/account/reset"
	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/account/resetall"
	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/broadcast"
	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/health"
	"github.com/sergeycommit/ai-tg-bot/internal/http/handlers/migrate"
	"github.com/sergeycommit/ai-tg-bot/internal/http/middlewarectx"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/jwt"
	"github.com/sergeycommit/ai-tg-bot/internal/metrics"
)

// AdminService операции, доступные через административный API.
type AdminService interface {
	read.Service
	reset.Service
	resetall.Service
	premium.Service
	broadcast.Service
	migrate.Service
}

// RouteDeps зависимости маршрутов административного API.
type RouteDeps struct {
	Admin   AdminService
	Pinger  health.Pinger
	Tokens  middlewarectx.TokenParser
	Metrics *metrics.Metrics
	// MetricsHandler отдаёт метрики по /metrics.
	MetricsHandler http.Handler
	Limiter        *rate.Limiter
}

// RegisterRoutes регистрирует все маршруты административного API.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps RouteDeps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/health", health.New(logger, deps.Pinger).ServeHTTP)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Logger)
		if deps.Limiter != nil {
			r.Use(middlewarectx.RateLimitMiddleware(deps.Limiter, logger))
		}
		r.Use(middlewarectx.JWTMiddleware(deps.Tokens, jwt.RoleAdmin, logger))

		r.Post("/accounts/reset", resetall.New(logger, deps.Admin).ServeHTTP)
		r.Get("/accounts/{id}", read.New(logger, deps.Admin).ServeHTTP)
		r.Post("/accounts/{id}/reset", reset.New(logger, deps.Admin).ServeHTTP)
		r.Post("/accounts/{id}/premium", premium.New(logger, deps.Admin).ServeHTTP)
		r.Post("/broadcast", broadcast.New(logger, deps.Admin).ServeHTTP)
		r.Post("/migrate", migrate.New(logger, deps.Admin).ServeHTTP)
	})
}
