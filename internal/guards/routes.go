package guards

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vigilia/guard-backend/internal/auth"
	"github.com/vigilia/guard-backend/internal/middleware"
)

func SetupRoutes(h Handler, limiter *middleware.SubjectLimiter) http.Handler {
	return routes(h, auth.SessionInfo{}, limiter)
}

func routes(h Handler, fetcher middleware.SubjectFetcher, limiter *middleware.SubjectLimiter) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.IdentityMiddleware(fetcher))
		r.Use(middleware.GuardMiddleware())

		r.Get("/estado", h.Estado)

		r.With(middleware.RateLimitBySubject(limiter)).Post("/", h.UpdateUbicacion)
	})

	return r
}
