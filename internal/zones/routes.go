package zones

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vigilia/guard-backend/internal/auth"
	"github.com/vigilia/guard-backend/internal/middleware"
)

func SetupRoutes() http.Handler {
	return routes(auth.SessionInfo{})
}

func routes(fetcher middleware.SubjectFetcher) http.Handler {
	r := chi.NewRouter()

	// Any authenticated account can read zones and verify a point
	r.Group(func(r chi.Router) {
		r.Use(middleware.IdentityMiddleware(fetcher))

		r.Get("/", ListZones)
		r.Get("/export.kml", ExportKML)
		r.Get("/export.geojson", ExportGeoJSON)
		r.Post("/verificar", VerifyPoint)
		r.Get("/asignaciones/activas/{guardia_id}", ActiveAssignmentsForGuard)
		r.Get("/{id}", GetZone)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.IdentityMiddleware(fetcher))
		r.Use(middleware.AdminMiddleware())

		r.Post("/", CreateZone)
		r.Put("/{id}", UpdateZone)
		r.Delete("/{id}", DeleteZone)

		r.Get("/asignaciones", ListAssignments)
		r.Post("/asignaciones", CreateAssignment)
		r.Patch("/asignaciones/{id}", PatchAssignment)
		r.Delete("/asignaciones/{id}", DeleteAssignment)

		r.Get("/alertas", ListAlertsHandler)
		r.Post("/alertas/{id}/resolver", ResolveAlertHandler)
	})

	return r
}
