package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP routing table: the two function endpoints the
// dashboard invokes, and the authenticated table CRUD surface.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/functions/alert-manager", h.handleAlertManager)
	r.Post("/functions/thingspeak-service", h.handleThingSpeak)

	r.Route("/api", func(r chi.Router) {
		r.Get("/locations", h.handleListLocations)
		r.Get("/locations/{id}", h.handleGetLocation)
		r.Get("/alerts", h.handleListAlerts)
		r.Get("/alerts/{id}", h.handleGetAlert)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/profiles/me", h.handleGetProfile)
			r.Put("/profiles/me", h.handleUpdateProfile)
			r.Get("/location-requests", h.handleListLocationRequests)
			r.Post("/location-requests", h.handleCreateLocationRequest)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuthority)

				r.Post("/locations", h.handleCreateLocation)
				r.Delete("/locations/{id}", h.handleDeleteLocation)
				r.Post("/location-requests/{id}/review", h.handleReviewLocationRequest)
			})
		})
	})

	return r
}
