package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the API surface.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quotes", h.Quote)
		r.Get("/availability", h.Availability)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.Post("/hold", h.PlaceHold)
				r.Post("/confirm", h.ConfirmBooking)
				r.Post("/cancel", h.CancelBooking)
				r.Post("/checkin", h.CheckIn)
			})
		})
	})

	return r
}
