package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/positions", h.HandleGetPositions)
		r.Get("/positions/{symbol}", h.HandleGetPosition)
		r.Put("/positions/{symbol}", h.HandleUpdatePosition)
		r.Post("/positions/{symbol}/lots", h.HandleAddLot)
		r.Delete("/positions/{symbol}/lots/{id}", h.HandleDeleteLot)
		r.Get("/snapshot", h.HandleGetSnapshot)
	})
}
