package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all options routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/options", func(r chi.Router) {
		r.Post("/price", h.HandlePrice)
		r.Post("/probability", h.HandleProbability)
		r.Post("/covered-call", h.HandleCoveredCall)
		r.Post("/chain/analyze", h.HandleAnalyzeChain)
	})
}
