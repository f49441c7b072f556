package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rebalancing", func(r chi.Router) {
		r.Post("/suggest", h.HandleSuggest)
		r.Post("/cost-basis", h.HandleCostBasis)
		r.Get("/wash-sales", h.HandleWashSales)
		r.Get("/tax-efficiency", h.HandleTaxEfficiency)
		r.Get("/year-end", h.HandleYearEnd)
	})
}
