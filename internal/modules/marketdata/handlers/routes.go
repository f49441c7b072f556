package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/marketdata", func(r chi.Router) {
		r.Get("/latest", h.HandleGetLatest)
		r.Get("/{symbol}/history", h.HandleGetHistory)
		r.Get("/{symbol}/returns", h.HandleGetReturns)
		r.Get("/{symbol}/volatility", h.HandleGetVolatility)
		r.Get("/{symbol}/indicators", h.HandleGetIndicators)
		r.Post("/{symbol}/bars", h.HandleSeedBars)
	})
}
