// Package handlers provides HTTP handlers for portfolio positions and
// tax lots.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

type positionPayload struct {
	Symbol       string          `json:"symbol"`
	TargetWeight float64         `json:"target_weight"`
	CurrentPrice float64         `json:"current_price"`
	Shares       float64         `json:"shares"`
	MarketValue  float64         `json:"market_value"`
	AverageCost  float64         `json:"average_cost"`
	Lots         []domain.TaxLot `json:"lots"`
}

func toPayload(p domain.Position) positionPayload {
	lots := p.Lots
	if lots == nil {
		lots = []domain.TaxLot{}
	}
	return positionPayload{
		Symbol:       p.Symbol,
		TargetWeight: p.TargetWeight,
		CurrentPrice: p.CurrentPrice,
		Shares:       p.Shares(),
		MarketValue:  p.MarketValue(),
		AverageCost:  p.AverageCost(),
		Lots:         lots,
	}
}

// HandleGetPositions handles GET /api/portfolio/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	payloads := make([]positionPayload, 0, len(positions))
	for _, p := range positions {
		payloads = append(payloads, toPayload(p))
	}

	h.writeData(w, map[string]interface{}{
		"positions":   payloads,
		"total_value": domain.TotalMarketValue(positions),
	})
}

// HandleGetPosition handles GET /api/portfolio/positions/{symbol}
func (h *Handler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	position, found, err := h.service.Position(symbol)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, "position not found")
		return
	}

	h.writeData(w, toPayload(position))
}

// HandleGetSnapshot handles GET /api/portfolio/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.LatestSnapshot()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot recorded yet")
		return
	}

	h.writeData(w, snapshot)
}

type updatePositionRequest struct {
	TargetWeight float64  `json:"target_weight"`
	CurrentPrice *float64 `json:"current_price"`
}

// HandleUpdatePosition handles PUT /api/portfolio/positions/{symbol}.
// Creates the position when it does not exist yet.
func (h *Handler) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req updatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	position, err := h.service.SetTarget(symbol, req.TargetWeight, req.CurrentPrice)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, toPayload(position))
}

type addLotRequest struct {
	Shares       float64 `json:"shares"`
	CostBasis    float64 `json:"cost_basis"`
	PurchaseDate string  `json:"purchase_date"`
}

// HandleAddLot handles POST /api/portfolio/positions/{symbol}/lots
func (h *Handler) HandleAddLot(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req addLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purchaseDate, err := time.Parse("2006-01-02", req.PurchaseDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid purchase date: "+req.PurchaseDate)
		return
	}

	lot, err := h.service.AddLot(symbol, req.Shares, req.CostBasis, purchaseDate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, lot)
}

// HandleDeleteLot handles DELETE /api/portfolio/positions/{symbol}/lots/{id}
func (h *Handler) HandleDeleteLot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.RemoveLot(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "lot not found")
		return
	}

	h.writeData(w, map[string]string{"deleted": id})
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeServiceError maps service errors onto HTTP statuses: invalid
// input is 400, insufficient history is 422, anything else 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsDomainError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsInsufficientData(err):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Portfolio request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
