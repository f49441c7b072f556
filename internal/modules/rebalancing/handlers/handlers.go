// Package handlers provides HTTP handlers for tax-aware rebalancing
// and tax planning.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/rebalancing"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service *rebalancing.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

type lotPayload struct {
	Shares       float64 `json:"shares"`
	CostBasis    float64 `json:"cost_basis"`
	PurchaseDate string  `json:"purchase_date"`
}

type positionPayload struct {
	Symbol       string       `json:"symbol"`
	TargetWeight float64      `json:"target_weight"`
	CurrentPrice float64      `json:"current_price"`
	Lots         []lotPayload `json:"lots"`
}

type suggestRequest struct {
	Tolerance      *float64          `json:"tolerance"`
	TaxSensitivity *float64          `json:"tax_sensitivity"`
	Positions      []positionPayload `json:"positions"`
}

// HandleSuggest handles POST /api/rebalancing/suggest. Positions in the
// body run a what-if plan; otherwise the stored portfolio is used.
func (h *Handler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inline, err := decodePositions(req.Positions)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	plan, err := h.service.Suggest(rebalancing.SuggestRequest{
		Tolerance:       req.Tolerance,
		TaxSensitivity:  req.TaxSensitivity,
		InlinePositions: inline,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, plan)
}

type costBasisRequest struct {
	Symbol       string  `json:"symbol"`
	SharesToSell float64 `json:"shares_to_sell"`
}

// HandleCostBasis handles POST /api/rebalancing/cost-basis
func (h *Handler) HandleCostBasis(w http.ResponseWriter, r *http.Request) {
	var req costBasisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comparison, err := h.service.CostBasis(req.Symbol, req.SharesToSell)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, comparison)
}

// HandleWashSales handles GET /api/rebalancing/wash-sales
func (h *Handler) HandleWashSales(w http.ResponseWriter, r *http.Request) {
	risks, err := h.service.WashSales()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"risks": risks,
		"count": len(risks),
	})
}

// HandleTaxEfficiency handles GET /api/rebalancing/tax-efficiency
func (h *Handler) HandleTaxEfficiency(w http.ResponseWriter, r *http.Request) {
	efficiency, err := h.service.TaxEfficiency()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, efficiency)
}

// HandleYearEnd handles GET /api/rebalancing/year-end
func (h *Handler) HandleYearEnd(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.YearEnd()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, plan)
}

// decodePositions converts inline payloads into domain positions. Lots
// get fresh ids and their holding period is derived from today.
func decodePositions(payloads []positionPayload) ([]domain.Position, error) {
	if len(payloads) == 0 {
		return nil, nil
	}

	now := time.Now()
	positions := make([]domain.Position, 0, len(payloads))
	for _, pp := range payloads {
		lots := make([]domain.TaxLot, 0, len(pp.Lots))
		for _, lp := range pp.Lots {
			purchased, err := time.Parse("2006-01-02", lp.PurchaseDate)
			if err != nil {
				return nil, domain.NewDomainError("rebalancing", "invalid purchase date: "+lp.PurchaseDate)
			}
			lot, err := domain.NewTaxLot(uuid.New().String(), lp.Shares, lp.CostBasis, purchased, false)
			if err != nil {
				return nil, err
			}
			lot.IsLongTerm = lot.LongTermAt(now)
			lots = append(lots, lot)
		}

		p, err := domain.NewPosition(pp.Symbol, pp.TargetWeight, pp.CurrentPrice, lots)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
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
		h.log.Error().Err(err).Msg("Rebalancing request failed")
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
