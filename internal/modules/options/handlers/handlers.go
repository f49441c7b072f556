// Package handlers provides HTTP handlers for options pricing and chain
// analysis.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/options"
)

// Handler handles options HTTP requests
type Handler struct {
	service *options.Service
	log     zerolog.Logger
}

// NewHandler creates a new options handler
func NewHandler(service *options.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "options").Logger(),
	}
}

type priceRequest struct {
	Spot              float64  `json:"spot"`
	Strike            float64  `json:"strike"`
	TimeToExpiryYears float64  `json:"time_to_expiry_years"`
	Volatility        float64  `json:"volatility"`
	RiskFreeRate      *float64 `json:"risk_free_rate"`
	OptionType        string   `json:"option_type"`
}

// riskFreeOrDefault falls back to the service-configured rate when the
// request omits one.
func (h *Handler) riskFreeOrDefault(rate *float64) float64 {
	if rate != nil {
		return *rate
	}
	return h.service.RiskFreeRate()
}

// HandlePrice handles POST /api/options/price
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.service.Price(
		req.Spot, req.Strike, req.TimeToExpiryYears, req.Volatility,
		h.riskFreeOrDefault(req.RiskFreeRate), domain.OptionType(req.OptionType),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, quote)
}

// HandleProbability handles POST /api/options/probability
func (h *Handler) HandleProbability(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	probability, err := h.service.Probability(
		req.Spot, req.Strike, req.TimeToExpiryYears, req.Volatility,
		h.riskFreeOrDefault(req.RiskFreeRate), domain.OptionType(req.OptionType),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"probability": probability,
	})
}

type coveredCallRequest struct {
	Spot              float64  `json:"spot"`
	Strike            float64  `json:"strike"`
	TimeToExpiryYears float64  `json:"time_to_expiry_years"`
	Volatility        float64  `json:"volatility"`
	Premium           float64  `json:"premium"`
	RiskFreeRate      *float64 `json:"risk_free_rate"`
}

// HandleCoveredCall handles POST /api/options/covered-call
func (h *Handler) HandleCoveredCall(w http.ResponseWriter, r *http.Request) {
	var req coveredCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	analysis, err := h.service.CoveredCall(
		req.Spot, req.Strike, req.TimeToExpiryYears, req.Volatility,
		req.Premium, h.riskFreeOrDefault(req.RiskFreeRate),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, analysis)
}

type contractPayload struct {
	Symbol            string  `json:"symbol"`
	Expiration        string  `json:"expiration"`
	Strike            float64 `json:"strike"`
	OptionType        string  `json:"option_type"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	OpenInterest      int64   `json:"open_interest"`
	Volume            int64   `json:"volume"`
}

type chainRequest struct {
	Underlying string            `json:"underlying"`
	Spot       float64           `json:"spot"`
	Contracts  []contractPayload `json:"contracts"`
}

// HandleAnalyzeChain handles POST /api/options/chain/analyze. Expirations
// are YYYY-MM-DD dates; every contract is validated before analysis.
func (h *Handler) HandleAnalyzeChain(w http.ResponseWriter, r *http.Request) {
	var req chainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contracts := make([]domain.OptionContract, 0, len(req.Contracts))
	for _, p := range req.Contracts {
		expiration, err := time.Parse("2006-01-02", p.Expiration)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid expiration date: "+p.Expiration)
			return
		}

		contract, err := domain.NewOptionContract(
			p.Symbol, expiration, p.Strike, domain.OptionType(p.OptionType),
			p.Bid, p.Ask, p.ImpliedVolatility, p.OpenInterest, p.Volume,
		)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		contracts = append(contracts, contract)
	}

	chain, err := domain.NewOptionsChain(req.Underlying, req.Spot, contracts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	analysis, err := h.service.AnalyzeChain(chain)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, analysis)
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeServiceError maps service errors onto HTTP statuses: invalid input
// is 400, insufficient data is 422, anything else 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsDomainError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsInsufficientData(err):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Options request failed")
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
