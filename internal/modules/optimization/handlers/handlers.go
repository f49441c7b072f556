// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/optimization"
)

// Handler handles optimization HTTP requests
type Handler struct {
	service *optimization.Service
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service *optimization.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

type seriesPayload struct {
	Dates   []string  `json:"dates"`
	Returns []float64 `json:"returns"`
}

type optimizeRequest struct {
	Symbols      []string                 `json:"symbols"`
	Lookback     int                      `json:"lookback"`
	RiskFreeRate *float64                 `json:"risk_free_rate"`
	Returns      map[string]seriesPayload `json:"returns"`
}

// HandleOptimize handles POST /api/optimization/optimize. Callers either
// provide inline return series or symbols stored in market.db. A solve
// that fails to converge still returns 200 with converged false and
// equal weights.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inline, err := decodeSeriesMap(req.Returns)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	result, err := h.service.Optimize(optimization.Request{
		Symbols:       req.Symbols,
		Lookback:      req.Lookback,
		RiskFreeRate:  req.RiskFreeRate,
		InlineReturns: inline,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, result)
}

func decodeSeriesMap(payloads map[string]seriesPayload) (map[string]*domain.ReturnSeries, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	out := make(map[string]*domain.ReturnSeries, len(payloads))
	for symbol, p := range payloads {
		dates := make([]time.Time, len(p.Dates))
		for i, raw := range p.Dates {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return nil, domain.NewDomainError("optimization", "invalid date: "+raw)
			}
			dates[i] = d
		}
		series, err := domain.NewReturnSeries(symbol, dates, p.Returns)
		if err != nil {
			return nil, err
		}
		out[symbol] = series
	}
	return out, nil
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
		h.log.Error().Err(err).Msg("Optimization request failed")
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
