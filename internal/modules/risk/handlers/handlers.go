// Package handlers provides HTTP handlers for portfolio risk analysis.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/risk"
)

// Handler handles risk HTTP requests
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

type seriesPayload struct {
	Dates   []string  `json:"dates"`
	Returns []float64 `json:"returns"`
}

type analyzeRequest struct {
	Weights      map[string]float64       `json:"weights"`
	Lookback     int                      `json:"lookback"`
	RiskFreeRate *float64                 `json:"risk_free_rate"`
	MarketProxy  string                   `json:"market_proxy"`
	Returns      map[string]seriesPayload `json:"returns"`
	ProxyReturns *seriesPayload           `json:"proxy_returns"`
}

// HandleAnalyze handles POST /api/risk/analyze. Callers either provide
// inline return series or weights over symbols stored in market.db.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inline, err := decodeSeriesMap(req.Returns)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var proxy *domain.ReturnSeries
	if req.ProxyReturns != nil {
		proxy, err = decodeSeries(req.MarketProxy, *req.ProxyReturns)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
	}

	report, err := h.service.Analyze(risk.Request{
		Weights:       req.Weights,
		Lookback:      req.Lookback,
		RiskFreeRate:  req.RiskFreeRate,
		MarketProxy:   req.MarketProxy,
		InlineReturns: inline,
		InlineProxy:   proxy,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, report)
}

func decodeSeriesMap(payloads map[string]seriesPayload) (map[string]*domain.ReturnSeries, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	out := make(map[string]*domain.ReturnSeries, len(payloads))
	for symbol, p := range payloads {
		series, err := decodeSeries(symbol, p)
		if err != nil {
			return nil, err
		}
		out[symbol] = series
	}
	return out, nil
}

func decodeSeries(symbol string, p seriesPayload) (*domain.ReturnSeries, error) {
	dates := make([]time.Time, len(p.Dates))
	for i, raw := range p.Dates {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, domain.NewDomainError("risk_analysis", "invalid date: "+raw)
		}
		dates[i] = d
	}
	return domain.NewReturnSeries(symbol, dates, p.Returns)
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
// is 400, insufficient history is 422, anything else 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsDomainError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsInsufficientData(err):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Risk request failed")
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
