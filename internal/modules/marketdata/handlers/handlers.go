// Package handlers provides HTTP handlers for market data operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/marketdata"
)

// Handler handles market data HTTP requests
type Handler struct {
	service  *marketdata.Service
	lookback int
	log      zerolog.Logger
}

// NewHandler creates a new market data handler. lookback is the default
// history window in trading days.
func NewHandler(service *marketdata.Service, lookback int, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		lookback: lookback,
		log:      log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleGetHistory handles GET /api/marketdata/{symbol}/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	lookback := h.queryInt(r, "lookback", h.lookback)

	bars, err := h.service.GetHistory(symbol, lookback)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

// HandleSeedBars handles POST /api/marketdata/{symbol}/bars. The body is a
// JSON array of daily bars to store, for backfilling without a feed key.
func (h *Handler) HandleSeedBars(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var bars []domain.PriceBar
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: expected an array of bars")
		return
	}

	written, err := h.service.SeedBars(symbol, bars)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol": symbol,
		"stored": written,
	})
}

// HandleGetReturns handles GET /api/marketdata/{symbol}/returns
func (h *Handler) HandleGetReturns(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	lookback := h.queryInt(r, "lookback", h.lookback)

	series, err := h.service.GetReturns(symbol, lookback)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol":       symbol,
		"returns":      series.Returns,
		"dates":        series.Dates,
		"observations": series.Len(),
	})
}

// HandleGetVolatility handles GET /api/marketdata/{symbol}/volatility
func (h *Handler) HandleGetVolatility(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	window := h.queryInt(r, "window", 20)
	lookback := h.queryInt(r, "lookback", h.lookback)

	report, err := h.service.GetVolatility(symbol, window, lookback)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, report)
}

// HandleGetIndicators handles GET /api/marketdata/{symbol}/indicators
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	lookback := h.queryInt(r, "lookback", h.lookback)

	report, err := h.service.GetIndicators(symbol, lookback)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, report)
}

// HandleGetLatest handles GET /api/marketdata/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	prices, err := h.service.GetLatestPrices()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"prices": prices,
		"count":  len(prices),
	})
}

func (h *Handler) queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
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
		h.log.Error().Err(err).Msg("Market data request failed")
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
