package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vega/internal/modules/options"
)

func newTestHandler() *Handler {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	service := options.NewService(options.NewAnalyzer(0.03, log), nil, nil, 0.03, log)
	return NewHandler(service, log)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandlePrice(t *testing.T) {
	handler := newTestHandler()

	// Risk-free rate omitted: the service default of 3% applies
	body := `{
		"spot": 100, "strike": 100, "time_to_expiry_years": 0.5,
		"volatility": 0.2, "option_type": "call"
	}`
	req := httptest.NewRequest("POST", "/api/options/price", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandlePrice(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	response := decodeResponse(t, w)
	assert.Contains(t, response, "metadata")

	data := response["data"].(map[string]interface{})
	assert.InDelta(t, 6.371, data["price"].(float64), 1e-3)
	assert.False(t, data["expired"].(bool))

	greeks := data["greeks"].(map[string]interface{})
	assert.InDelta(t, 0.5702, greeks["delta"].(float64), 1e-4)
}

func TestHandlePrice_ExplicitRate(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"spot": 100, "strike": 100, "time_to_expiry_years": 0.5,
		"volatility": 0.2, "risk_free_rate": 0.05, "option_type": "call"
	}`
	req := httptest.NewRequest("POST", "/api/options/price", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandlePrice(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.InDelta(t, 6.8887, data["price"].(float64), 1e-3)
}

func TestHandlePrice_InvalidBody(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest("POST", "/api/options/price", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	handler.HandlePrice(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "invalid request body", response["error"])
}

func TestHandlePrice_InvalidInputs(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"spot": 100, "strike": 100, "time_to_expiry_years": 0.5,
		"volatility": -0.2, "option_type": "call"
	}`
	req := httptest.NewRequest("POST", "/api/options/price", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandlePrice(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response["error"], "volatility")
}

func TestHandleProbability(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"spot": 100, "strike": 100, "time_to_expiry_years": 0.5,
		"volatility": 0.2, "option_type": "call"
	}`
	req := httptest.NewRequest("POST", "/api/options/probability", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleProbability(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// At the money with a small positive drift: N(d2) just above one half
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.InDelta(t, 0.514, data["probability"].(float64), 1e-3)
}

func TestHandleCoveredCall(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"spot": 100, "strike": 105, "time_to_expiry_years": 0.25,
		"volatility": 0.2, "premium": 2.5
	}`
	req := httptest.NewRequest("POST", "/api/options/covered-call", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleCoveredCall(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.InDelta(t, 7.5, data["max_profit"].(float64), 1e-9)
	assert.InDelta(t, 97.5, data["breakeven"].(float64), 1e-9)
	assert.InDelta(t, 2.5, data["yield"].(float64), 1e-9)
	assert.InDelta(t, 10.0, data["annualized_yield"].(float64), 1e-9)
	assert.NotNil(t, data["greeks"])
}

func TestHandleCoveredCall_NegativePremium(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"spot": 100, "strike": 105, "time_to_expiry_years": 0.25,
		"volatility": 0.2, "premium": -1
	}`
	req := httptest.NewRequest("POST", "/api/options/covered-call", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleCoveredCall(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func chainBody() string {
	return `{
		"underlying": "SPY",
		"spot": 100,
		"contracts": [
			{
				"symbol": "SPY270115C00100000", "expiration": "2027-01-15",
				"strike": 100, "option_type": "call",
				"bid": 6.2, "ask": 6.5, "implied_volatility": 0.2,
				"open_interest": 1200, "volume": 300
			},
			{
				"symbol": "SPY270115P00100000", "expiration": "2027-01-15",
				"strike": 100, "option_type": "put",
				"bid": 4.8, "ask": 5.1, "implied_volatility": 0.22,
				"open_interest": 900, "volume": 150
			}
		]
	}`
}

func TestHandleAnalyzeChain(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest("POST", "/api/options/chain/analyze", strings.NewReader(chainBody()))
	w := httptest.NewRecorder()

	handler.HandleAnalyzeChain(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "SPY", data["underlying"])
	assert.Equal(t, float64(2), data["contracts"])
	assert.InDelta(t, 0.5, data["put_call_ratio"].(float64), 1e-9)
	assert.Contains(t, data, "greeks")
	assert.Contains(t, data, "iv_surface")
	assert.Contains(t, data, "strike_clusters")
}

func TestHandleAnalyzeChain_BadExpiration(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"underlying": "SPY", "spot": 100,
		"contracts": [{
			"symbol": "X", "expiration": "Jan 15, 2027", "strike": 100,
			"option_type": "call", "bid": 1, "ask": 1.2,
			"implied_volatility": 0.2, "open_interest": 10, "volume": 1
		}]
	}`
	req := httptest.NewRequest("POST", "/api/options/chain/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleAnalyzeChain(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response["error"], "invalid expiration date")
}

func TestHandleAnalyzeChain_InvalidContract(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"underlying": "SPY", "spot": 100,
		"contracts": [{
			"symbol": "X", "expiration": "2027-01-15", "strike": -5,
			"option_type": "call", "bid": 1, "ask": 1.2,
			"implied_volatility": 0.2, "open_interest": 10, "volume": 1
		}]
	}`
	req := httptest.NewRequest("POST", "/api/options/chain/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleAnalyzeChain(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response["error"], "strike")
}

func TestRegisterRoutes(t *testing.T) {
	handler := newTestHandler()

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	req := httptest.NewRequest("POST", "/api/options/chain/analyze", strings.NewReader(chainBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
