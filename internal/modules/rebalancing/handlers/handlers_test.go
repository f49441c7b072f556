package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/modules/rebalancing"
)

type stubPositions struct {
	positions []domain.Position
}

func (s stubPositions) Positions() ([]domain.Position, error) {
	return s.positions, nil
}

func newTestRouter(t *testing.T, positions []domain.Position) *chi.Mux {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	service := rebalancing.NewService(
		rebalancing.NewRebalancer(log),
		stubPositions{positions: positions},
		nil,
		rebalancing.Options{},
		log,
	)
	handler := NewHandler(service, log)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func seedLot(t *testing.T, id string, shares, basis float64, day string, longTerm bool) domain.TaxLot {
	t.Helper()
	purchased, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	lot, err := domain.NewTaxLot(id, shares, basis, purchased, longTerm)
	require.NoError(t, err)
	return lot
}

func seedPosition(t *testing.T, symbol string, target, price float64, lots ...domain.TaxLot) domain.Position {
	t.Helper()
	p, err := domain.NewPosition(symbol, target, price, lots)
	require.NoError(t, err)
	return p
}

func doJSON(t *testing.T, router *chi.Mux, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestHandleSuggest_InlineWhatIf(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := doJSON(t, router, http.MethodPost, "/rebalancing/suggest", `{
		"positions": [
			{"symbol": "AAPL", "target_weight": 0.4, "current_price": 100,
			 "lots": [{"shares": 40, "cost_basis": 125, "purchase_date": "2010-01-02"}]},
			{"symbol": "BND", "target_weight": 0.6, "current_price": 80,
			 "lots": [{"shares": 50, "cost_basis": 80, "purchase_date": "2010-01-02"}]}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["id"])

	trades, ok := data["trades"].([]interface{})
	require.True(t, ok)
	require.Len(t, trades, 2)

	sell := trades[0].(map[string]interface{})
	assert.Equal(t, "sell", sell["action"])
	assert.Equal(t, "AAPL", sell["symbol"])
	assert.InDelta(t, 8.0, sell["shares"].(float64), 1e-9)
	assert.InDelta(t, 800.0, sell["value"].(float64), 1e-9)

	buy := trades[1].(map[string]interface{})
	assert.Equal(t, "buy", buy["action"])
	assert.Equal(t, "BND", buy["symbol"])
	assert.InDelta(t, 800.0, buy["value"].(float64), 1e-9)

	// Lot purchased in 2010 is long-term, so the harvested loss is
	// taxed at the long-term rate.
	assert.InDelta(t, -40.0, data["tax_impact"].(float64), 1e-9)
	assert.InDelta(t, 1600.0, data["turnover"].(float64), 1e-9)
	assert.InDelta(t, 0.0, data["remaining_cash"].(float64), 1e-9)
}

func TestHandleSuggest_InvalidBody(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := doJSON(t, router, http.MethodPost, "/rebalancing/suggest", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestHandleSuggest_BadPurchaseDate(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := doJSON(t, router, http.MethodPost, "/rebalancing/suggest", `{
		"positions": [
			{"symbol": "AAPL", "target_weight": 0.5, "current_price": 100,
			 "lots": [{"shares": 10, "cost_basis": 90, "purchase_date": "Jan 2, 2024"}]}
		]
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid purchase date")
}

func TestHandleCostBasis(t *testing.T) {
	router := newTestRouter(t, []domain.Position{
		seedPosition(t, "AAPL", 0.5, 100, seedLot(t, "only", 10, 80, "2024-01-02", true)),
	})

	rec, body := doJSON(t, router, http.MethodPost, "/rebalancing/cost-basis",
		`{"symbol": "AAPL", "shares_to_sell": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, "fifo", data["recommended_method"])

	methods, ok := data["methods"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, methods, 4)
}

func TestHandleCostBasis_UnknownSymbol(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := doJSON(t, router, http.MethodPost, "/rebalancing/cost-basis",
		`{"symbol": "TSLA", "shares_to_sell": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "TSLA")
}

func TestHandleWashSales(t *testing.T) {
	router := newTestRouter(t, []domain.Position{
		seedPosition(t, "AAPL", 0.5, 100, seedLot(t, "old", 10, 80, "2024-01-02", true)),
	})

	rec, body := doJSON(t, router, http.MethodGet, "/rebalancing/wash-sales", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 0.0, data["count"].(float64), 1e-9)
}

func TestHandleTaxEfficiency(t *testing.T) {
	router := newTestRouter(t, []domain.Position{
		seedPosition(t, "AAPL", 0.5, 100, seedLot(t, "gain", 10, 40, "2024-01-02", true)),
	})

	rec, body := doJSON(t, router, http.MethodGet, "/rebalancing/tax-efficiency", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "tax_efficiency_score")
	assert.InDelta(t, 600.0, data["unrealized_gains"].(float64), 1e-9)
}

func TestHandleYearEnd(t *testing.T) {
	router := newTestRouter(t, []domain.Position{
		seedPosition(t, "AAPL", 0.5, 100, seedLot(t, "gain", 10, 40, "2024-01-02", true)),
	})

	rec, body := doJSON(t, router, http.MethodGet, "/rebalancing/year-end", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "tax_projection")
	assert.Contains(t, data, "action_items")
}

func TestRegisterRoutes(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(nil, log)

	router := chi.NewRouter()
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	})
}
