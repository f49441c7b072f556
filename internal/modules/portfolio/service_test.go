package portfolio

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
)

type mockPriceProvider struct {
	prices map[string]float64
	err    error
	calls  int
}

func (m *mockPriceProvider) GetLatestPrices() (map[string]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.prices, nil
}

func setupSnapshotDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE portfolio_snapshots (
			id TEXT PRIMARY KEY,
			taken_at TEXT NOT NULL,
			total_value REAL NOT NULL,
			position_count INTEGER NOT NULL,
			payload BLOB NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestService(t *testing.T, prices PriceProvider, bus *events.Bus) *Service {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewPositionRepository(setupPortfolioDB(t), log)
	repo.now = func() time.Time { return repoClock }
	snapshots := NewSnapshotRepository(setupSnapshotDB(t), log)

	svc := NewService(repo, snapshots, prices, bus, log)
	svc.now = func() time.Time { return repoClock }
	return svc
}

func parseDay(t *testing.T, day string) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	return date
}

func floatPtr(v float64) *float64 { return &v }

func TestSetTarget_Validations(t *testing.T) {
	svc := newTestService(t, nil, nil)

	tests := []struct {
		name   string
		symbol string
		weight float64
		price  *float64
	}{
		{"empty symbol", "", 0.5, floatPtr(100)},
		{"negative weight", "AAPL", -0.1, floatPtr(100)},
		{"weight above one", "AAPL", 1.2, floatPtr(100)},
		{"zero price", "AAPL", 0.5, floatPtr(0)},
		{"new position without price", "AAPL", 0.5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetTarget(tt.symbol, tt.weight, tt.price)
			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err))
		})
	}
}

func TestSetTarget_UpdateKeepsStoredPrice(t *testing.T) {
	svc := newTestService(t, nil, nil)

	created, err := svc.SetTarget("AAPL", 0.4, floatPtr(190))
	require.NoError(t, err)
	assert.InDelta(t, 190.0, created.CurrentPrice, 1e-9)

	updated, err := svc.SetTarget("AAPL", 0.3, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, updated.TargetWeight, 1e-9)
	assert.InDelta(t, 190.0, updated.CurrentPrice, 1e-9)
}

func TestAddLot_AssignsIDAndHoldingTerm(t *testing.T) {
	svc := newTestService(t, nil, nil)
	_, err := svc.SetTarget("AAPL", 0.5, floatPtr(190))
	require.NoError(t, err)

	longHeld, err := svc.AddLot("AAPL", 10, 150, parseDay(t, "2024-06-01"))
	require.NoError(t, err)
	assert.NotEmpty(t, longHeld.ID)
	assert.True(t, longHeld.IsLongTerm)

	recent, err := svc.AddLot("AAPL", 5, 180, parseDay(t, "2025-12-20"))
	require.NoError(t, err)
	assert.False(t, recent.IsLongTerm)
	assert.NotEqual(t, longHeld.ID, recent.ID)
}

func TestAddLot_RejectsFutureDate(t *testing.T) {
	svc := newTestService(t, nil, nil)
	_, err := svc.SetTarget("AAPL", 0.5, floatPtr(190))
	require.NoError(t, err)

	_, err = svc.AddLot("AAPL", 10, 150, parseDay(t, "2026-02-01"))
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err))
}

func TestWeights_UsesLatestQuotes(t *testing.T) {
	prices := &mockPriceProvider{prices: map[string]float64{"AAPL": 210}}
	svc := newTestService(t, prices, nil)

	_, err := svc.SetTarget("AAPL", 0.5, floatPtr(200))
	require.NoError(t, err)
	_, err = svc.SetTarget("MSFT", 0.5, floatPtr(400))
	require.NoError(t, err)
	_, err = svc.AddLot("AAPL", 10, 150, parseDay(t, "2024-06-01"))
	require.NoError(t, err)
	_, err = svc.AddLot("MSFT", 5, 410, parseDay(t, "2025-03-01"))
	require.NoError(t, err)

	weights, err := svc.Weights()
	require.NoError(t, err)
	require.Len(t, weights, 2)

	// AAPL revalued at the quoted 210: 2100 of 4100 total.
	assert.InDelta(t, 2100.0/4100.0, weights["AAPL"], 1e-9)
	assert.InDelta(t, 2000.0/4100.0, weights["MSFT"], 1e-9)
	assert.Equal(t, 1, prices.calls)
}

func TestWeights_QuoteFailureFallsBackToStoredPrices(t *testing.T) {
	prices := &mockPriceProvider{err: errors.New("market data unavailable")}
	svc := newTestService(t, prices, nil)

	_, err := svc.SetTarget("AAPL", 1.0, floatPtr(200))
	require.NoError(t, err)
	_, err = svc.AddLot("AAPL", 10, 150, parseDay(t, "2024-06-01"))
	require.NoError(t, err)

	weights, err := svc.Weights()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, weights["AAPL"], 1e-9)
}

func TestWeights_EmptyPortfolio(t *testing.T) {
	svc := newTestService(t, nil, nil)

	weights, err := svc.Weights()
	require.NoError(t, err)
	assert.Empty(t, weights)
}

func TestTakeSnapshot_RoundTrip(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)

	var saved events.SnapshotSavedData
	var published int
	bus.Subscribe(events.SnapshotSaved, func(e *events.Event) {
		published++
		data, ok := e.Data.(events.SnapshotSavedData)
		require.True(t, ok)
		saved = data
	})

	svc := newTestService(t, nil, bus)
	_, err := svc.SetTarget("AAPL", 0.6, floatPtr(200))
	require.NoError(t, err)
	_, err = svc.SetTarget("MSFT", 0.4, floatPtr(400))
	require.NoError(t, err)
	_, err = svc.AddLot("AAPL", 10, 150, parseDay(t, "2024-06-01"))
	require.NoError(t, err)
	_, err = svc.AddLot("MSFT", 5, 410, parseDay(t, "2025-03-01"))
	require.NoError(t, err)

	before, err := svc.LatestSnapshot()
	require.NoError(t, err)
	assert.Nil(t, before)

	require.NoError(t, svc.TakeSnapshot())

	snapshot, err := svc.LatestSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.NotEmpty(t, snapshot.ID)
	assert.WithinDuration(t, repoClock, snapshot.TakenAt, time.Second)
	assert.InDelta(t, 4000.0, snapshot.TotalValue, 1e-9)
	require.Len(t, snapshot.Positions, 2)

	aapl := snapshot.Positions[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.InDelta(t, 10.0, aapl.Shares, 1e-9)
	assert.InDelta(t, 2000.0, aapl.MarketValue, 1e-9)
	assert.InDelta(t, 0.5, aapl.Weight, 1e-9)
	assert.InDelta(t, 0.6, aapl.TargetWeight, 1e-9)
	assert.InDelta(t, 500.0, aapl.UnrealizedPnL, 1e-9)

	msft := snapshot.Positions[1]
	assert.InDelta(t, -50.0, msft.UnrealizedPnL, 1e-9)

	assert.Equal(t, 1, published)
	assert.Equal(t, snapshot.ID, saved.SnapshotID)
	assert.InDelta(t, 4000.0, saved.TotalValue, 1e-9)
	assert.Equal(t, 2, saved.Positions)
}

func TestTakeSnapshot_NoRepository(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewPositionRepository(setupPortfolioDB(t), log)
	svc := NewService(repo, nil, nil, nil, log)

	require.Error(t, svc.TakeSnapshot())
}
