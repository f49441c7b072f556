package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/vega/internal/events"
	"github.com/aristath/vega/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/vega/internal/modules/rebalancing/handlers"
)

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)

	rebalService := rebalancing.NewService(
		rebalancing.NewRebalancer(log), nil, bus, rebalancing.Options{}, log,
	)

	srv := New(Config{
		Log:         log,
		Port:        8080,
		Bus:         bus,
		Rebalancing: rebalancinghandlers.NewHandler(rebalService, log),
		System:      NewSystemHandlers(log, t.TempDir(), nil, nil, nil),
	})
	return srv, bus
}

func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	health := decodeBody(t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "vega", health["service"])

	payload := `{"positions": [
		{"symbol": "VTI", "target_weight": 1.0, "current_price": 100,
		 "lots": [{"shares": 10, "cost_basis": 90, "purchase_date": "2024-01-02"}]}
	]}`
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rebalancing/suggest", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	suggest := decodeBody(t, rec)
	_, hasData := suggest["data"]
	assert.True(t, hasData)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribeStream_TypeFilter(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)

	eventChan := subscribeStream(bus, log, "rebalance_planned")

	bus.Emit(events.ChainAnalyzed, "options", nil)
	bus.Emit(events.RebalancePlanned, "rebalancing", nil)

	require.Len(t, eventChan, 1)
	event := <-eventChan
	assert.Equal(t, events.RebalancePlanned, event.Type)
}

func TestSubscribeStream_AllTypesByDefault(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)

	eventChan := subscribeStream(bus, log, "")

	bus.Emit(events.ChainAnalyzed, "options", nil)
	bus.Emit(events.SnapshotSaved, "portfolio", nil)

	assert.Len(t, eventChan, 2)
}

func TestEventsStream_DeliversEvents(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	handler := NewEventsStreamHandler(bus, log)

	req := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	bus.Emit(events.BackupCompleted, "reliability", events.BackupCompletedData{
		Filename: "vega-backup-2026-01-15-120000.tar.gz",
	})
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `"type":"connected"`)
	assert.Contains(t, body, `"type":"backup_completed"`)
	assert.Contains(t, body, "vega-backup-2026-01-15-120000.tar.gz")
}

func TestEventsSocket_DeliversEvents(t *testing.T) {
	srv, bus := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	msgType, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, msgType)
	assert.Contains(t, string(data), `"type":"connected"`)

	bus.Emit(events.RebalancePlanned, "rebalancing", events.RebalancePlannedData{
		PlanID: "plan-1", Sells: 1, Buys: 2, TaxImpact: -40,
	})

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"rebalance_planned"`)
	assert.Contains(t, string(data), `"plan-1"`)
}
