package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/vega/internal/events"
)

// socketWriteTimeout bounds a single frame write.
const socketWriteTimeout = 5 * time.Second

// EventsSocketHandler streams bus events to clients over WebSocket.
type EventsSocketHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsSocketHandler creates a new WebSocket stream handler.
func NewEventsSocketHandler(bus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		bus: bus,
		log: log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. The connection is push-only;
// the optional `types` query parameter filters event types like the
// SSE stream.
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// CloseRead cancels the context when the client goes away and
	// discards any frames it sends.
	ctx := conn.CloseRead(r.Context())

	eventChan := subscribeStream(h.bus, h.log, r.URL.Query().Get("types"))

	h.log.Info().Msg("Client connected to event socket")

	if err := h.write(ctx, conn, encodePayload(h.log, map[string]interface{}{
		"type": "connected",
	})); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event socket")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.write(ctx, conn, encodePayload(h.log, eventPayload(event))); err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write failed, closing")
				return
			}

		case <-heartbeat.C:
			payload := encodePayload(h.log, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			if err := h.write(ctx, conn, payload); err != nil {
				return
			}
		}
	}
}

func (h *EventsSocketHandler) write(ctx context.Context, conn *websocket.Conn, payload string) error {
	writeCtx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, []byte(payload))
}
