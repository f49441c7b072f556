// Package events provides the in-process event bus used to fan analysis and
// job lifecycle notifications out to the SSE and WebSocket streams.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a category of event
type EventType string

const (
	// PricesSynced - daily price sync job stored new bars
	PricesSynced EventType = "prices_synced"
	// ChainAnalyzed - an options chain analysis completed
	ChainAnalyzed EventType = "chain_analyzed"
	// RiskAnalyzed - a portfolio risk report completed
	RiskAnalyzed EventType = "risk_analyzed"
	// OptimizationCompleted - a max-Sharpe solve finished (converged or not)
	OptimizationCompleted EventType = "optimization_completed"
	// RebalancePlanned - a tax-aware rebalance plan was generated
	RebalancePlanned EventType = "rebalance_planned"
	// SnapshotSaved - the nightly portfolio snapshot was persisted
	SnapshotSaved EventType = "snapshot_saved"
	// BackupCompleted - a backup archive was uploaded
	BackupCompleted EventType = "backup_completed"
	// JobStarted / JobCompleted / JobFailed - scheduler job lifecycle
	JobStarted   EventType = "job_started"
	JobCompleted EventType = "job_completed"
	JobFailed    EventType = "job_failed"
)

// AllTypes returns every event type the bus publishes.
func AllTypes() []EventType {
	return []EventType{
		PricesSynced,
		ChainAnalyzed,
		RiskAnalyzed,
		OptimizationCompleted,
		RebalancePlanned,
		SnapshotSaved,
		BackupCompleted,
		JobStarted,
		JobCompleted,
		JobFailed,
	}
}

// Event is one occurrence published on the bus. Data must be
// JSON-serializable; the stream handlers forward it verbatim.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Type      EventType   `json:"type"`
	Module    string      `json:"module"`
}

// Handler receives published events. Handlers must not block; stream
// handlers buffer internally and drop on overflow.
type Handler func(*Event)

// Bus is a simple synchronous publish/subscribe hub.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish delivers the event to all handlers registered for its type.
func (b *Bus) Publish(e *Event) {
	if e == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}

	b.log.Debug().
		Str("type", string(e.Type)).
		Str("module", e.Module).
		Int("handlers", len(handlers)).
		Msg("Event published")
}

// Emit builds and publishes an event in one call.
func (b *Bus) Emit(t EventType, module string, data interface{}) {
	b.Publish(&Event{
		Type:      t,
		Module:    module,
		Timestamp: time.Now(),
		Data:      data,
	})
}
