// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventInstrumentConnected    EventType = "INSTRUMENT_CONNECTED"
	EventInstrumentDisconnected EventType = "INSTRUMENT_DISCONNECTED"
	EventInstrumentError        EventType = "INSTRUMENT_ERROR"
	EventExchangeCompleted      EventType = "EXCHANGE_COMPLETED"
	EventExchangeExpired        EventType = "EXCHANGE_EXPIRED"
	EventExchangeFailed         EventType = "EXCHANGE_FAILED"
	EventHealthUpdate           EventType = "HEALTH_UPDATE"
)

// Event severities
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// InstrumentEvent represents an event in the system
type InstrumentEvent struct {
	ID         uuid.UUID  `json:"id"`
	EventType  EventType  `json:"event_type"`
	Instrument string     `json:"instrument,omitempty"`
	Data       JSONObject `json:"data,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Source     string     `json:"source"`
	Severity   string     `json:"severity"`
}

// NewInstrumentEvent builds an event stamped with a fresh ID
func NewInstrumentEvent(eventType EventType, instrument, severity string, data JSONObject) *InstrumentEvent {
	return &InstrumentEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Instrument: instrument,
		Data:       data,
		Timestamp:  time.Now(),
		Source:     "instrument-service",
		Severity:   severity,
	}
}

// ExchangeEventData summarises an exchange for subscribers
type ExchangeEventData struct {
	ExchangeID uuid.UUID `json:"exchange_id"`
	Request    string    `json:"request"`
	Lines      []string  `json:"lines"`
	Terminated bool      `json:"terminated"`
	DurationMs int64     `json:"duration_ms"`
	Error      *string   `json:"error,omitempty"`
}

// HealthUpdateEventData represents periodic link health
type HealthUpdateEventData struct {
	Total        int      `json:"total"`
	Connected    int      `json:"connected"`
	Errored      int      `json:"errored"`
	Disconnected []string `json:"disconnected,omitempty"`
}
