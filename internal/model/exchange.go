// internal/model/exchange.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeKind represents what was done on the link
type ExchangeKind string

const (
	ExchangeKindQuery ExchangeKind = "QUERY"
	ExchangeKindWrite ExchangeKind = "WRITE"
	ExchangeKindRead  ExchangeKind = "READ"
)

// Exchange is the persisted record of one request/response on an instrument link
type Exchange struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Instrument    string       `json:"instrument" db:"instrument"`
	Kind          ExchangeKind `json:"kind" db:"kind"`
	Request       string       `json:"request" db:"request"`
	ResponseLines []string     `json:"response_lines" db:"response_lines"`
	ByteCount     int          `json:"byte_count" db:"byte_count"`
	Terminated    bool         `json:"terminated" db:"terminated"`
	Polls         int          `json:"polls" db:"polls"`
	ErrorMessage  *string      `json:"error_message,omitempty" db:"error_message"`
	DurationMs    int64        `json:"duration_ms" db:"duration_ms"`
	StartedAt     time.Time    `json:"started_at" db:"started_at"`
	CompletedAt   time.Time    `json:"completed_at" db:"completed_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// Failed checks if the exchange ended with a transport or protocol error
func (e *Exchange) Failed() bool {
	return e.ErrorMessage != nil
}

// Expired checks if a response was expected but no terminator arrived
func (e *Exchange) Expired() bool {
	return e.Kind != ExchangeKindWrite && !e.Terminated && !e.Failed()
}

// NewExchange starts a record for a request on the named instrument
func NewExchange(instrument string, kind ExchangeKind, request string, startedAt time.Time) *Exchange {
	return &Exchange{
		ID:         uuid.New(),
		Instrument: instrument,
		Kind:       kind,
		Request:    request,
		StartedAt:  startedAt,
		CreatedAt:  startedAt,
	}
}
