// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"instrument-service/internal/model"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// ExchangeRepository defines exchange data access operations
type ExchangeRepository interface {
	Create(ctx context.Context, exchange *model.Exchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exchange, error)
	ListByInstrument(ctx context.Context, instrument string, limit int) ([]*model.Exchange, error)
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	Count(ctx context.Context, instrument string) (int64, error)
	Stats(ctx context.Context, instrument string) (*ExchangeStats, error)
}

// ExchangeStats summarises the recorded exchanges of one instrument, or of
// all instruments when the name is empty
type ExchangeStats struct {
	Instrument    string     `json:"instrument,omitempty"`
	Total         int64      `json:"total"`
	Failed        int64      `json:"failed"`
	Unterminated  int64      `json:"unterminated"`
	AvgDurationMs float64    `json:"avg_duration_ms"`
	LastExchange  *time.Time `json:"last_exchange,omitempty"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// clampLimit bounds a caller supplied page size
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
