// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// memoryRepository keeps exchanges in process when no database is
// configured. The oldest records are evicted past the limit.
type memoryRepository struct {
	mutex     sync.RWMutex
	exchanges []*model.Exchange
	byID      map[uuid.UUID]*model.Exchange
	limit     int
	logger    *zap.Logger
}

// NewMemoryRepository creates an in-memory exchange repository holding at
// most limit records
func NewMemoryRepository(limit int, logger *zap.Logger) ExchangeRepository {
	if limit <= 0 {
		limit = 10000
	}
	return &memoryRepository{
		byID:   make(map[uuid.UUID]*model.Exchange),
		limit:  limit,
		logger: logger,
	}
}

// Create stores a copy of the exchange
func (r *memoryRepository) Create(ctx context.Context, exchange *model.Exchange) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byID[exchange.ID]; exists {
		return fmt.Errorf("failed to create exchange: duplicate id %s", exchange.ID)
	}

	stored := copyExchange(exchange)
	r.exchanges = append(r.exchanges, stored)
	r.byID[stored.ID] = stored

	if over := len(r.exchanges) - r.limit; over > 0 {
		for _, old := range r.exchanges[:over] {
			delete(r.byID, old.ID)
		}
		r.exchanges = append([]*model.Exchange(nil), r.exchanges[over:]...)
		r.logger.Debug("Evicted old exchanges", zap.Int("count", over))
	}

	return nil
}

// GetByID retrieves an exchange by ID
func (r *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exchange, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	exchange, exists := r.byID[id]
	if !exists {
		return nil, fmt.Errorf("exchange %s: %w", id, ErrNotFound)
	}
	return copyExchange(exchange), nil
}

// ListByInstrument returns the most recent exchanges of an instrument
func (r *memoryRepository) ListByInstrument(ctx context.Context, instrument string, limit int) ([]*model.Exchange, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	limit = clampLimit(limit)
	exchanges := []*model.Exchange{}
	for _, e := range r.exchanges {
		if e.Instrument == instrument {
			exchanges = append(exchanges, copyExchange(e))
		}
	}

	sort.SliceStable(exchanges, func(i, j int) bool {
		return exchanges[i].CreatedAt.After(exchanges[j].CreatedAt)
	})
	if len(exchanges) > limit {
		exchanges = exchanges[:limit]
	}
	return exchanges, nil
}

// DeleteOlderThan removes exchanges created before the given time
func (r *memoryRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	kept := r.exchanges[:0]
	var deleted int64
	for _, e := range r.exchanges {
		if e.CreatedAt.Before(olderThan) {
			delete(r.byID, e.ID)
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.exchanges = kept
	return deleted, nil
}

// Count returns the number of stored exchanges, optionally for one instrument
func (r *memoryRepository) Count(ctx context.Context, instrument string) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if instrument == "" {
		return int64(len(r.exchanges)), nil
	}
	var count int64
	for _, e := range r.exchanges {
		if e.Instrument == instrument {
			count++
		}
	}
	return count, nil
}

// Stats summarises stored exchanges
func (r *memoryRepository) Stats(ctx context.Context, instrument string) (*ExchangeStats, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := &ExchangeStats{Instrument: instrument}
	var totalDuration int64
	for _, e := range r.exchanges {
		if instrument != "" && e.Instrument != instrument {
			continue
		}
		stats.Total++
		totalDuration += e.DurationMs
		if e.Failed() {
			stats.Failed++
		}
		if e.Expired() {
			stats.Unterminated++
		}
		if stats.LastExchange == nil || e.CreatedAt.After(*stats.LastExchange) {
			created := e.CreatedAt
			stats.LastExchange = &created
		}
	}
	if stats.Total > 0 {
		stats.AvgDurationMs = float64(totalDuration) / float64(stats.Total)
	}
	return stats, nil
}

func copyExchange(e *model.Exchange) *model.Exchange {
	c := *e
	c.ResponseLines = append([]string(nil), e.ResponseLines...)
	if e.ErrorMessage != nil {
		msg := *e.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}
