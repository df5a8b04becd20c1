// internal/repository/exchange_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"instrument-service/internal/database"
	"instrument-service/internal/model"
)

// exchangeRepository implements ExchangeRepository on postgres
type exchangeRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewExchangeRepository creates a new postgres exchange repository
func NewExchangeRepository(db *database.DB, logger *zap.Logger) ExchangeRepository {
	return &exchangeRepository{
		db:     db,
		logger: logger,
	}
}

const exchangeColumns = `
	id, instrument, kind, request, response_lines, byte_count, terminated,
	polls, error_message, duration_ms, started_at, completed_at, created_at`

// Create stores an exchange
func (r *exchangeRepository) Create(ctx context.Context, exchange *model.Exchange) error {
	query := `
		INSERT INTO exchanges (` + exchangeColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		exchange.ID, exchange.Instrument, exchange.Kind, exchange.Request,
		pq.Array(exchange.ResponseLines), exchange.ByteCount, exchange.Terminated,
		exchange.Polls, exchange.ErrorMessage, exchange.DurationMs,
		exchange.StartedAt, exchange.CompletedAt, exchange.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create exchange", zap.Error(err))
		return fmt.Errorf("failed to create exchange: %w", err)
	}

	return nil
}

// GetByID retrieves an exchange by ID
func (r *exchangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE id = $1`

	exchange, err := scanExchange(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("exchange %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}

	return exchange, nil
}

// ListByInstrument returns the most recent exchanges of an instrument
func (r *exchangeRepository) ListByInstrument(ctx context.Context, instrument string, limit int) ([]*model.Exchange, error) {
	query := `
		SELECT ` + exchangeColumns + `
		FROM exchanges
		WHERE instrument = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, instrument, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []*model.Exchange{}
	for rows.Next() {
		exchange, err := scanExchange(rows)
		if err != nil {
			r.logger.Error("Failed to scan exchange", zap.Error(err))
			continue
		}
		exchanges = append(exchanges, exchange)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchanges: %w", err)
	}

	return exchanges, nil
}

// DeleteOlderThan removes exchanges created before the given time
func (r *exchangeRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old exchanges: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Count returns the number of stored exchanges, optionally for one instrument
func (r *exchangeRepository) Count(ctx context.Context, instrument string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exchanges WHERE ($1::text = '' OR instrument = $1)`, instrument,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return count, nil
}

// Stats summarises stored exchanges
func (r *exchangeRepository) Stats(ctx context.Context, instrument string) (*ExchangeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE error_message IS NOT NULL),
			COUNT(*) FILTER (WHERE kind <> 'WRITE' AND NOT terminated AND error_message IS NULL),
			COALESCE(AVG(duration_ms), 0),
			MAX(created_at)
		FROM exchanges
		WHERE ($1::text = '' OR instrument = $1)
	`

	stats := &ExchangeStats{Instrument: instrument}
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, query, instrument).Scan(
		&stats.Total, &stats.Failed, &stats.Unterminated, &stats.AvgDurationMs, &last,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange stats: %w", err)
	}
	if last.Valid {
		stats.LastExchange = &last.Time
	}

	return stats, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExchange(row rowScanner) (*model.Exchange, error) {
	exchange := &model.Exchange{}
	err := row.Scan(
		&exchange.ID, &exchange.Instrument, &exchange.Kind, &exchange.Request,
		pq.Array(&exchange.ResponseLines), &exchange.ByteCount, &exchange.Terminated,
		&exchange.Polls, &exchange.ErrorMessage, &exchange.DurationMs,
		&exchange.StartedAt, &exchange.CompletedAt, &exchange.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return exchange, nil
}
