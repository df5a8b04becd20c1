// internal/service/exchange_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"instrument-service/internal/events"
	"instrument-service/internal/model"
	"instrument-service/internal/repository"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// ExchangeService records link exchanges and publishes them as events
type ExchangeService struct {
	exchangeRepo repository.ExchangeRepository
	publisher    events.Publisher
	logger       *utils.ServiceLogger
}

// NewExchangeService creates a new exchange service instance
func NewExchangeService(
	exchangeRepo repository.ExchangeRepository,
	publisher events.Publisher,
	logger *zap.Logger,
) *ExchangeService {
	return &ExchangeService{
		exchangeRepo: exchangeRepo,
		publisher:    publisher,
		logger:       utils.NewServiceLogger(logger, "exchange-service"),
	}
}

// Begin starts an exchange record and its logger
func (es *ExchangeService) Begin(instrument string, kind model.ExchangeKind, request string) (*model.Exchange, *utils.ExchangeLogger) {
	exchange := model.NewExchange(instrument, kind, request, time.Now())
	exLogger := utils.NewExchangeLogger(
		es.logger.With(zap.String("instrument", instrument)),
		string(kind), request, exchange.ID.String(),
	)
	exLogger.Start()
	return exchange, exLogger
}

// Complete fills the exchange from the response, stores it and publishes
// the matching event. Storage failures are logged, not returned.
func (es *ExchangeService) Complete(ctx context.Context, exchange *model.Exchange, exLogger *utils.ExchangeLogger, resp *driver.Response, err error) {
	exchange.CompletedAt = time.Now()
	exchange.DurationMs = exchange.CompletedAt.Sub(exchange.StartedAt).Milliseconds()

	expired := false
	if resp != nil {
		exchange.ResponseLines = resp.Lines
		exchange.ByteCount = resp.ByteCount()
		exchange.Terminated = resp.Terminated
		exchange.Polls = resp.Polls
		expired = resp.Expired
	}
	if exchange.ResponseLines == nil {
		exchange.ResponseLines = []string{}
	}

	eventType := model.EventExchangeCompleted
	severity := model.SeverityInfo
	switch {
	case err != nil:
		msg := err.Error()
		exchange.ErrorMessage = &msg
		exLogger.Error(err)
		eventType = model.EventExchangeFailed
		severity = model.SeverityError
	case exchange.Kind != model.ExchangeKindWrite && expired && !exchange.Terminated:
		exLogger.Success(len(exchange.ResponseLines), exchange.ByteCount, exchange.Terminated, expired)
		eventType = model.EventExchangeExpired
		severity = model.SeverityWarning
	default:
		exLogger.Success(len(exchange.ResponseLines), exchange.ByteCount, exchange.Terminated, expired)
	}

	if storeErr := es.exchangeRepo.Create(ctx, exchange); storeErr != nil {
		es.logger.Error("Failed to store exchange",
			zap.String("exchange_id", exchange.ID.String()),
			zap.Error(storeErr),
		)
	}

	es.publisher.Publish(model.NewInstrumentEvent(eventType, exchange.Instrument, severity, model.JSONObject{
		"exchange": model.ExchangeEventData{
			ExchangeID: exchange.ID,
			Request:    exchange.Request,
			Lines:      exchange.ResponseLines,
			Terminated: exchange.Terminated,
			DurationMs: exchange.DurationMs,
			Error:      exchange.ErrorMessage,
		},
	}))
}

// Get retrieves one exchange
func (es *ExchangeService) Get(ctx context.Context, id uuid.UUID) (*model.Exchange, error) {
	return es.exchangeRepo.GetByID(ctx, id)
}

// List returns the most recent exchanges of an instrument
func (es *ExchangeService) List(ctx context.Context, instrument string, limit int) ([]*model.Exchange, error) {
	exchanges, err := es.exchangeRepo.ListByInstrument(ctx, instrument, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	return exchanges, nil
}

// Stats summarises the exchanges of an instrument, or all when empty
func (es *ExchangeService) Stats(ctx context.Context, instrument string) (*repository.ExchangeStats, error) {
	return es.exchangeRepo.Stats(ctx, instrument)
}

// Purge deletes exchanges older than the retention window
func (es *ExchangeService) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	deleted, err := es.exchangeRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge exchanges: %w", err)
	}

	if deleted > 0 {
		es.logger.Info("Old exchanges purged",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}
