package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newExchange(instrument string, at time.Time, lines ...string) *model.Exchange {
	e := model.NewExchange(instrument, model.ExchangeKindQuery, "p?", at)
	e.ResponseLines = lines
	e.Terminated = len(lines) > 0
	e.CompletedAt = at.Add(5 * time.Millisecond)
	e.DurationMs = 5
	return e
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository(0, zap.NewNop())
	ctx := context.Background()

	e := newExchange("laser", base, "0.1")
	require.NoError(t, repo.Create(ctx, e))
	assert.Error(t, repo.Create(ctx, e))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.1"}, got.ResponseLines)

	got.ResponseLines[0] = "mutated"
	again, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.1", again.ResponseLines[0])

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ListByInstrumentNewestFirst(t *testing.T) {
	repo := NewMemoryRepository(0, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newExchange("laser", base.Add(time.Duration(i)*time.Second), "ok")))
	}
	require.NoError(t, repo.Create(ctx, newExchange("uno", base, "ok")))

	list, err := repo.ListByInstrument(ctx, "laser", 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, base.Add(4*time.Second), list[0].CreatedAt)
	assert.Equal(t, base.Add(2*time.Second), list[2].CreatedAt)

	n, err := repo.Count(ctx, "laser")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestMemoryRepository_Eviction(t *testing.T) {
	repo := NewMemoryRepository(3, zap.NewNop())
	ctx := context.Background()

	var first *model.Exchange
	for i := 0; i < 5; i++ {
		e := newExchange("laser", base.Add(time.Duration(i)*time.Second), "ok")
		if i == 0 {
			first = e
		}
		require.NoError(t, repo.Create(ctx, e))
	}

	n, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_DeleteOlderThan(t *testing.T) {
	repo := NewMemoryRepository(0, zap.NewNop())
	ctx := context.Background()

	old := newExchange("laser", base.Add(-48*time.Hour), "ok")
	recent := newExchange("laser", base, "ok")
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestMemoryRepository_Stats(t *testing.T) {
	repo := NewMemoryRepository(0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newExchange("laser", base, "ok")))
	require.NoError(t, repo.Create(ctx, newExchange("laser", base.Add(time.Second))))

	failed := newExchange("laser", base.Add(2*time.Second))
	msg := "port closed"
	failed.ErrorMessage = &msg
	failed.DurationMs = 11
	require.NoError(t, repo.Create(ctx, failed))

	stats, err := repo.Stats(ctx, "laser")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Unterminated)
	assert.InDelta(t, 7.0, stats.AvgDurationMs, 1e-9)
	require.NotNil(t, stats.LastExchange)
	assert.Equal(t, base.Add(2*time.Second), *stats.LastExchange)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxListLimit, clampLimit(maxListLimit+1))
}
