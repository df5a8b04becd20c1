package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)

	assert.GreaterOrEqual(t, clock.Since(past), time.Second)
}

func TestFakeClock_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	clock.Sleep(20 * time.Millisecond)
	clock.Sleep(5 * time.Millisecond)

	assert.Equal(t, start.Add(25*time.Millisecond), clock.Now())
	assert.Equal(t, 25*time.Millisecond, clock.Since(start))
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 5 * time.Millisecond}, clock.Sleeps())
}

func TestFakeClock_AdvanceDoesNotRecord(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	clock.Advance(time.Second)

	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Empty(t, clock.Sleeps())
}
