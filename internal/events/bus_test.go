package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

func receive(t *testing.T, ch <-chan *model.InstrumentEvent) *model.InstrumentEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		require.FailNow(t, "no event received")
		return nil
	}
}

func TestBus_Distribution(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	connected := bus.Subscribe(model.EventInstrumentConnected)
	all := bus.SubscribeAll()

	bus.Publish(model.NewInstrumentEvent(model.EventExchangeCompleted, "laser", model.SeverityInfo, nil))
	bus.Publish(model.NewInstrumentEvent(model.EventInstrumentConnected, "laser", model.SeverityInfo, nil))

	assert.Equal(t, model.EventExchangeCompleted, receive(t, all).EventType)
	assert.Equal(t, model.EventInstrumentConnected, receive(t, all).EventType)
	assert.Equal(t, model.EventInstrumentConnected, receive(t, connected).EventType)

	select {
	case e := <-connected:
		t.Fatalf("unexpected event %s", e.EventType)
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ch := bus.SubscribeAll()

	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(zap.NewNop())

	for i := 0; i < defaultQueueSize+5; i++ {
		bus.Publish(model.NewInstrumentEvent(model.EventHealthUpdate, "", model.SeverityInfo, nil))
	}
	assert.Equal(t, int64(5), bus.Dropped())
}

func TestBus_CountsSlowSubscriberDrops(t *testing.T) {
	bus := NewBus(zap.NewNop())
	slow := bus.Subscribe(model.EventHealthUpdate)
	all := bus.SubscribeAll()

	for i := 0; i < defaultSubscriberSize+3; i++ {
		bus.distributeEvent(model.NewInstrumentEvent(model.EventHealthUpdate, "", model.SeverityInfo, nil))
	}

	assert.Equal(t, int64(6), bus.Dropped())
	assert.Len(t, slow, defaultSubscriberSize)
	assert.Len(t, all, defaultSubscriberSize)
}
