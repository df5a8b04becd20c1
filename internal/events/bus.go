// internal/events/bus.go
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"instrument-service/internal/model"
)

const (
	defaultQueueSize      = 1000
	defaultSubscriberSize = 100
)

// Publisher is the sending side of the bus
type Publisher interface {
	Publish(event *model.InstrumentEvent)
}

// Bus fans instrument events out to subscribers. Slow subscribers miss
// events rather than blocking publishers.
type Bus struct {
	subscribers map[model.EventType][]chan *model.InstrumentEvent
	all         []chan *model.InstrumentEvent
	events      chan *model.InstrumentEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	dropped     atomic.Int64
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[model.EventType][]chan *model.InstrumentEvent),
		events:      make(chan *model.InstrumentEvent, defaultQueueSize),
		logger:      logger,
	}
}

// Run distributes events until ctx is done
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			b.distributeEvent(event)
		}
	}
}

// Publish queues an event without blocking
func (b *Bus) Publish(event *model.InstrumentEvent) {
	select {
	case b.events <- event:
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("instrument", event.Instrument),
		)
	}
}

// Subscribe returns a channel receiving events of the given type
func (b *Bus) Subscribe(eventType model.EventType) <-chan *model.InstrumentEvent {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscriber := make(chan *model.InstrumentEvent, defaultSubscriberSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
	return subscriber
}

// SubscribeAll returns a channel receiving every event
func (b *Bus) SubscribeAll() <-chan *model.InstrumentEvent {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscriber := make(chan *model.InstrumentEvent, defaultSubscriberSize)
	b.all = append(b.all, subscriber)
	return subscriber
}

// Unsubscribe removes and closes a subscription channel
func (b *Bus) Unsubscribe(ch <-chan *model.InstrumentEvent) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	remove := func(list []chan *model.InstrumentEvent) []chan *model.InstrumentEvent {
		kept := list[:0]
		for _, s := range list {
			if (<-chan *model.InstrumentEvent)(s) == ch {
				close(s)
				continue
			}
			kept = append(kept, s)
		}
		return kept
	}

	b.all = remove(b.all)
	for t, list := range b.subscribers {
		b.subscribers[t] = remove(list)
	}
}

// Dropped returns how many deliveries were discarded, either because the
// queue was full or because a subscriber channel was
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// distributeEvent distributes an event to subscribers
func (b *Bus) distributeEvent(event *model.InstrumentEvent) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, subscriber := range b.subscribers[event.EventType] {
		b.deliver(subscriber, event)
	}
	for _, subscriber := range b.all {
		b.deliver(subscriber, event)
	}
}

// deliver hands the event to a subscriber, counting it as dropped when the
// subscriber is slow
func (b *Bus) deliver(subscriber chan *model.InstrumentEvent, event *model.InstrumentEvent) {
	select {
	case subscriber <- event:
	default:
		b.dropped.Add(1)
		b.logger.Debug("Subscriber full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("instrument", event.Instrument),
		)
	}
}
