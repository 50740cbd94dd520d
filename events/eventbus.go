package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mezonai/starnotary/logx"
)

const subscriberBuffer = 50

type SubscriberID string

type subscriber struct {
	ch    chan NotaryEvent
	types map[EventType]struct{} // empty means every type
}

func (s *subscriber) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus fans notary events out to buffered subscriber channels. Publishing
// never blocks: a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[SubscriberID]*subscriber
	closed      bool
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[SubscriberID]*subscriber)}
}

// Subscribe registers a listener for the given event types, or for every type
// when none is given. On a closed bus the returned channel is already closed.
func (eb *EventBus) Subscribe(types ...EventType) (SubscriberID, <-chan NotaryEvent) {
	id := SubscriberID(uuid.Must(uuid.NewV7()).String())
	sub := &subscriber{ch: make(chan NotaryEvent, subscriberBuffer)}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		close(sub.ch)
		return id, sub.ch
	}
	eb.subscribers[id] = sub
	logx.Info("EVENTBUS", fmt.Sprintf("Subscribed | subscriber_id=%s | types=%v | total_subscribers=%d", id, types, len(eb.subscribers)))
	return id, sub.ch
}

// Unsubscribe closes the subscriber's channel. It reports whether id was known.
func (eb *EventBus) Unsubscribe(id SubscriberID) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub, ok := eb.subscribers[id]
	if !ok {
		return false
	}
	delete(eb.subscribers, id)
	close(sub.ch)
	logx.Info("EVENTBUS", fmt.Sprintf("Unsubscribed | subscriber_id=%s | remaining_subscribers=%d", id, len(eb.subscribers)))
	return true
}

// Publish delivers event to every interested subscriber. A nil bus drops it.
func (eb *EventBus) Publish(event NotaryEvent) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, sub := range eb.subscribers {
		if !sub.wants(event.Type()) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			logx.Warn("EVENTBUS", fmt.Sprintf("Subscriber channel full, dropping %s | subscriber_id=%s | address=%s", event.Type(), id, event.Address()))
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel and later publishes reach nobody.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for id, sub := range eb.subscribers {
		close(sub.ch)
		delete(eb.subscribers, id)
	}
}

func (eb *EventBus) Subscribers() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
