package events

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// DefaultEventBus delivers events on a single dispatcher goroutine, so handlers
// see events in publish order. Publish never blocks the capture loop: when the
// queue is full or the bus is stopped the event is dropped and counted.
type DefaultEventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscription
	nextID      SubscriptionID

	queue   chan Event
	stopCh  chan struct{}
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}

	dropped atomic.Uint64
}

// NewEventBus creates a bus queueing at most bufferSize undelivered events
func NewEventBus(bufferSize int) *DefaultEventBus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	bus := &DefaultEventBus{
		subscribers: make(map[EventType][]subscription),
		nextID:      1,
		queue:       make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	go bus.run()
	return bus
}

// Subscribe registers handler for one event type
func (eb *DefaultEventBus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (eb *DefaultEventBus) Unsubscribe(id SubscriptionID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for eventType, subs := range eb.subscribers {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			kept := make([]subscription, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			eb.subscribers[eventType] = append(kept, subs[i+1:]...)
			return
		}
	}
}

// Publish queues event for delivery
func (eb *DefaultEventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if eb.stopped.Load() {
		eb.drop(event, "bus stopped")
		return
	}

	select {
	case eb.queue <- event:
	default:
		eb.drop(event, "queue full")
	}
}

// Dropped returns how many events were never delivered
func (eb *DefaultEventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// Stop delivers everything already queued, then returns. Safe to call more than once.
func (eb *DefaultEventBus) Stop() {
	eb.once.Do(func() {
		eb.stopped.Store(true)
		close(eb.stopCh)
	})
	<-eb.done
}

func (eb *DefaultEventBus) drop(event Event, reason string) {
	eb.dropped.Add(1)
	log.WithFields(log.Fields{
		"event_type": event.Type,
		"reason":     reason,
	}).Debug("Dropped event")
}

func (eb *DefaultEventBus) run() {
	defer close(eb.done)

	for {
		select {
		case event := <-eb.queue:
			eb.dispatch(event)
		case <-eb.stopCh:
			for {
				select {
				case event := <-eb.queue:
					eb.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *DefaultEventBus) dispatch(event Event) {
	eb.mu.RLock()
	subs := eb.subscribers[event.Type]
	eb.mu.RUnlock()

	// Unsubscribe copies the slice, so subs stays valid without the lock
	for _, sub := range subs {
		eb.call(sub.handler, event)
	}
}

func (eb *DefaultEventBus) call(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event_type": event.Type,
				"panic":      r,
			}).Error("Event handler panicked")
		}
	}()
	handler(event)
}
