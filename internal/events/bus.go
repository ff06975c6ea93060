package events

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// subscription represents a single event subscription
type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// BusStats counts events that never reached a handler
type BusStats struct {
	Published     int64
	Dropped       int64
	HandlerPanics int64
}

// DefaultEventBus is the default implementation of EventBus. Handlers run
// on a single dispatcher goroutine, so each subscriber sees events in
// publish order.
type DefaultEventBus struct {
	// Subscriber management
	subscribers map[EventType][]subscription
	wildcard    []subscription
	mu          sync.RWMutex

	// Event queue
	eventQueue chan Event
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	// Publishers register under stateMu so Stop can wait for them before the final drain
	stateMu  sync.Mutex
	stopped  bool
	inflight sync.WaitGroup

	// Subscription ID generator
	nextSubID SubscriptionID
	subMu     sync.Mutex

	published atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *DefaultEventBus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	bus := &DefaultEventBus{
		subscribers: make(map[EventType][]subscription),
		eventQueue:  make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
		nextSubID:   1,
	}

	// Start event processor
	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

func (eb *DefaultEventBus) newSubscription(handler EventHandler) subscription {
	eb.subMu.Lock()
	defer eb.subMu.Unlock()

	sub := subscription{id: eb.nextSubID, handler: handler}
	eb.nextSubID++
	return sub
}

// Subscribe registers a handler for a specific event type
func (eb *DefaultEventBus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	sub := eb.newSubscription(handler)

	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], sub)

	return sub.id
}

// SubscribeAll registers a handler for every event type
func (eb *DefaultEventBus) SubscribeAll(handler EventHandler) SubscriptionID {
	sub := eb.newSubscription(handler)

	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.wildcard = append(eb.wildcard, sub)

	return sub.id
}

// Unsubscribe removes a subscription by ID
func (eb *DefaultEventBus) Unsubscribe(id SubscriptionID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, sub := range eb.wildcard {
		if sub.id == id {
			eb.wildcard = append(eb.wildcard[:i:i], eb.wildcard[i+1:]...)
			return
		}
	}

	for eventType, subs := range eb.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				// Copy so an in-flight dispatch keeps its snapshot
				eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues an event, blocking while the queue is full
func (eb *DefaultEventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if !eb.enter() {
		eb.dropped.Add(1)
		log.Printf("[EventBus] Dropped event (bus stopped): %v", event.Type)
		return
	}
	defer eb.inflight.Done()

	select {
	case eb.eventQueue <- event:
		eb.published.Add(1)
	case <-eb.stopCh:
		eb.dropped.Add(1)
		log.Printf("[EventBus] Dropped event (bus stopped): %v", event.Type)
	}
}

// PublishAsync queues an event without blocking. The event is dropped when
// the queue is full or the bus has stopped.
func (eb *DefaultEventBus) PublishAsync(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if !eb.enter() {
		eb.dropped.Add(1)
		return
	}
	defer eb.inflight.Done()

	select {
	case eb.eventQueue <- event:
		eb.published.Add(1)
	default:
		eb.dropped.Add(1)
	}
}

// Stop stops the event bus and drains remaining events. Safe to call twice.
func (eb *DefaultEventBus) Stop() {
	eb.stopOnce.Do(func() {
		eb.stateMu.Lock()
		eb.stopped = true
		close(eb.stopCh)
		eb.stateMu.Unlock()
	})
	eb.wg.Wait()
}

// enter registers an in-flight publish; false once the bus has stopped
func (eb *DefaultEventBus) enter() bool {
	eb.stateMu.Lock()
	defer eb.stateMu.Unlock()
	if eb.stopped {
		return false
	}
	eb.inflight.Add(1)
	return true
}

// processEvents runs in a goroutine and dispatches events to handlers
func (eb *DefaultEventBus) processEvents() {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventQueue:
			eb.dispatch(event)

		case <-eb.stopCh:
			// Publishers that entered before Stop either queue or drop
			eb.inflight.Wait()
			for {
				select {
				case event := <-eb.eventQueue:
					eb.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

// dispatch sends an event to all registered handlers
func (eb *DefaultEventBus) dispatch(event Event) {
	eb.mu.RLock()
	subs := eb.subscribers[event.Type]
	handlers := make([]EventHandler, 0, len(subs)+len(eb.wildcard))
	for _, sub := range subs {
		handlers = append(handlers, sub.handler)
	}
	for _, sub := range eb.wildcard {
		handlers = append(handlers, sub.handler)
	}
	eb.mu.RUnlock()

	for _, handler := range handlers {
		eb.safeHandlerCall(handler, event)
	}
}

// safeHandlerCall calls a handler with panic recovery
func (eb *DefaultEventBus) safeHandlerCall(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.panics.Add(1)
			log.Printf("[EventBus] Handler panic for event %v: %v", event.Type, r)
		}
	}()

	handler(event)
}

// GetSubscriberCount returns the number of subscribers for an event type,
// wildcard subscribers included
func (eb *DefaultEventBus) GetSubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.subscribers[eventType]) + len(eb.wildcard)
}

// GetQueueSize returns the current number of events in the queue
func (eb *DefaultEventBus) GetQueueSize() int {
	return len(eb.eventQueue)
}

// Stats returns publish and drop counters
func (eb *DefaultEventBus) Stats() BusStats {
	return BusStats{
		Published:     eb.published.Load(),
		Dropped:       eb.dropped.Load(),
		HandlerPanics: eb.panics.Load(),
	}
}
