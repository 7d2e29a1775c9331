// Package event provides the in-process event bus that fans run and
// session progress events out to subscribers (Redis forwarder, SSE hub).
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/shared"
)

// defaultQueueSize bounds the dispatch queue between publishers and the
// dispatcher goroutine.
const defaultQueueSize = 1024

// InMemoryEventBus implements shared.EventBus with asynchronous
// in-memory pub/sub. Session goroutines publish progress events at a
// high rate; dispatch runs on a separate goroutine so a slow subscriber
// never stalls a running session. When the queue is full events are
// dropped and counted rather than blocking the publisher.
//
// Before Start (and after Stop) publishing falls back to synchronous
// dispatch, which keeps short-lived uses such as tests simple.
type InMemoryEventBus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler // eventType -> handlers
	wildcard []shared.EventHandler            // handlers for all events

	queue   chan shared.DomainEvent
	stopCh  chan struct{}
	done    chan struct{}
	running atomic.Bool
	dropped atomic.Int64
}

// BusOption is a functional option for configuring the bus
type BusOption func(*InMemoryEventBus)

// WithQueueSize overrides the dispatch queue capacity
func WithQueueSize(n int) BusOption {
	return func(b *InMemoryEventBus) {
		if n > 0 {
			b.queue = make(chan shared.DomainEvent, n)
		}
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		logger:   logger,
		handlers: make(map[string][]shared.EventHandler),
		queue:    make(chan shared.DomainEvent, defaultQueueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands events to the dispatcher. It never blocks on a running
// bus: when the queue is full the event is dropped and counted.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		if !b.running.Load() {
			b.dispatch(ctx, event)
			continue
		}
		select {
		case b.queue <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event queue full, dropping event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
			)
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types. With no event
// types given the handler's own EventTypes() applies; an empty result
// subscribes it to all events.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	} else {
		for _, eventType := range eventTypes {
			b.handlers[eventType] = append(b.handlers[eventType], handler)
		}
	}
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from all event types
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcard = removeHandler(b.wildcard, handler)
	for eventType, handlers := range b.handlers {
		b.handlers[eventType] = removeHandler(handlers, handler)
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
	}
	b.logger.Debug("handler unsubscribed")
}

// Start launches the dispatcher goroutine. The bus is started once at
// boot; calling Start again is a no-op.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	go b.run()
	b.logger.Info("event bus started")
	return nil
}

// Stop drains the queue and stops the dispatcher. It waits for the
// dispatcher to exit or the context to end, whichever comes first.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	close(b.stopCh)
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.logger.Info("event bus stopped",
		zap.Int64("dropped_events", b.dropped.Load()))
	return nil
}

// Dropped returns how many events were discarded on a full queue
func (b *InMemoryEventBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *InMemoryEventBus) run() {
	defer close(b.done)
	for {
		select {
		case event := <-b.queue:
			b.dispatch(context.Background(), event)
		case <-b.stopCh:
			// Drain events already queued so terminal run events
			// published during shutdown still reach subscribers.
			for {
				select {
				case event := <-b.queue:
					b.dispatch(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// dispatch delivers one event to every matching handler. Handler errors
// are logged and do not affect the remaining handlers.
func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	b.mu.RLock()
	typed := b.handlers[event.EventType()]
	handlers := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	handlers = append(handlers, typed...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, event)
}

// removeHandler removes a handler from a slice of handlers
func removeHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
