// Package notify fans run progress events out to operators, over Redis
// pub/sub channels and to in-process SSE subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/shared"
)

// defaultBufferSize is the per-subscriber message buffer when no size
// is configured.
const defaultBufferSize = 256

// Message is one marshaled progress event ready for delivery to an
// SSE client.
type Message struct {
	Type string
	Data []byte
}

type subscriber struct {
	ch chan Message
}

// Hub delivers run progress events to SSE subscribers. It subscribes to
// the event bus for all event types and routes each event to the
// subscribers of its run. Delivery is non-blocking: a subscriber that
// stops draining its buffer loses events instead of stalling the bus.
type Hub struct {
	logger  *zap.Logger
	bufSize int

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*subscriber]struct{}

	dropped atomic.Int64
}

// NewHub creates a hub with the given per-subscriber buffer size
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		logger:  logger,
		bufSize: bufferSize,
		subs:    make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// EventTypes subscribes the hub to every event on the bus
func (h *Hub) EventTypes() []string { return nil }

// Handle routes one event to the subscribers of its run
func (h *Hub) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.subs[event.AggregateID()]
	if len(subs) == 0 {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.EventType(), err)
	}
	msg := Message{Type: event.EventType(), Data: data}

	for sub := range subs {
		select {
		case sub.ch <- msg:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a listener for one run's events. The returned
// cancel function removes the subscription and closes the channel; it
// is safe to call more than once.
func (h *Hub) Subscribe(runID uuid.UUID) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, h.bufSize)}

	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[*subscriber]struct{})
	}
	h.subs[runID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[runID], sub)
			if len(h.subs[runID]) == 0 {
				delete(h.subs, runID)
			}
			// No Handle call can be mid-send here; sends happen under
			// the read lock.
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// SubscriberCount reports how many listeners a run currently has
func (h *Hub) SubscriberCount(runID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[runID])
}

// Dropped returns how many messages were discarded on full buffers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Ensure Hub implements EventHandler
var _ shared.EventHandler = (*Hub)(nil)
