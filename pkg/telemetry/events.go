package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solasta/solasta/pkg/engine"
)

// Bus is the in-process event bus the engine broadcasts progress through.
// Publish fans out to a snapshot of current subscribers taken under a
// short-lived lock; subscribers added or removed during a fan-out do not
// affect the in-flight broadcast. Delivery is at most once per subscriber:
// a full subscriber channel drops the event rather than blocking the
// publisher.
type Bus struct {
	config EventsConfig
	logger zerolog.Logger

	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool

	// metrics is optional; when set, subscriber counts and drops are recorded.
	metrics *Metrics
}

type subscription struct {
	id string

	// goalID filters delivery to a single goal; empty receives everything.
	goalID string

	ch chan *engine.StreamEvent
}

// NewBus creates a new event bus with the given configuration.
func NewBus(cfg EventsConfig, logger zerolog.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &Bus{
		config: cfg,
		logger: logger.With().Str("component", "event-bus").Logger(),
		subs:   make(map[string]*subscription),
	}
}

// SetMetrics attaches a metrics collector for subscriber and drop counts.
func (b *Bus) SetMetrics(m *Metrics) {
	b.metrics = m
}

// Publish delivers the event to every matching subscriber. A slow or gone
// subscriber never blocks the publisher or the other subscribers.
func (b *Bus) Publish(event *engine.StreamEvent) {
	if event == nil || !b.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Snapshot the subscriber set so registrations during fan-out do not
	// receive the in-flight event.
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.goalID == "" || sub.goalID == event.GoalID {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, event)
	}
}

// deliver sends to one subscriber without blocking. A panic from a
// concurrently closed channel is absorbed so one bad subscriber cannot
// abort delivery to the others.
func (b *Bus) deliver(sub *subscription, event *engine.StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn().
				Str("subscriber_id", sub.id).
				Interface("panic", r).
				Msg("Subscriber delivery panicked")
		}
	}()

	select {
	case sub.ch <- event:
	default:
		b.logger.Warn().
			Str("subscriber_id", sub.id).
			Str("event_type", string(event.Type)).
			Msg("Subscriber buffer full, event dropped")
		if b.metrics != nil {
			b.metrics.RecordDroppedEvent()
		}
	}
}

// Subscribe registers a listener. An empty goalID receives events for all
// goals. The returned channel is closed on Unsubscribe or bus Close.
func (b *Bus) Subscribe(goalID string) (string, <-chan *engine.StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:     uuid.New().String(),
		goalID: goalID,
		ch:     make(chan *engine.StreamEvent, b.config.BufferSize),
	}

	if b.closed {
		close(sub.ch)
		return sub.id, sub.ch
	}

	b.subs[sub.id] = sub
	b.recordSubscribers(len(b.subs))
	return sub.id, sub.ch
}

// Unsubscribe removes a listener and closes its channel. Unknown IDs are
// ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	b.recordSubscribers(len(b.subs))
}

// SubscriberCount returns the number of registered listeners.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down and closes every subscriber channel. Close is
// idempotent; publishes after Close are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	b.recordSubscribers(0)
}

func (b *Bus) recordSubscribers(n int) {
	if b.metrics != nil {
		b.metrics.SetEventSubscribers(float64(n))
	}
}

var _ engine.EventPublisher = (*Bus)(nil)
