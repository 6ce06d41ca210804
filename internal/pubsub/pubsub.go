// Package pubsub implements an in-process topic fan-out for catalog events.
//
// One broker goroutine drains a central queue and copies each event to every
// subscriber of its topic. Delivery is best-effort: there is no persistence,
// no replay for late subscribers, and a subscriber whose buffer is full has
// the event dropped rather than blocking the publisher.
package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shelfmark/shelfmark-server/internal/id"
)

// Topic names a stream of events.
type Topic string

// TopicBookAdded carries one event per successfully added book.
const TopicBookAdded Topic = "book.added"

const (
	queueBuffer      = 1000 // central queue
	subscriberBuffer = 100  // per-subscriber channel
)

// Event is a published payload tagged with its topic.
type Event struct {
	Topic   Topic
	Payload any
}

// Subscription is a single receiver on a topic.
// Events arrive on C until the subscription is closed; Done is closed when
// the broker tears the subscription down during shutdown.
type Subscription struct {
	ID          string
	Topic       Topic
	C           chan Event
	Done        chan struct{}
	ConnectedAt time.Time
}

// Broker manages subscriptions and broadcasts events.
type Broker struct {
	subscribers map[string]*Subscription
	events      chan Event
	logger      *slog.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBroker creates a new event broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subscribers: make(map[string]*Subscription),
		events:      make(chan Event, queueBuffer),
		logger:      logger,
	}
}

// Start begins the event broadcasting loop.
// This should be called once at server startup in a goroutine.
func (b *Broker) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	b.logger.Info("event broker starting")

	for {
		select {
		case event := <-b.events:
			b.broadcast(event)

		case <-ctx.Done():
			b.logger.Info("event broker stopping")
			b.closeAllSubscribers()
			return
		}
	}
}

// Shutdown gracefully shuts down the broker.
// It stops accepting new events, drains remaining events, and closes all
// subscribers.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.logger.Info("event broker shutdown initiated")

	// Mark as shutdown AND close channel atomically while holding lock.
	// This prevents race with Publish() which holds read lock during send.
	b.shutdownMu.Lock()
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	// Drain remaining events with context timeout.
	done := make(chan struct{})
	go func() {
		for event := range b.events {
			b.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event queue drained successfully")
	case <-ctx.Done():
		b.logger.Warn("event drain timeout, some events may be lost")
	}

	// Wait for broadcast goroutine to exit.
	b.wg.Wait()

	b.logger.Info("event broker shutdown complete")
	return nil
}

// broadcast copies an event to every subscriber of its topic.
func (b *Broker) broadcast(event Event) {
	var delivered, dropped int

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.Topic != event.Topic {
			continue
		}

		// Non-blocking send (drop if subscriber is slow/stuck).
		select {
		case sub.C <- event:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscription_id", sub.ID),
				slog.String("topic", string(event.Topic)))
		}
	}

	b.logger.Debug("event broadcast",
		slog.String("topic", string(event.Topic)),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped))
}

// Subscribe registers a new subscriber on the topic.
func (b *Broker) Subscribe(topic Topic) (*Subscription, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:          subID,
		Topic:       topic,
		C:           make(chan Event, subscriberBuffer),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Info("subscriber connected",
		slog.String("subscription_id", subID),
		slog.String("topic", string(topic)),
		slog.Int("total_subscribers", total))
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channels.
func (b *Broker) Unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, subID)
	total := len(b.subscribers)
	b.mu.Unlock()

	close(sub.Done)
	close(sub.C)

	b.logger.Info("subscriber disconnected",
		slog.String("subscription_id", subID),
		slog.Duration("duration", time.Since(sub.ConnectedAt)),
		slog.Int("total_subscribers", total))
}

// Publish queues an event for broadcasting to subscribers of the topic.
// Publish never blocks on subscribers; a full central queue drops the event.
func (b *Broker) Publish(topic Topic, payload any) {
	// Hold read lock through the entire send operation.
	// This prevents race with Shutdown() which holds write lock when closing channel.
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		// Silently drop events after shutdown - this is expected during shutdown
		return
	}

	select {
	case b.events <- Event{Topic: topic, Payload: payload}:
		// Event queued for broadcast.
	default:
		b.logger.Error("event queue full, dropping event",
			slog.String("topic", string(topic)))
	}
}

// SubscriberCount returns the number of active subscribers on the topic.
func (b *Broker) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, sub := range b.subscribers {
		if sub.Topic == topic {
			count++
		}
	}
	return count
}

// closeAllSubscribers closes all subscriber connections (used during shutdown).
func (b *Broker) closeAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub.Done)
		close(sub.C)
	}
	b.subscribers = make(map[string]*Subscription)

	b.logger.Info("all subscribers disconnected")
}
