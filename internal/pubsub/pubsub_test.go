package pubsub

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) (*Broker, context.CancelFunc) {
	t.Helper()

	broker := NewBroker(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go broker.Start(ctx)

	return broker, cancel
}

func waitForEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case event := <-sub.C:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroker_DeliversToTopicSubscribers(t *testing.T) {
	broker, cancel := newTestBroker(t)
	defer cancel()

	sub, err := broker.Subscribe(TopicBookAdded)
	require.NoError(t, err)
	defer broker.Unsubscribe(sub.ID)

	broker.Publish(TopicBookAdded, "payload-1")

	event := waitForEvent(t, sub)
	assert.Equal(t, TopicBookAdded, event.Topic)
	assert.Equal(t, "payload-1", event.Payload)
}

func TestBroker_FanOut(t *testing.T) {
	broker, cancel := newTestBroker(t)
	defer cancel()

	first, err := broker.Subscribe(TopicBookAdded)
	require.NoError(t, err)
	defer broker.Unsubscribe(first.ID)

	second, err := broker.Subscribe(TopicBookAdded)
	require.NoError(t, err)
	defer broker.Unsubscribe(second.ID)

	broker.Publish(TopicBookAdded, "fan-out")

	assert.Equal(t, "fan-out", waitForEvent(t, first).Payload)
	assert.Equal(t, "fan-out", waitForEvent(t, second).Payload)
}

func TestBroker_TopicIsolation(t *testing.T) {
	broker, cancel := newTestBroker(t)
	defer cancel()

	other, err := broker.Subscribe(Topic("other.topic"))
	require.NoError(t, err)
	defer broker.Unsubscribe(other.ID)

	matching, err := broker.Subscribe(TopicBookAdded)
	require.NoError(t, err)
	defer broker.Unsubscribe(matching.ID)

	broker.Publish(TopicBookAdded, "only-for-books")

	// The matching subscriber sees the event; the other one must not.
	waitForEvent(t, matching)

	select {
	case event := <-other.C:
		t.Fatalf("unexpected event on unrelated topic: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker, cancel := newTestBroker(t)
	defer cancel()

	sub, err := broker.Subscribe(TopicBookAdded)
	require.NoError(t, err)

	assert.Equal(t, 1, broker.SubscriberCount(TopicBookAdded))

	broker.Unsubscribe(sub.ID)
	assert.Equal(t, 0, broker.SubscriberCount(TopicBookAdded))

	// Unsubscribing twice is a no-op.
	broker.Unsubscribe(sub.ID)
}

func TestBroker_PublishAfterShutdownIsDropped(t *testing.T) {
	broker := NewBroker(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go broker.Start(ctx)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, broker.Shutdown(shutdownCtx))

	// Must not panic on the closed queue.
	broker.Publish(TopicBookAdded, "late")
}

func TestBroker_ShutdownClosesSubscribers(t *testing.T) {
	broker := NewBroker(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go broker.Start(ctx)

	sub, err := broker.Subscribe(TopicBookAdded)
	require.NoError(t, err)

	cancel()

	select {
	case <-sub.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not closed on shutdown")
	}
}
