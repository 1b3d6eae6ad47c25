package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishSubscribe tests basic event delivery
func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{
		Type:      EventBuildStarted,
		AgentName: "my-agent",
		Message:   "Build job created",
	})

	select {
	case event := <-sub:
		assert.Equal(t, EventBuildStarted, event.Type)
		assert.Equal(t, "my-agent", event.AgentName)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// TestPublishAssignsUniqueIDs tests that events get distinct generated IDs
func TestPublishAssignsUniqueIDs(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{Type: EventCommandReceived, AgentName: "a"})
	broker.Publish(&Event{Type: EventCommandCompleted, AgentName: "a"})

	first := <-sub
	second := <-sub
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

// TestMultipleSubscribers tests that every subscriber sees each event
func TestMultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub1 := broker.Subscribe()
	sub2 := broker.Subscribe()
	defer broker.Unsubscribe(sub1)
	defer broker.Unsubscribe(sub2)

	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventDeploymentCreated, AgentName: "my-agent"})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case event := <-sub:
			assert.Equal(t, EventDeploymentCreated, event.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

// TestUnsubscribe tests that unsubscribed channels stop receiving
func TestUnsubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)

	assert.Equal(t, 0, broker.SubscriberCount())

	// Channel is closed on unsubscribe
	_, open := <-sub
	assert.False(t, open)
}

// TestSlowSubscriberDoesNotBlock tests that a full subscriber buffer is skipped
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	// Overfill the per-subscriber buffer; publishes must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 120; i++ {
			broker.Publish(&Event{Type: EventCommandReceived, AgentName: "busy"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}
}
