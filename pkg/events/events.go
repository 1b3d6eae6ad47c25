package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names one kind of orchestration lifecycle event.
type EventType string

const (
	EventCommandReceived   EventType = "command.received"
	EventCommandCompleted  EventType = "command.completed"
	EventCommandFailed     EventType = "command.failed"
	EventBuildStarted      EventType = "build.started"
	EventBuildSucceeded    EventType = "build.succeeded"
	EventBuildFailed       EventType = "build.failed"
	EventDeploymentCreated EventType = "deployment.created"
	EventDeploymentReaped  EventType = "deployment.reaped"
	EventRollbackCompleted EventType = "rollback.completed"
)

const (
	// intakeBuffer absorbs publish bursts so the dispatcher never waits
	// on broadcast.
	intakeBuffer = 100

	// subscriberBuffer is each subscriber's slack before it starts
	// missing events.
	subscriberBuffer = 50
)

// Event is one orchestration lifecycle event.
type Event struct {
	ID        string
	Type      EventType
	AgentName string
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// stamp fills the fields Publish guarantees, so callers can publish bare
// events.
func (e *Event) stamp() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}

// Subscriber receives the events published while it is registered.
type Subscriber chan *Event

// Broker fans published events out to subscribers. Delivery is
// best-effort: a subscriber that stops draining misses events, it never
// stalls the publisher.
type Broker struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	intake  chan *Event
	stopCh  chan struct{}
	stopped sync.Once
}

// NewBroker creates a broker. Call Start before publishing.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[Subscriber]struct{}),
		intake: make(chan *Event, intakeBuffer),
		stopCh: make(chan struct{}),
	}
}

// Start launches the fan-out loop.
func (b *Broker) Start() {
	go func() {
		for {
			select {
			case event := <-b.intake:
				b.fanout(event)
			case <-b.stopCh:
				return
			}
		}
	}()
}

// Stop halts fan-out. Safe to call more than once; events still queued
// are dropped.
func (b *Broker) Stop() {
	b.stopped.Do(func() { close(b.stopCh) })
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	sub := make(Subscriber, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel, ending any
// range loop consuming it.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub)
	}
}

// SubscriberCount reports how many subscribers are registered.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish queues an event for fan-out, stamping a fresh ID and timestamp
// where the caller left them empty. After Stop it becomes a no-op.
func (b *Broker) Publish(event *Event) {
	event.stamp()

	select {
	case b.intake <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) fanout(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			// full buffer, the subscriber misses this one
		}
	}
}
