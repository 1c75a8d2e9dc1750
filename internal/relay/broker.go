// Package relay fans session events out to stream subscribers.
package relay

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event is a single message sent to subscribers. ID increases with every
// publish.
type Event struct {
	ID    int64
	Topic string
	Data  string
}

// Broker fans out events to all subscribed clients and remembers the latest
// event per topic for late joiners.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	latest      map[string]Event
	seq         int64
	nextID      atomic.Int64
	dropped     atomic.Int64
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
		latest:      make(map[string]Event),
	}
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive events on, primed with the latest event of every topic. The
// channel is buffered; slow consumers will have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	primed := make([]Event, 0, len(b.latest))
	for _, evt := range b.latest {
		primed = append(primed, evt)
	}
	sort.Slice(primed, func(i, j int) bool { return primed[i].ID < primed[j].ID })
	for _, evt := range primed {
		ch <- evt
	}
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: slow clients
// have events dropped.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	evt.ID = b.seq
	b.latest[evt.Topic] = evt
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// PublishJSON marshals v and publishes it on topic.
func (b *Broker) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("relay: marshal %s: %w", topic, err)
	}
	b.Publish(Event{Topic: topic, Data: string(data)})
	return nil
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were dropped for slow subscribers.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }
