package notify

import (
	"sync"
)

// Handler receives events published on a topic. Handlers must not block;
// delivery is at-most-once and a slow subscriber is skipped, not queued.
type Handler func(event any)

// Channel delivers events to subscribers of a topic. Ordering is preserved
// within a topic, not across topics. There is no replay buffer: a subscriber
// that reconnects must re-poll authoritative state itself.
type Channel interface {
	Publish(topic string, event any)
	Subscribe(topic string, handler Handler) (unsubscribe func())
}

type subscription struct {
	topic   string
	handler Handler
}

// Bus is an in-process Channel.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]*subscription
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string][]*subscription)}
}

// Publish delivers event to every current subscriber of topic, in
// subscription order. Publishes to a topic with no subscribers are dropped.
func (b *Bus) Publish(topic string, event any) {
	if b == nil || topic == "" || event == nil {
		return
	}
	b.mu.Lock()
	subs := append([]*subscription(nil), b.topics[topic]...)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.handler(event)
	}
}

// Subscribe registers handler for topic and returns a function that removes
// the registration. The returned function is safe to call more than once.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	if b == nil || topic == "" || handler == nil {
		return func() {}
	}
	sub := &subscription{topic: topic, handler: handler}
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(sub)
		})
	}
}

// SubscriberCount reports the current subscriber count for a topic.
func (b *Bus) SubscriberCount(topic string) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[target.topic]
	for i, sub := range subs {
		if sub == target {
			b.topics[target.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[target.topic]) == 0 {
		delete(b.topics, target.topic)
	}
}
