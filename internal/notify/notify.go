package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Topic names a change channel. Deadline updates share one channel; result
// updates are fanned out per professor email.
const (
	TopicDeadline      = "evaldash:deadline"
	topicResultsPrefix = "evaldash:results:"
)

// ResultsTopic returns the per-professor result-change topic.
func ResultsTopic(professorEmail string) string {
	return topicResultsPrefix + professorEmail
}

// Event is a change notification. Body carries the raw document for
// deadline updates and the result id for result updates.
type Event struct {
	Topic string
	Body  []byte
}

// Bus is the abstraction over different notification backends.
// Subscriptions are independently cancellable via their context.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, topic string) (<-chan Event, error)
}

// InMemory is a channel-backed bus for dev/testing. Every subscriber on a
// topic receives every event published after it subscribed.
type InMemory struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

// NewInMemory creates an in-memory bus.
func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[string][]chan Event)}
}

// Publish fans the event out to current subscribers. Slow subscribers drop
// events rather than block the publisher.
func (b *InMemory) Publish(ctx context.Context, evt Event) error {
	b.mu.Lock()
	subs := append([]chan Event(nil), b.subs[evt.Topic]...)
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener for a topic until ctx is cancelled.
func (b *InMemory) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// RedisBus implements the bus over redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus builds a bus using PUBLISH/SUBSCRIBE.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish sends the event to the topic channel.
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	return b.client.Publish(ctx, evt.Topic, evt.Body).Err()
}

// Subscribe streams events from the topic channel until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	sub := b.client.Subscribe(ctx, topic)
	// Force the SUBSCRIBE round trip so transport errors surface here,
	// not on the first receive.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- Event{Topic: msg.Channel, Body: []byte(msg.Payload)}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
