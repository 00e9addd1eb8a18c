// Package notify decouples the merge engine and lifecycle manager from
// their consumers with a typed in-process event bus. Events carry no
// payload; listeners re-read the local cache, which keeps them idempotent
// against redundant deliveries.
package notify

import (
	"sync"
)

// Topic is a logical change category.
type Topic string

const (
	TopicOrdersChanged   Topic = "orders-changed"
	TopicMenuChanged     Topic = "menu-changed"
	TopicSettingsChanged Topic = "settings-changed"
)

// SoundTag classifies fire-and-forget notification sounds.
type SoundTag string

const (
	SoundNewOrder SoundTag = "new-order"
	SoundReady    SoundTag = "ready"
	SoundAlert    SoundTag = "alert"
)

// Sounder is the notification/sound collaborator. Implementations must not
// block; the core fires and forgets.
type Sounder interface {
	Play(tag SoundTag)
}

// NoopSounder discards every sound.
type NoopSounder struct{}

func (NoopSounder) Play(SoundTag) {}

// Bus is a coalescing publish/subscribe hub. Each subscriber owns a
// buffered-1 channel: publishing to a subscriber that has not drained yet
// is a no-op, so bursts of changes collapse into one wake-up (last write
// wins).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic][]chan struct{}
	closed      bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Topic][]chan struct{})}
}

// Subscribe registers a listener for a topic. The returned channel receives
// at least one signal per actual change; coalesced bursts may arrive as a
// single signal.
func (b *Bus) Subscribe(topic Topic) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish wakes every subscriber of the topic without blocking. Delivery
// order across listeners is unspecified.
func (b *Bus) Publish(topic Topic) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- struct{}{}:
		default:
			// Subscriber has an undrained signal already; coalesce.
		}
	}
}

// Close releases every subscriber channel. Publishing after Close is a
// no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = make(map[Topic][]chan struct{})
}
