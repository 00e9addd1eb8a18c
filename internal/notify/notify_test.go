package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishWakesSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicOrdersChanged)
	bus.Publish(TopicOrdersChanged)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
}

func TestBurstsCoalesce(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicOrdersChanged)
	for i := 0; i < 10; i++ {
		bus.Publish(TopicOrdersChanged)
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("burst should collapse into a single pending signal")
	default:
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	orders := bus.Subscribe(TopicOrdersChanged)
	menu := bus.Subscribe(TopicMenuChanged)

	bus.Publish(TopicMenuChanged)

	select {
	case <-orders:
		t.Fatal("orders subscriber must not see menu changes")
	default:
	}
	select {
	case <-menu:
	case <-time.After(time.Second):
		t.Fatal("menu subscriber expected a signal")
	}
}

func TestAllSubscribersNotified(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	first := bus.Subscribe(TopicSettingsChanged)
	second := bus.Subscribe(TopicSettingsChanged)

	bus.Publish(TopicSettingsChanged)

	for _, ch := range []<-chan struct{}{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("every subscriber expected a signal")
		}
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicOrdersChanged)
	bus.Close()

	bus.Publish(TopicOrdersChanged)

	// Channel is closed, not signaled.
	_, open := <-ch
	require.False(t, open)
}
