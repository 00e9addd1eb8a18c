package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tavolo/possync/internal/messaging"
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/notify"
)

// channelBus feeds injected change events to the session's handler.
type channelBus struct {
	events chan messaging.ChangeEvent
}

func newChannelBus() *channelBus {
	return &channelBus{events: make(chan messaging.ChangeEvent, 8)}
}

func (b *channelBus) Publish(_ context.Context, event messaging.ChangeEvent) error {
	b.events <- event
	return nil
}

func (b *channelBus) ProcessMessages(ctx context.Context, handler messaging.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-b.events:
			_ = handler(ctx, event)
		}
	}
}

func (b *channelBus) Close() error { return nil }

func newSessionFixture(t *testing.T, remote *fakeRemote) (*Session, *memoryStore, *channelBus) {
	t.Helper()
	store := newMemoryStore()
	bus := notify.NewBus()
	t.Cleanup(bus.Close)

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	push := newChannelBus()
	session, err := NewSession(r, push, "t1", time.Hour)
	require.NoError(t, err)
	return session, store, push
}

func waitForOrders(t *testing.T, store *memoryStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.LoadOrders(context.Background())
		require.NoError(t, err)
		if len(got) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("store never reached %d orders", want)
}

func TestSessionStartRunsInitialReconcile(t *testing.T) {
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(time.Now(), dishItem("Margherita", models.CategoryPizze))}

	session, store, _ := newSessionFixture(t, remote)
	require.NoError(t, session.Start(context.Background()))
	defer session.Close()

	waitForOrders(t, store, 1)
}

func TestSessionPushEventTriggersReconcile(t *testing.T) {
	remote := newFakeRemote()
	session, store, push := newSessionFixture(t, remote)
	require.NoError(t, session.Start(context.Background()))
	defer session.Close()

	remote.mu.Lock()
	remote.orders = []models.Order{testOrder(time.Now(), dishItem("Margherita", models.CategoryPizze))}
	remote.mu.Unlock()

	require.NoError(t, push.Publish(context.Background(), messaging.ChangeEvent{
		EventType: "insert",
		TenantID:  "t1",
		Entity:    messaging.EntityOrders,
	}))
	waitForOrders(t, store, 1)
}

func TestSessionIgnoresOtherTenants(t *testing.T) {
	remote := newFakeRemote()
	session, store, push := newSessionFixture(t, remote)
	require.NoError(t, session.Start(context.Background()))
	defer session.Close()

	remote.mu.Lock()
	remote.orders = []models.Order{testOrder(time.Now(), dishItem("Margherita", models.CategoryPizze))}
	remote.mu.Unlock()

	require.NoError(t, push.Publish(context.Background(), messaging.ChangeEvent{
		EventType: "insert",
		TenantID:  "someone-else",
		Entity:    messaging.EntityOrders,
	}))
	time.Sleep(100 * time.Millisecond)
	got, err := store.LoadOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSessionCloseStopsTriggers(t *testing.T) {
	remote := newFakeRemote()
	session, _, _ := newSessionFixture(t, remote)
	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Close())

	remote.mu.Lock()
	fetchesAfterClose := remote.fetches
	remote.mu.Unlock()
	time.Sleep(100 * time.Millisecond)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	require.Equal(t, fetchesAfterClose, remote.fetches)
}
