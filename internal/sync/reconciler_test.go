package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/notify"
	"example.com/tavolo/possync/internal/printing"
)

type memoryStore struct {
	mu       sync.Mutex
	orders   []models.Order
	menu     []models.MenuItem
	settings models.AppSettings
}

func newMemoryStore() *memoryStore {
	return &memoryStore{settings: models.DefaultSettings()}
}

func (s *memoryStore) LoadOrders(context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.orders...), nil
}

func (s *memoryStore) SaveOrders(_ context.Context, orders []models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]models.Order(nil), orders...)
	return nil
}

func (s *memoryStore) LoadMenu(context.Context) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MenuItem(nil), s.menu...), nil
}

func (s *memoryStore) SaveMenu(_ context.Context, menu []models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = append([]models.MenuItem(nil), menu...)
	return nil
}

func (s *memoryStore) LoadSettings(context.Context) (models.AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *memoryStore) SaveSettings(_ context.Context, settings models.AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

type fakeRemote struct {
	mu          sync.Mutex
	orders      []models.Order
	menu        []models.MenuItem
	settings    models.AppSettings
	ordersErr   error
	menuErr     error
	settingsErr error
	fetches     int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{settings: models.DefaultSettings()}
}

func (f *fakeRemote) FetchOrders(context.Context, string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return append([]models.Order(nil), f.orders...), nil
}

func (f *fakeRemote) FetchMenu(context.Context, string) ([]models.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.menuErr != nil {
		return nil, f.menuErr
	}
	return append([]models.MenuItem(nil), f.menu...), nil
}

func (f *fakeRemote) FetchSettings(context.Context, string) (models.AppSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return models.AppSettings{}, f.settingsErr
	}
	return f.settings, nil
}

type recordingSounder struct {
	mu   sync.Mutex
	tags []notify.SoundTag
}

func (r *recordingSounder) Play(tag notify.SoundTag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
}

func (r *recordingSounder) played() []notify.SoundTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.SoundTag(nil), r.tags...)
}

type recordingPrinter struct {
	mu      sync.Mutex
	tickets []printing.TicketData
}

func (p *recordingPrinter) PrintTicket(_ context.Context, ticket printing.TicketData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = append(p.tickets, ticket)
	return nil
}

func (p *recordingPrinter) printed() []printing.TicketData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]printing.TicketData(nil), p.tickets...)
}

func testOrder(ts time.Time, items ...models.OrderItem) models.Order {
	return models.Order{
		ID:          uuid.NewString(),
		TableNumber: "4",
		Timestamp:   ts,
		Status:      models.StatusPending,
		Items:       items,
		WaiterName:  "mario",
	}
}

func dishItem(name string, cat models.Category) models.OrderItem {
	return models.OrderItem{
		MenuItem: models.MenuItem{
			ID:       uuid.NewString(),
			Name:     name,
			Category: cat,
			Price:    9.5,
		},
	}
}

func TestReconcilePullsRemoteOrders(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Margherita", models.CategoryPizze))}
	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))

	got, err := store.LoadOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, remote.orders[0].ID, got[0].ID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Margherita", models.CategoryPizze))}
	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))
	first, _ := store.LoadOrders(context.Background())

	require.NoError(t, r.Reconcile(context.Background()))
	require.NoError(t, r.Reconcile(context.Background()))
	again, _ := store.LoadOrders(context.Background())
	require.Equal(t, first, again)
}

func TestReconcileFetchFailureKeepsLocal(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	local := testOrder(now, dishItem("Margherita", models.CategoryPizze))
	require.NoError(t, store.SaveOrders(context.Background(), []models.Order{local}))

	remote := newFakeRemote()
	remote.ordersErr = errors.New("cloud unreachable")
	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))

	got, err := store.LoadOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, local.ID, got[0].ID)
}

func TestReconcileFreshLocalEditSurvivesStaleRemote(t *testing.T) {
	// Scenario: terminal B edited the order moments ago; the cloud still
	// holds the pre-edit copy. B's edit must win the merge.
	now := time.Now()
	base := testOrder(now.Add(-2*time.Minute), dishItem("Margherita", models.CategoryPizze))

	localCopy := base
	localCopy.Status = models.StatusCooking
	localCopy.Timestamp = now.Add(-10 * time.Second)

	store := newMemoryStore()
	require.NoError(t, store.SaveOrders(context.Background(), []models.Order{localCopy}))

	remote := newFakeRemote()
	remote.orders = []models.Order{base}
	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute,
		WithClock(func() time.Time { return now }))
	require.NoError(t, r.Reconcile(context.Background()))

	got, _ := store.LoadOrders(context.Background())
	require.Len(t, got, 1)
	require.Equal(t, models.StatusCooking, got[0].Status)
}

func TestReconcileNewOrderPlaysSoundAndPrints(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	settings := models.DefaultSettings()
	settings.PrintEnabled[models.DepartmentKitchen] = true
	settings.RestaurantProfile.Name = "Da Mario"
	require.NoError(t, store.SaveSettings(context.Background(), settings))

	remote := newFakeRemote()
	remote.settings = settings
	remote.orders = []models.Order{testOrder(now,
		dishItem("Carbonara", models.CategoryPrimi),
		dishItem("Coca Cola", models.CategoryBevande),
	)}

	bus := notify.NewBus()
	defer bus.Close()
	sounder := &recordingSounder{}
	printer := &recordingPrinter{}

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute,
		WithSounder(sounder), WithPrinter(printer))
	require.NoError(t, r.Reconcile(context.Background()))

	require.Equal(t, []notify.SoundTag{notify.SoundNewOrder}, sounder.played())
	tickets := printer.printed()
	require.Len(t, tickets, 1)
	require.Equal(t, string(models.DepartmentKitchen), tickets[0].Department)
	require.Equal(t, "Da Mario", tickets[0].RestaurantName)
	// Only the kitchen line goes on the kitchen ticket.
	require.Len(t, tickets[0].Items, 1)
	require.Equal(t, "Carbonara", tickets[0].Items[0].MenuItem.Name)
}

func TestReconcileNewOrderNoPrintWhenDisabled(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Carbonara", models.CategoryPrimi))}

	bus := notify.NewBus()
	defer bus.Close()
	sounder := &recordingSounder{}
	printer := &recordingPrinter{}

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute,
		WithSounder(sounder), WithPrinter(printer))
	require.NoError(t, r.Reconcile(context.Background()))

	require.Equal(t, []notify.SoundTag{notify.SoundNewOrder}, sounder.played())
	require.Empty(t, printer.printed())
}

func TestReconcileNewOrderOtherDepartmentSilent(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Carbonara", models.CategoryPrimi))}

	bus := notify.NewBus()
	defer bus.Close()
	sounder := &recordingSounder{}

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentPub, time.Minute,
		WithSounder(sounder))
	require.NoError(t, r.Reconcile(context.Background()))
	require.Empty(t, sounder.played())
}

func TestReconcileKnownOrderNotAnnouncedAgain(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Carbonara", models.CategoryPrimi))}

	bus := notify.NewBus()
	defer bus.Close()
	sounder := &recordingSounder{}

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute,
		WithSounder(sounder))
	require.NoError(t, r.Reconcile(context.Background()))
	require.NoError(t, r.Reconcile(context.Background()))
	require.Len(t, sounder.played(), 1)
}

func TestReconcilePublishesOnlyOnChange(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Margherita", models.CategoryPizze))}

	bus := notify.NewBus()
	defer bus.Close()
	ch := bus.Subscribe(notify.TopicOrdersChanged)

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected orders-changed after first reconcile")
	}

	require.NoError(t, r.Reconcile(context.Background()))
	select {
	case <-ch:
		t.Fatal("unchanged reconcile must not publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReconcileMenuAndSettingsFollowRemote(t *testing.T) {
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.menu = []models.MenuItem{{ID: uuid.NewString(), Name: "Tiramisu", Category: models.CategoryDolci, Price: 6}}
	settings := models.DefaultSettings()
	settings.RestaurantProfile.Name = "Da Mario"
	remote.settings = settings

	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))

	menu, err := store.LoadMenu(context.Background())
	require.NoError(t, err)
	require.Len(t, menu, 1)
	require.Equal(t, "Tiramisu", menu[0].Name)

	got, err := store.LoadSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Da Mario", got.RestaurantProfile.Name)
}

func TestReconcileMenuDetailEditPublishes(t *testing.T) {
	store := newMemoryStore()
	remote := newFakeRemote()
	item := models.MenuItem{ID: uuid.NewString(), Name: "Tiramisu", Category: models.CategoryDolci, Price: 6}
	remote.menu = []models.MenuItem{item}

	bus := notify.NewBus()
	defer bus.Close()
	ch := bus.Subscribe(notify.TopicMenuChanged)

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected menu-changed after first reconcile")
	}

	// Name, price, and category stay put; only the description moves.
	item.Description = "with savoiardi"
	remote.menu = []models.MenuItem{item}
	require.NoError(t, r.Reconcile(context.Background()))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected menu-changed after a description-only edit")
	}

	// A routing override change must wake subscribers too.
	pub := models.DepartmentPub
	item.SpecificDepartment = &pub
	remote.menu = []models.MenuItem{item}
	require.NoError(t, r.Reconcile(context.Background()))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected menu-changed after a department override edit")
	}

	menu, err := store.LoadMenu(context.Background())
	require.NoError(t, err)
	require.Equal(t, "with savoiardi", menu[0].Description)
}

func TestReconcileRejectsInvalidRemoteSettings(t *testing.T) {
	store := newMemoryStore()
	prior := models.DefaultSettings()
	prior.RestaurantProfile.Name = "Da Mario"
	require.NoError(t, store.SaveSettings(context.Background(), prior))

	remote := newFakeRemote()
	broken := models.DefaultSettings()
	broken.CategoryDestinations[models.CategoryPizze] = models.Department("garage")
	remote.settings = broken

	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)
	require.NoError(t, r.Reconcile(context.Background()))

	got, err := store.LoadSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Da Mario", got.RestaurantProfile.Name)
	require.Equal(t, models.DepartmentPizzeria, got.CategoryDestinations[models.CategoryPizze])
}

func TestReconcileConcurrentTriggersSafe(t *testing.T) {
	now := time.Now()
	store := newMemoryStore()
	remote := newFakeRemote()
	remote.orders = []models.Order{testOrder(now, dishItem("Margherita", models.CategoryPizze))}
	bus := notify.NewBus()
	defer bus.Close()

	r := NewReconciler(store, remote, bus, "t1", models.DepartmentKitchen, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Reconcile(context.Background())
		}()
	}
	wg.Wait()

	got, _ := store.LoadOrders(context.Background())
	require.Len(t, got, 1)
}
