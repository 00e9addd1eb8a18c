// Package lifecycle owns the order state machine and the per-line
// completion/serving flags. Every mutation writes through: the local cache
// updates synchronously and fires a change event, then the remote write is
// attempted best-effort. Local state is authoritative for the UI regardless
// of remote write success.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/messaging"
	"example.com/tavolo/possync/internal/metrics"
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/notify"
	"example.com/tavolo/possync/internal/printing"
	"example.com/tavolo/possync/internal/routing"
	"example.com/tavolo/possync/internal/search"
)

// Snapshots is the slice of the local cache the manager needs.
type Snapshots interface {
	LoadOrders(ctx context.Context) ([]models.Order, error)
	SaveOrders(ctx context.Context, orders []models.Order) error
	LoadSettings(ctx context.Context) (models.AppSettings, error)
}

// RemoteWriter is the slice of the remote client the manager needs.
type RemoteWriter interface {
	UpsertOrder(ctx context.Context, tenantID string, order models.Order) error
}

// Announcer broadcasts a change event to the other terminals. May be nil
// when the terminal runs poll-only.
type Announcer interface {
	Publish(ctx context.Context, event messaging.ChangeEvent) error
}

// Manager mutates orders. All operations are idempotent-safe: a missing
// order or line index makes the call a silent no-op, never an error.
type Manager struct {
	store     Snapshots
	remote    RemoteWriter
	bus       *notify.Bus
	sounder   notify.Sounder
	printer   printing.Printer
	history   search.HistoryIndexer
	metrics   *metrics.Metrics
	announcer Announcer
	tenantID  string
	now       func() time.Time
}

// Option configures optional collaborators.
type Option func(*Manager)

// WithSounder wires the notification/sound collaborator.
func WithSounder(s notify.Sounder) Option {
	return func(m *Manager) { m.sounder = s }
}

// WithPrinter wires the ticket/receipt collaborator.
func WithPrinter(p printing.Printer) Option {
	return func(m *Manager) { m.printer = p }
}

// WithHistory wires the closed-order history indexer.
func WithHistory(h search.HistoryIndexer) Option {
	return func(m *Manager) { m.history = h }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics wires the metrics collector.
func WithMetrics(c *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithAnnouncer wires the cross-terminal change announcer.
func WithAnnouncer(a Announcer) Option {
	return func(m *Manager) { m.announcer = a }
}

// NewManager creates a lifecycle manager for one tenant.
func NewManager(store Snapshots, remote RemoteWriter, bus *notify.Bus, tenantID string, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		remote:   remote,
		bus:      bus,
		sounder:  notify.NoopSounder{},
		printer:  printing.LogPrinter{},
		tenantID: tenantID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOrder opens a new tab for a table. Line state is reset: a freshly
// sent order is never pre-completed or pre-served.
func (m *Manager) CreateOrder(ctx context.Context, table, waiter string, items []models.OrderItem) (models.Order, error) {
	now := m.now()
	for i := range items {
		items[i].Completed = false
		items[i].Served = false
		items[i].IsAddedLater = false
		items[i].ComboCompletedParts = nil
		items[i].ComboServedParts = nil
		if items[i].Quantity <= 0 {
			items[i].Quantity = 1
		}
	}

	order := models.Order{
		ID:          uuid.New().String(),
		TableNumber: table,
		Items:       items,
		Status:      models.StatusPending,
		Timestamp:   now,
		CreatedAt:   now,
		WaiterName:  waiter,
	}

	orders, err := m.store.LoadOrders(ctx)
	if err != nil {
		return models.Order{}, err
	}
	orders = append(orders, order)
	if err := m.store.SaveOrders(ctx, orders); err != nil {
		return models.Order{}, err
	}

	m.bus.Publish(notify.TopicOrdersChanged)
	m.writeRemote(ctx, order)
	m.count(metrics.CounterOrdersCreated)

	log.Info().
		Str("order_id", order.ID).
		Str("table", table).
		Int("lines", len(items)).
		Msg("Order created")

	return order, nil
}

// Advance moves an order one step forward: Pending -> Cooking -> Ready ->
// Delivered. Delivered is terminal; advancing it is a no-op.
func (m *Manager) Advance(ctx context.Context, orderID string) error {
	return m.mutate(ctx, orderID, func(order *models.Order) bool {
		next, ok := order.Status.Next()
		if !ok {
			return false
		}
		order.Status = next
		if next == models.StatusReady {
			m.sounder.Play(notify.SoundReady)
		}
		return true
	})
}

// ToggleCompletion flips a line's cooked flag, or toggles one combo
// sub-item's membership in the completed-parts set when subItemID is given.
func (m *Manager) ToggleCompletion(ctx context.Context, orderID string, itemIndex int, subItemID string) error {
	return m.mutate(ctx, orderID, func(order *models.Order) bool {
		if itemIndex < 0 || itemIndex >= len(order.Items) {
			return false
		}
		item := &order.Items[itemIndex]
		if subItemID != "" {
			if item.HasCompletedPart(subItemID) {
				item.ComboCompletedParts = removeString(item.ComboCompletedParts, subItemID)
			} else {
				item.ComboCompletedParts = append(item.ComboCompletedParts, subItemID)
			}
			return true
		}
		item.Completed = !item.Completed
		return true
	})
}

// Serve marks a line (or one combo sub-item) as delivered to the table.
// One-directional: serving an already-served line is a no-op, not an error.
func (m *Manager) Serve(ctx context.Context, orderID string, itemIndex int, subItemID string) error {
	return m.mutate(ctx, orderID, func(order *models.Order) bool {
		if itemIndex < 0 || itemIndex >= len(order.Items) {
			return false
		}
		item := &order.Items[itemIndex]
		if subItemID != "" {
			if item.HasServedPart(subItemID) {
				return false
			}
			item.ComboServedParts = append(item.ComboServedParts, subItemID)
			return true
		}
		if item.Served {
			return false
		}
		item.Served = true
		return true
	})
}

// AppendItems adds lines to an already-sent order, tagged IsAddedLater for
// the integration treatment. Lines are never deduplicated against existing
// ones: repeated sends of the same dish are distinct lines, since notes and
// quantity may differ.
func (m *Manager) AppendItems(ctx context.Context, orderID string, newItems []models.OrderItem) error {
	if len(newItems) == 0 {
		return nil
	}
	return m.mutate(ctx, orderID, func(order *models.Order) bool {
		for _, item := range newItems {
			item.Completed = false
			item.Served = false
			item.IsAddedLater = true
			item.ComboCompletedParts = nil
			item.ComboServedParts = nil
			if item.Quantity <= 0 {
				item.Quantity = 1
			}
			order.Items = append(order.Items, item)
		}
		return true
	})
}

// FreeTable closes a table's tab: every non-Delivered order is forced to
// Delivered (administrative override, not a normal advance). When the
// register print flag is on, the full aggregated item list across the
// table's orders goes to the receipt printer. Closed orders are indexed
// into history best-effort.
func (m *Manager) FreeTable(ctx context.Context, table string) error {
	orders, err := m.store.LoadOrders(ctx)
	if err != nil {
		return err
	}

	now := m.now()
	var closed []models.Order
	var allItems []models.OrderItem
	waiter := ""
	for i := range orders {
		if orders[i].TableNumber != table {
			continue
		}
		allItems = append(allItems, orders[i].Items...)
		if orders[i].WaiterName != "" {
			waiter = orders[i].WaiterName
		}
		if orders[i].Status == models.StatusDelivered {
			continue
		}
		orders[i].Status = models.StatusDelivered
		orders[i].Touch(now)
		closed = append(closed, orders[i])
	}
	if len(closed) == 0 {
		return nil
	}

	if err := m.store.SaveOrders(ctx, orders); err != nil {
		return err
	}
	m.bus.Publish(notify.TopicOrdersChanged)

	for _, order := range closed {
		m.writeRemote(ctx, order)
		if m.history != nil {
			if err := m.history.IndexClosedOrder(ctx, m.tenantID, order); err != nil {
				log.Warn().Err(err).Str("order_id", order.ID).Msg("Failed to index closed order")
			}
		}
	}

	settings, err := m.store.LoadSettings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings for receipt printing")
		return nil
	}
	if settings.PrintEnabled[models.DepartmentCassa] {
		ticket := printing.TicketData{
			Items:          allItems,
			Department:     string(models.DepartmentCassa),
			TableLabel:     table,
			WaiterName:     waiter,
			RestaurantName: settings.RestaurantProfile.Name,
		}
		if err := m.printer.PrintTicket(ctx, ticket); err != nil {
			log.Warn().Err(err).Str("table", table).Msg("Receipt print failed")
		} else {
			m.count(metrics.CounterTicketsPrinted)
		}
	}

	m.count(metrics.CounterTablesFreed)
	log.Info().Str("table", table).Int("orders_closed", len(closed)).Msg("Table freed")
	return nil
}

// TableFree reports whether no open orders remain for the table.
func (m *Manager) TableFree(ctx context.Context, table string) (bool, error) {
	orders, err := m.store.LoadOrders(ctx)
	if err != nil {
		return false, err
	}
	for _, order := range orders {
		if order.TableNumber == table && order.Status != models.StatusDelivered {
			return false, nil
		}
	}
	return true, nil
}

// DepartmentView returns the order's lines relevant to one department,
// ticket-ordered.
func (m *Manager) DepartmentView(ctx context.Context, order models.Order, dept models.Department) ([]models.OrderItem, error) {
	settings, err := m.store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return routing.ItemsFor(order, dept, settings), nil
}

// mutate runs fn against the order, then writes through if fn reports a
// change. A missing order id is a silent no-op.
func (m *Manager) mutate(ctx context.Context, orderID string, fn func(*models.Order) bool) error {
	orders, err := m.store.LoadOrders(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i := range orders {
		if orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		log.Debug().Str("order_id", orderID).Msg("Mutation target not found, ignoring")
		return nil
	}

	if !fn(&orders[idx]) {
		return nil
	}
	orders[idx].Touch(m.now())

	if err := m.store.SaveOrders(ctx, orders); err != nil {
		return err
	}
	m.bus.Publish(notify.TopicOrdersChanged)
	m.writeRemote(ctx, orders[idx])
	return nil
}

// writeRemote pushes one order upstream. Failures are logged and retried by
// the next poll or push merge, never surfaced to the mutation caller.
func (m *Manager) writeRemote(ctx context.Context, order models.Order) {
	if m.remote == nil {
		return
	}
	if err := m.remote.UpsertOrder(ctx, m.tenantID, order); err != nil {
		m.count(metrics.CounterRemoteWriteError)
		log.Warn().Err(err).Str("order_id", order.ID).Msg("Remote order write failed, local state kept")
		return
	}
	if m.announcer != nil {
		event := messaging.ChangeEvent{
			EventType: "update",
			TenantID:  m.tenantID,
			Entity:    messaging.EntityOrders,
		}
		if err := m.announcer.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to announce order change, peers rely on polling")
		}
	}
}

func (m *Manager) count(name string) {
	if m.metrics != nil {
		m.metrics.IncrementCounter(name)
	}
}

func removeString(list []string, v string) []string {
	kept := list[:0]
	for _, s := range list {
		if s != v {
			kept = append(kept, s)
		}
	}
	return kept
}
