// Package sync drives the merge engine from two triggers — a Service Bus
// push and an interval poll — converging on one idempotent Reconcile entry
// point. Both triggers are safe to fire concurrently and redundantly.
package sync

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/merge"
	"example.com/tavolo/possync/internal/metrics"
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/notify"
	"example.com/tavolo/possync/internal/printing"
	"example.com/tavolo/possync/internal/routing"
	"example.com/tavolo/possync/internal/tracing"
)

// Store is the slice of the local cache the reconciler needs.
type Store interface {
	LoadOrders(ctx context.Context) ([]models.Order, error)
	SaveOrders(ctx context.Context, orders []models.Order) error
	LoadMenu(ctx context.Context) ([]models.MenuItem, error)
	SaveMenu(ctx context.Context, menu []models.MenuItem) error
	LoadSettings(ctx context.Context) (models.AppSettings, error)
	SaveSettings(ctx context.Context, settings models.AppSettings) error
}

// Fetcher is the slice of the remote client the reconciler needs.
type Fetcher interface {
	FetchOrders(ctx context.Context, tenantID string) ([]models.Order, error)
	FetchMenu(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	FetchSettings(ctx context.Context, tenantID string) (models.AppSettings, error)
}

// Reconciler reconciles the local cache against the remote store. A mutex
// serializes runs: a push event landing mid-poll simply queues behind it
// and re-merges against the then-current state.
type Reconciler struct {
	mu       sync.Mutex
	store    Store
	remote   Fetcher
	bus      *notify.Bus
	sounder  notify.Sounder
	printer  printing.Printer
	metrics  *metrics.Metrics
	tracer   tracing.Tracer
	tenantID string
	dept     models.Department
	window   time.Duration
	now      func() time.Time
}

// ReconcilerOption configures optional collaborators.
type ReconcilerOption func(*Reconciler)

// WithSounder wires the notification/sound collaborator.
func WithSounder(s notify.Sounder) ReconcilerOption {
	return func(r *Reconciler) { r.sounder = s }
}

// WithPrinter wires the ticket printer.
func WithPrinter(p printing.Printer) ReconcilerOption {
	return func(r *Reconciler) { r.printer = p }
}

// WithMetrics wires the metrics collector.
func WithMetrics(m *metrics.Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

// WithTracer wires the tracer.
func WithTracer(t tracing.Tracer) ReconcilerOption {
	return func(r *Reconciler) { r.tracer = t }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler for one terminal. dept is the
// department this terminal displays; it decides which newly merged orders
// trigger the new-order sound and ticket print.
func NewReconciler(store Store, remote Fetcher, bus *notify.Bus, tenantID string, dept models.Department, window time.Duration, opts ...ReconcilerOption) *Reconciler {
	if window <= 0 {
		window = merge.DefaultFreshnessWindow
	}
	r := &Reconciler{
		store:    store,
		remote:   remote,
		bus:      bus,
		sounder:  notify.NoopSounder{},
		printer:  printing.LogPrinter{},
		tenantID: tenantID,
		dept:     dept,
		window:   window,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile fetches orders, menu and settings from the remote store and
// merges them into the local cache. Each family fails independently: a
// fetch error leaves that family's prior snapshot untouched and the next
// trigger retries.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var txn *tracingTxn
	if r.tracer != nil {
		txn = &tracingTxn{tracer: r.tracer, txn: r.tracer.StartTransaction("reconcile")}
		defer txn.end()
	}

	start := r.now()
	r.count(metrics.CounterReconcileRuns)

	r.reconcileSettings(ctx, txn)
	r.reconcileMenu(ctx, txn)
	r.reconcileOrders(ctx, txn)

	if r.metrics != nil {
		r.metrics.RecordTimer(metrics.TimerReconcile, r.now().Sub(start).Milliseconds())
	}
	return nil
}

// reconcileOrders merges the remote orders snapshot with the local one
// under the freshness-window policy, then reacts to orders this terminal
// has not seen before.
func (r *Reconciler) reconcileOrders(ctx context.Context, txn *tracingTxn) {
	remoteOrders, err := r.remote.FetchOrders(ctx, r.tenantID)
	if err != nil {
		log.Warn().Err(err).Msg("Orders fetch failed, keeping last known snapshot")
		r.count(metrics.CounterRemoteFetchError)
		txn.noticeError(err)
		return
	}

	localOrders, err := r.store.LoadOrders(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Local orders snapshot unreadable, merging against empty")
		localOrders = nil
	}

	res := merge.Orders(remoteOrders, localOrders, r.now(), r.window)
	if err := r.store.SaveOrders(ctx, res.Orders); err != nil {
		log.Warn().Err(err).Msg("Failed to persist merged orders")
		txn.noticeError(err)
		return
	}

	if r.metrics != nil {
		r.metrics.IncrementCounterBy(metrics.CounterLocalEditsKept, int64(res.KeptLocal))
		r.metrics.IncrementCounterBy(metrics.CounterZombiesDropped, int64(res.ZombiesDropped))
		r.metrics.SetGauge(metrics.GaugeOpenOrders, int64(countOpen(res.Orders)))
	}

	if !ordersEqual(localOrders, res.Orders) {
		r.bus.Publish(notify.TopicOrdersChanged)
	}

	r.reactToNewOrders(ctx, res.NewFromRemote)
}

// reactToNewOrders handles trigger point (a): a newly observed order with
// lines for this department plays the new-order sound and, when the
// department's print flag is on, goes to the ticket printer.
func (r *Reconciler) reactToNewOrders(ctx context.Context, newOrders []models.Order) {
	if len(newOrders) == 0 || r.dept == "" {
		return
	}
	settings, err := r.store.LoadSettings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings for new-order reaction")
		return
	}

	for _, order := range newOrders {
		if !routing.HasItemsFor(order, r.dept, settings) {
			continue
		}
		r.sounder.Play(notify.SoundNewOrder)
		if !settings.PrintEnabled[r.dept] {
			continue
		}
		ticket := printing.TicketData{
			Items:          routing.ItemsFor(order, r.dept, settings),
			Department:     string(r.dept),
			TableLabel:     order.TableNumber,
			WaiterName:     order.WaiterName,
			RestaurantName: settings.RestaurantProfile.Name,
		}
		if err := r.printer.PrintTicket(ctx, ticket); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID).Msg("Ticket print failed")
		} else {
			r.count(metrics.CounterTicketsPrinted)
		}
	}
}

// reconcileMenu overwrites the local menu with the remote one. Remote is
// always authoritative for the menu; there is no freshness exception.
func (r *Reconciler) reconcileMenu(ctx context.Context, txn *tracingTxn) {
	remoteMenu, err := r.remote.FetchMenu(ctx, r.tenantID)
	if err != nil {
		log.Warn().Err(err).Msg("Menu fetch failed, keeping last known snapshot")
		r.count(metrics.CounterRemoteFetchError)
		txn.noticeError(err)
		return
	}

	localMenu, _ := r.store.LoadMenu(ctx)
	if err := r.store.SaveMenu(ctx, remoteMenu); err != nil {
		log.Warn().Err(err).Msg("Failed to persist menu snapshot")
		txn.noticeError(err)
		return
	}
	if !menuEqual(localMenu, remoteMenu) {
		r.bus.Publish(notify.TopicMenuChanged)
	}
}

// reconcileSettings overwrites local settings with the remote record.
// Settings failing validation never replace a working snapshot.
func (r *Reconciler) reconcileSettings(ctx context.Context, txn *tracingTxn) {
	remoteSettings, err := r.remote.FetchSettings(ctx, r.tenantID)
	if err != nil {
		log.Warn().Err(err).Msg("Settings fetch failed, keeping last known snapshot")
		r.count(metrics.CounterRemoteFetchError)
		txn.noticeError(err)
		return
	}
	if err := remoteSettings.Validate(); err != nil {
		log.Error().Err(err).Msg("Remote settings invalid, keeping last known snapshot")
		txn.noticeError(err)
		return
	}

	localSettings, _ := r.store.LoadSettings(ctx)
	if err := r.store.SaveSettings(ctx, remoteSettings); err != nil {
		log.Warn().Err(err).Msg("Failed to persist settings snapshot")
		txn.noticeError(err)
		return
	}
	if !settingsEqual(localSettings, remoteSettings) {
		r.bus.Publish(notify.TopicSettingsChanged)
	}
}

func (r *Reconciler) count(name string) {
	if r.metrics != nil {
		r.metrics.IncrementCounter(name)
	}
}

func countOpen(orders []models.Order) int {
	open := 0
	for _, o := range orders {
		if o.Status != models.StatusDelivered {
			open++
		}
	}
	return open
}

func ordersEqual(a, b []models.Order) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].Timestamp.Equal(b[i].Timestamp) || a[i].Status != b[i].Status {
			return false
		}
	}
	return true
}

// menuEqual compares every field, including routing overrides and combo
// composition. Any remote edit must wake menu subscribers.
func menuEqual(a, b []models.MenuItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func settingsEqual(a, b models.AppSettings) bool {
	if len(a.CategoryDestinations) != len(b.CategoryDestinations) {
		return false
	}
	for cat, dept := range a.CategoryDestinations {
		if b.CategoryDestinations[cat] != dept {
			return false
		}
	}
	if len(a.PrintEnabled) != len(b.PrintEnabled) {
		return false
	}
	for dept, enabled := range a.PrintEnabled {
		if b.PrintEnabled[dept] != enabled {
			return false
		}
	}
	return a.RestaurantProfile == b.RestaurantProfile
}
