// Package catalog owns menu and settings administration. Unlike orders,
// these records have no offline-edit protection: the remote store is
// written first and the local snapshot follows, so a failed remote write
// surfaces to the caller instead of being merged away later.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/messaging"
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/notify"
)

// Snapshots is the slice of the local cache the manager needs.
type Snapshots interface {
	LoadMenu(ctx context.Context) ([]models.MenuItem, error)
	SaveMenu(ctx context.Context, menu []models.MenuItem) error
	SaveSettings(ctx context.Context, settings models.AppSettings) error
}

// RemoteWriter is the slice of the remote client the manager needs.
type RemoteWriter interface {
	UpsertMenuItem(ctx context.Context, tenantID string, item models.MenuItem) error
	DeleteMenuItem(ctx context.Context, tenantID, itemID string) error
	SaveSettings(ctx context.Context, tenantID string, settings models.AppSettings) error
}

// Announcer broadcasts a change event to the other terminals. May be nil
// when the terminal runs poll-only.
type Announcer interface {
	Publish(ctx context.Context, event messaging.ChangeEvent) error
}

// Manager applies menu and settings edits.
type Manager struct {
	store     Snapshots
	remote    RemoteWriter
	bus       *notify.Bus
	announcer Announcer
	tenantID  string
}

// NewManager creates a catalog manager for one tenant.
func NewManager(store Snapshots, remote RemoteWriter, bus *notify.Bus, announcer Announcer, tenantID string) *Manager {
	return &Manager{
		store:     store,
		remote:    remote,
		bus:       bus,
		announcer: announcer,
		tenantID:  tenantID,
	}
}

// UpsertMenuItem writes a menu item remotely and refreshes the local menu
// snapshot. A blank id means a new item.
func (m *Manager) UpsertMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if err := m.remote.UpsertMenuItem(ctx, m.tenantID, item); err != nil {
		return models.MenuItem{}, err
	}

	menu, err := m.store.LoadMenu(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load menu snapshot, skipping local update")
		menu = nil
	}
	replaced := false
	for i := range menu {
		if menu[i].ID == item.ID {
			menu[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		menu = append(menu, item)
	}
	if err := m.store.SaveMenu(ctx, menu); err != nil {
		log.Warn().Err(err).Msg("Failed to save menu snapshot, next reconcile recovers")
	}

	m.bus.Publish(notify.TopicMenuChanged)
	m.announce(ctx, "update", messaging.EntityMenu)
	return item, nil
}

// DeleteMenuItem removes a menu item. Historical order lines keep their own
// snapshot and are unaffected.
func (m *Manager) DeleteMenuItem(ctx context.Context, itemID string) error {
	if err := m.remote.DeleteMenuItem(ctx, m.tenantID, itemID); err != nil {
		return err
	}

	menu, err := m.store.LoadMenu(ctx)
	if err == nil {
		kept := menu[:0]
		for _, item := range menu {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		if err := m.store.SaveMenu(ctx, kept); err != nil {
			log.Warn().Err(err).Msg("Failed to save menu snapshot, next reconcile recovers")
		}
	}

	m.bus.Publish(notify.TopicMenuChanged)
	m.announce(ctx, "delete", messaging.EntityMenu)
	return nil
}

// SaveSettings validates and writes the tenant settings.
func (m *Manager) SaveSettings(ctx context.Context, settings models.AppSettings) error {
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := m.remote.SaveSettings(ctx, m.tenantID, settings); err != nil {
		return err
	}
	if err := m.store.SaveSettings(ctx, settings); err != nil {
		log.Warn().Err(err).Msg("Failed to save settings snapshot, next reconcile recovers")
	}

	m.bus.Publish(notify.TopicSettingsChanged)
	m.announce(ctx, "update", messaging.EntitySettings)
	return nil
}

func (m *Manager) announce(ctx context.Context, eventType, entity string) {
	if m.announcer == nil {
		return
	}
	event := messaging.ChangeEvent{
		EventType: eventType,
		TenantID:  m.tenantID,
		Entity:    entity,
	}
	if err := m.announcer.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("entity", entity).Msg("Failed to announce change, peers rely on polling")
	}
}
