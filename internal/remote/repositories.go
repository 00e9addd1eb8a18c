// Package remote is the client for the authoritative backend store. Writes
// are fire-and-forget upserts keyed by entity id: last writer wins at the
// store level, with the merge engine's freshness window as the only
// safeguard for very recent local work.
package remote

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/tavolo/possync/internal/models"
)

// OrderRepository provides access to the remote orders table.
type OrderRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB, readOnlyDB *gorm.DB) *OrderRepository {
	return &OrderRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// FetchAll returns every order row for the tenant, oldest mutation first.
func (r *OrderRepository) FetchAll(ctx context.Context, tenantID string) ([]models.Order, error) {
	var rows []models.OrderRow
	err := r.readOnlyDB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("timestamp asc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch orders")
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.ToOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Upsert writes an order row, replacing any previous version of the same
// id. Callers treat failures as transient; the next mutation or poll
// retries.
func (r *OrderRepository) Upsert(ctx context.Context, tenantID string, order models.Order) error {
	row, err := order.ToRow(tenantID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "failed to upsert order %s", order.ID)
	}
	return nil
}

// Delete removes an order row.
func (r *OrderRepository) Delete(ctx context.Context, tenantID, orderID string) error {
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		Delete(&models.OrderRow{}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to delete order %s", orderID)
	}
	return nil
}

// MenuRepository provides access to the remote menu table.
type MenuRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewMenuRepository creates a new menu repository.
func NewMenuRepository(db *gorm.DB, readOnlyDB *gorm.DB) *MenuRepository {
	return &MenuRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// FetchAll returns the tenant's full menu.
func (r *MenuRepository) FetchAll(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	var rows []models.MenuItemRow
	err := r.readOnlyDB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name asc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch menu")
	}

	menu := make([]models.MenuItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.ToMenuItem()
		if err != nil {
			return nil, err
		}
		menu = append(menu, item)
	}
	return menu, nil
}

// Upsert writes a menu item row.
func (r *MenuRepository) Upsert(ctx context.Context, tenantID string, item models.MenuItem) error {
	row, err := item.ToRow(tenantID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "failed to upsert menu item %s", item.ID)
	}
	return nil
}

// Delete removes a menu item. Deletion is immediate: historical order lines
// embed their own snapshot and are unaffected.
func (r *MenuRepository) Delete(ctx context.Context, tenantID, itemID string) error {
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, itemID).
		Delete(&models.MenuItemRow{}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to delete menu item %s", itemID)
	}
	return nil
}

// ProfileRepository provides access to the tenant's settings record.
type ProfileRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ProfileRepository {
	return &ProfileRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// FetchSettings loads the tenant's settings document. A missing record
// yields defaults; a present but malformed one is an error surfaced to the
// reconciler (which keeps the prior local snapshot).
func (r *ProfileRepository) FetchSettings(ctx context.Context, tenantID string) (models.AppSettings, error) {
	var row models.ProfileRow
	err := r.readOnlyDB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefaultSettings(), nil
		}
		return models.AppSettings{}, errors.Wrap(err, "failed to fetch settings")
	}
	return row.ToSettings()
}

// SaveSettings writes the settings document back. The settings must already
// be validated; an unroutable category must never reach the store.
func (r *ProfileRepository) SaveSettings(ctx context.Context, tenantID string, settings models.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	row, err := settingsToRow(tenantID, settings)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to save settings")
	}
	return nil
}
