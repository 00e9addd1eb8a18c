package remote

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/tavolo/possync/internal/models"
)

// Client bundles the remote repositories behind the surface the reconciler
// and lifecycle manager consume.
type Client interface {
	FetchOrders(ctx context.Context, tenantID string) ([]models.Order, error)
	UpsertOrder(ctx context.Context, tenantID string, order models.Order) error
	DeleteOrder(ctx context.Context, tenantID, orderID string) error
	FetchMenu(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	UpsertMenuItem(ctx context.Context, tenantID string, item models.MenuItem) error
	DeleteMenuItem(ctx context.Context, tenantID, itemID string) error
	FetchSettings(ctx context.Context, tenantID string) (models.AppSettings, error)
	SaveSettings(ctx context.Context, tenantID string, settings models.AppSettings) error
}

type client struct {
	orders   *OrderRepository
	menu     *MenuRepository
	profiles *ProfileRepository
}

// NewClient creates a remote store client over the write and read-only
// database handles.
func NewClient(db, readOnlyDB *gorm.DB) Client {
	return &client{
		orders:   NewOrderRepository(db, readOnlyDB),
		menu:     NewMenuRepository(db, readOnlyDB),
		profiles: NewProfileRepository(db, readOnlyDB),
	}
}

func (c *client) FetchOrders(ctx context.Context, tenantID string) ([]models.Order, error) {
	return c.orders.FetchAll(ctx, tenantID)
}

func (c *client) UpsertOrder(ctx context.Context, tenantID string, order models.Order) error {
	return c.orders.Upsert(ctx, tenantID, order)
}

func (c *client) DeleteOrder(ctx context.Context, tenantID, orderID string) error {
	return c.orders.Delete(ctx, tenantID, orderID)
}

func (c *client) FetchMenu(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	return c.menu.FetchAll(ctx, tenantID)
}

func (c *client) UpsertMenuItem(ctx context.Context, tenantID string, item models.MenuItem) error {
	return c.menu.Upsert(ctx, tenantID, item)
}

func (c *client) DeleteMenuItem(ctx context.Context, tenantID, itemID string) error {
	return c.menu.Delete(ctx, tenantID, itemID)
}

func (c *client) FetchSettings(ctx context.Context, tenantID string) (models.AppSettings, error) {
	return c.profiles.FetchSettings(ctx, tenantID)
}

func (c *client) SaveSettings(ctx context.Context, tenantID string, settings models.AppSettings) error {
	return c.profiles.SaveSettings(ctx, tenantID, settings)
}

func settingsToRow(tenantID string, settings models.AppSettings) (models.ProfileRow, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return models.ProfileRow{}, errors.Wrap(err, "failed to marshal settings")
	}
	return models.ProfileRow{
		TenantID: tenantID,
		Settings: data,
	}, nil
}
