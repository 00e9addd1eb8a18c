package models

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// OrderRow is the remote-store shape of an Order. Items are stored as a
// jsonb blob because lines embed full menu-item snapshots.
type OrderRow struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	TenantID    string    `gorm:"not null;index" json:"tenant_id"`
	TableNumber string    `gorm:"not null" json:"table_number"`
	Status      string    `gorm:"not null" json:"status"`
	Items       []byte    `gorm:"type:jsonb" json:"items"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	WaiterName  string    `json:"waiter_name"`
}

// TableName keeps the remote table name stable across gorm versions.
func (OrderRow) TableName() string { return "orders" }

// MenuItemRow is the remote-store shape of a MenuItem.
type MenuItemRow struct {
	ID                 string         `gorm:"primaryKey" json:"id"`
	TenantID           string         `gorm:"not null;index" json:"tenant_id"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	Name               string         `gorm:"not null" json:"name"`
	Price              float64        `gorm:"not null" json:"price"`
	Category           string         `gorm:"not null" json:"category"`
	Description        string         `json:"description"`
	Ingredients        []byte         `gorm:"type:jsonb" json:"ingredients"`
	Allergens          []byte         `gorm:"type:jsonb" json:"allergens"`
	Image              string         `json:"image"`
	ComboItems         []byte         `gorm:"type:jsonb" json:"combo_items"`
	SpecificDepartment *string        `json:"specific_department"`
}

func (MenuItemRow) TableName() string { return "menu_items" }

// ProfileRow holds the tenant's settings record as a single jsonb document.
// There is one row per tenant, so the tenant id is the primary key and
// saves upsert in place without rewriting any identifier.
type ProfileRow struct {
	TenantID  string    `gorm:"primaryKey" json:"tenant_id"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Settings  []byte    `gorm:"type:jsonb" json:"settings"`
}

func (ProfileRow) TableName() string { return "profiles" }

// SetupModels configures GORM models and runs migrations.
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&OrderRow{},
		&MenuItemRow{},
		&ProfileRow{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}
	return nil
}

// ToRow converts a domain order to its remote row shape.
func (o Order) ToRow(tenantID string) (OrderRow, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return OrderRow{}, errors.Wrap(err, "failed to marshal order items")
	}
	return OrderRow{
		ID:          o.ID,
		TenantID:    tenantID,
		TableNumber: o.TableNumber,
		Status:      string(o.Status),
		Items:       items,
		Timestamp:   o.Timestamp,
		CreatedAt:   o.CreatedAt,
		WaiterName:  o.WaiterName,
	}, nil
}

// ToOrder converts a remote row back to the domain shape.
func (r OrderRow) ToOrder() (Order, error) {
	var items []OrderItem
	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &items); err != nil {
			return Order{}, errors.Wrapf(err, "failed to unmarshal items for order %s", r.ID)
		}
	}
	return Order{
		ID:          r.ID,
		TableNumber: r.TableNumber,
		Items:       items,
		Status:      OrderStatus(r.Status),
		Timestamp:   r.Timestamp,
		CreatedAt:   r.CreatedAt,
		WaiterName:  r.WaiterName,
	}, nil
}

// ToRow converts a domain menu item to its remote row shape.
func (m MenuItem) ToRow(tenantID string) (MenuItemRow, error) {
	ingredients, err := json.Marshal(m.Ingredients)
	if err != nil {
		return MenuItemRow{}, errors.Wrap(err, "failed to marshal ingredients")
	}
	allergens, err := json.Marshal(m.Allergens)
	if err != nil {
		return MenuItemRow{}, errors.Wrap(err, "failed to marshal allergens")
	}
	comboItems, err := json.Marshal(m.ComboItems)
	if err != nil {
		return MenuItemRow{}, errors.Wrap(err, "failed to marshal combo items")
	}
	row := MenuItemRow{
		ID:          m.ID,
		TenantID:    tenantID,
		Name:        m.Name,
		Price:       m.Price,
		Category:    string(m.Category),
		Description: m.Description,
		Ingredients: ingredients,
		Allergens:   allergens,
		Image:       m.Image,
		ComboItems:  comboItems,
	}
	if m.SpecificDepartment != nil {
		dept := string(*m.SpecificDepartment)
		row.SpecificDepartment = &dept
	}
	return row, nil
}

// ToMenuItem converts a remote row back to the domain shape.
func (r MenuItemRow) ToMenuItem() (MenuItem, error) {
	item := MenuItem{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Category:    Category(r.Category),
		Description: r.Description,
		Image:       r.Image,
	}
	if len(r.Ingredients) > 0 {
		if err := json.Unmarshal(r.Ingredients, &item.Ingredients); err != nil {
			return MenuItem{}, errors.Wrapf(err, "failed to unmarshal ingredients for menu item %s", r.ID)
		}
	}
	if len(r.Allergens) > 0 {
		if err := json.Unmarshal(r.Allergens, &item.Allergens); err != nil {
			return MenuItem{}, errors.Wrapf(err, "failed to unmarshal allergens for menu item %s", r.ID)
		}
	}
	if len(r.ComboItems) > 0 {
		if err := json.Unmarshal(r.ComboItems, &item.ComboItems); err != nil {
			return MenuItem{}, errors.Wrapf(err, "failed to unmarshal combo items for menu item %s", r.ID)
		}
	}
	if r.SpecificDepartment != nil && *r.SpecificDepartment != "" {
		dept := Department(*r.SpecificDepartment)
		item.SpecificDepartment = &dept
	}
	return item, nil
}

// ToSettings decodes the settings document, falling back to defaults for an
// empty record, and normalizes gaps.
func (r ProfileRow) ToSettings() (AppSettings, error) {
	settings := DefaultSettings()
	if len(r.Settings) > 0 {
		if err := json.Unmarshal(r.Settings, &settings); err != nil {
			return AppSettings{}, errors.Wrapf(err, "failed to unmarshal settings for tenant %s", r.TenantID)
		}
	}
	settings.Normalize()
	return settings, nil
}
