package models

import (
	"time"
)

// Category is the fixed menu-category vocabulary. Every category must be
// routable to a department (see AppSettings.Validate).
type Category string

const (
	CategoryAntipasti    Category = "antipasti"
	CategoryPrimi        Category = "primi"
	CategorySecondi      Category = "secondi"
	CategoryDolci        Category = "dolci"
	CategoryBevande      Category = "bevande"
	CategoryPizze        Category = "pizze"
	CategoryPanini       Category = "panini"
	CategoryMenuCompleto Category = "menu_completo"
)

// AllCategories lists every category in ticket-priority order: the order a
// kitchen ticket lays its lines out in.
var AllCategories = []Category{
	CategoryAntipasti,
	CategoryPrimi,
	CategorySecondi,
	CategoryPizze,
	CategoryPanini,
	CategoryMenuCompleto,
	CategoryDolci,
	CategoryBevande,
}

// Department is a physical preparation/service station that owns a display
// terminal. Not a stored entity, only a routing target.
type Department string

const (
	DepartmentKitchen  Department = "kitchen"
	DepartmentPizzeria Department = "pizzeria"
	DepartmentPub      Department = "pub"
	DepartmentSala     Department = "sala"
	DepartmentCassa    Department = "cassa"
)

// AllDepartments lists the closed department set.
var AllDepartments = []Department{
	DepartmentKitchen,
	DepartmentPizzeria,
	DepartmentPub,
	DepartmentSala,
	DepartmentCassa,
}

// IsFrontOfHouse reports whether the department serves directly without a
// kitchen preparation step. Items routed here are ready the moment the
// order lands.
func (d Department) IsFrontOfHouse() bool {
	return d == DepartmentSala || d == DepartmentCassa
}

// Valid reports whether d belongs to the closed department set.
func (d Department) Valid() bool {
	for _, dept := range AllDepartments {
		if d == dept {
			return true
		}
	}
	return false
}

// Allergen is the fixed allergen vocabulary.
type Allergen string

const (
	AllergenGlutine     Allergen = "glutine"
	AllergenLatte       Allergen = "latte"
	AllergenUova        Allergen = "uova"
	AllergenPesce       Allergen = "pesce"
	AllergenCrostacei   Allergen = "crostacei"
	AllergenFruttaSecca Allergen = "frutta_secca"
	AllergenArachidi    Allergen = "arachidi"
	AllergenSoia        Allergen = "soia"
	AllergenSedano      Allergen = "sedano"
)

// MenuItem is a dish on the menu. Order lines embed a full copy of the menu
// item rather than a reference so history survives menu edits and deletes.
type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Allergens   []string `json:"allergens,omitempty"`
	Image       string   `json:"image,omitempty"`
	// ComboItems holds sub-item ids, populated only for the combo category.
	ComboItems []string `json:"combo_items,omitempty"`
	// SpecificDepartment overrides category-based routing when set.
	SpecificDepartment *Department `json:"specific_department,omitempty"`
}

// IsCombo reports whether the item is a fixed-price bundle whose sub-items
// are tracked independently for prep and serve status.
func (m MenuItem) IsCombo() bool {
	return m.Category == CategoryMenuCompleto
}

// OrderStatus is the order state machine: Pending -> Cooking -> Ready ->
// Delivered, forward only.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCooking   OrderStatus = "cooking"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

// Next returns the following status and false when the status is terminal.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case StatusPending:
		return StatusCooking, true
	case StatusCooking:
		return StatusReady, true
	case StatusReady:
		return StatusDelivered, true
	default:
		return s, false
	}
}

// OrderItem is a line on an order. MenuItem is a denormalized snapshot taken
// at send time, on purpose: deleting or editing the menu must not rewrite
// history.
type OrderItem struct {
	MenuItem MenuItem `json:"menu_item"`
	Quantity int      `json:"quantity"`
	Notes    string   `json:"notes,omitempty"`
	// Completed means the kitchen finished cooking. Ignored for combo items,
	// where ComboCompletedParts is authoritative.
	Completed bool `json:"completed"`
	// Served means the waiter delivered the line to the table.
	Served bool `json:"served"`
	// IsAddedLater marks lines appended to an already-sent order.
	IsAddedLater bool `json:"is_added_later,omitempty"`
	// ComboCompletedParts and ComboServedParts track per-sub-item state for
	// combo lines, keyed by sub-MenuItem id.
	ComboCompletedParts []string `json:"combo_completed_parts,omitempty"`
	ComboServedParts    []string `json:"combo_served_parts,omitempty"`
}

// HasCompletedPart reports whether the sub-item id is marked cooked.
func (i OrderItem) HasCompletedPart(subItemID string) bool {
	return containsString(i.ComboCompletedParts, subItemID)
}

// HasServedPart reports whether the sub-item id is marked served. A served
// parent implies all parts served.
func (i OrderItem) HasServedPart(subItemID string) bool {
	if i.Served {
		return true
	}
	return containsString(i.ComboServedParts, subItemID)
}

// Order is a table's currently-open tab. Timestamp is the last-mutation
// instant and must never decrease; CreatedAt is immutable and used for
// historical-day bucketing.
type Order struct {
	ID          string      `json:"id"`
	TableNumber string      `json:"table_number"`
	Items       []OrderItem `json:"items"`
	Status      OrderStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	CreatedAt   time.Time   `json:"created_at"`
	WaiterName  string      `json:"waiter_name"`
}

// Touch bumps the last-mutation timestamp, keeping it monotonic even when
// the clock steps backwards.
func (o *Order) Touch(now time.Time) {
	if now.After(o.Timestamp) {
		o.Timestamp = now
	} else {
		o.Timestamp = o.Timestamp.Add(time.Millisecond)
	}
}

// RestaurantProfile is the free-form tenant profile record.
type RestaurantProfile struct {
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	TableCount int    `json:"table_count"`
}

// DefaultTableCount is applied when the profile carries no table count.
const DefaultTableCount = 12

// AppSettings is the tenant-scoped configuration: where each category is
// prepared, which departments print tickets, and the restaurant profile.
type AppSettings struct {
	CategoryDestinations map[Category]Department `json:"category_destinations"`
	PrintEnabled         map[Department]bool     `json:"print_enabled"`
	RestaurantProfile    RestaurantProfile       `json:"restaurant_profile"`
}

// DefaultSettings returns settings with every category mapped to a
// department and printing disabled everywhere.
func DefaultSettings() AppSettings {
	return AppSettings{
		CategoryDestinations: map[Category]Department{
			CategoryAntipasti:    DepartmentKitchen,
			CategoryPrimi:        DepartmentKitchen,
			CategorySecondi:      DepartmentKitchen,
			CategoryDolci:        DepartmentKitchen,
			CategoryBevande:      DepartmentSala,
			CategoryPizze:        DepartmentPizzeria,
			CategoryPanini:       DepartmentPub,
			CategoryMenuCompleto: DepartmentKitchen,
		},
		PrintEnabled: map[Department]bool{},
		RestaurantProfile: RestaurantProfile{
			TableCount: DefaultTableCount,
		},
	}
}

// Validate fails when any category lacks a routing destination or maps to an
// unknown department. An unmapped category is a fatal setup error, not a
// runtime nil to swallow.
func (s AppSettings) Validate() error {
	for _, cat := range AllCategories {
		dept, ok := s.CategoryDestinations[cat]
		if !ok || dept == "" {
			return &UnroutedCategoryError{Category: cat}
		}
		if !dept.Valid() {
			return &UnroutedCategoryError{Category: cat, BadDepartment: dept}
		}
	}
	if s.RestaurantProfile.TableCount <= 0 {
		return ErrInvalidTableCount
	}
	return nil
}

// Normalize fills gaps a remote settings record may carry: missing category
// destinations fall back to defaults, table count to DefaultTableCount.
func (s *AppSettings) Normalize() {
	defaults := DefaultSettings()
	if s.CategoryDestinations == nil {
		s.CategoryDestinations = map[Category]Department{}
	}
	for cat, dept := range defaults.CategoryDestinations {
		if _, ok := s.CategoryDestinations[cat]; !ok {
			s.CategoryDestinations[cat] = dept
		}
	}
	if s.PrintEnabled == nil {
		s.PrintEnabled = map[Department]bool{}
	}
	if s.RestaurantProfile.TableCount <= 0 {
		s.RestaurantProfile.TableCount = DefaultTableCount
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
