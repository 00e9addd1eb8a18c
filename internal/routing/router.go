// Package routing maps order lines to the preparation department that owns
// them: a per-item override wins, otherwise the tenant's category
// destinations decide. Settings validation guarantees the mapping is total,
// so a missing destination is a configuration error, never a runtime nil.
package routing

import (
	"sort"

	"example.com/tavolo/possync/internal/models"
)

// categoryRank is the fixed ticket-layout priority. Lower ranks print first.
var categoryRank = func() map[models.Category]int {
	ranks := make(map[models.Category]int, len(models.AllCategories))
	for i, cat := range models.AllCategories {
		ranks[cat] = i
	}
	return ranks
}()

// DestinationOf resolves the department an item is prepared at.
func DestinationOf(item models.MenuItem, settings models.AppSettings) models.Department {
	if item.SpecificDepartment != nil && item.SpecificDepartment.Valid() {
		return *item.SpecificDepartment
	}
	return settings.CategoryDestinations[item.Category]
}

// ItemsFor filters an order down to the lines relevant to one department,
// ordered by the fixed category-priority ranking for ticket layout. The
// incoming line order breaks ties, so "added later" lines keep their
// relative position within a category.
func ItemsFor(order models.Order, dept models.Department, settings models.AppSettings) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range order.Items {
		if DestinationOf(item.MenuItem, settings) == dept {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return categoryRank[items[i].MenuItem.Category] < categoryRank[items[j].MenuItem.Category]
	})
	return items
}

// HasItemsFor reports whether the order carries at least one line for the
// department. Drives new-order notification and ticket printing.
func HasItemsFor(order models.Order, dept models.Department, settings models.AppSettings) bool {
	for _, item := range order.Items {
		if DestinationOf(item.MenuItem, settings) == dept {
			return true
		}
	}
	return false
}

// CoordinationDepartments returns the distinct non-front-of-house
// departments the order's lines fan out to, in fixed department order. More
// than one means the departments must coordinate plating.
func CoordinationDepartments(order models.Order, settings models.AppSettings) []models.Department {
	present := make(map[models.Department]bool)
	for _, item := range order.Items {
		dept := DestinationOf(item.MenuItem, settings)
		if !dept.IsFrontOfHouse() {
			present[dept] = true
		}
	}
	var departments []models.Department
	for _, dept := range models.AllDepartments {
		if present[dept] {
			departments = append(departments, dept)
		}
	}
	return departments
}

// NeedsCoordination reports whether the order spans more than one
// preparation department.
func NeedsCoordination(order models.Order, settings models.AppSettings) bool {
	return len(CoordinationDepartments(order, settings)) > 1
}

// ItemsElsewhere counts the order's lines destined to preparation
// departments other than dept, so a terminal can show "N items elsewhere".
func ItemsElsewhere(order models.Order, dept models.Department, settings models.AppSettings) int {
	count := 0
	for _, item := range order.Items {
		destination := DestinationOf(item.MenuItem, settings)
		if destination != dept && !destination.IsFrontOfHouse() {
			count++
		}
	}
	return count
}
