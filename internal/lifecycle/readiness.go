package lifecycle

import (
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/routing"
)

// ItemReady reports whether a standard line is cooked and waiting to be
// delivered. Combo lines are judged per sub-item, not here.
func ItemReady(item models.OrderItem) bool {
	return item.Completed && !item.Served
}

// SubItemReady reports whether a combo sub-item can be handed to the table:
// prepared by its department (or exempt because the department is front of
// house) and not yet served. A served parent implies all parts served.
func SubItemReady(item models.OrderItem, sub models.MenuItem, settings models.AppSettings) bool {
	if item.HasServedPart(sub.ID) {
		return false
	}
	if routing.DestinationOf(sub, settings).IsFrontOfHouse() {
		return true
	}
	return item.HasCompletedPart(sub.ID)
}

// OrderFullyServed reports whether nothing on the order is still owed to
// the table: every standard line served and every combo line's sub-item set
// covered by its served parts (or the line itself marked served).
func OrderFullyServed(order models.Order) bool {
	for _, item := range order.Items {
		if item.MenuItem.IsCombo() && len(item.MenuItem.ComboItems) > 0 {
			if item.Served {
				continue
			}
			for _, subID := range item.MenuItem.ComboItems {
				if !item.HasServedPart(subID) {
					return false
				}
			}
			continue
		}
		if !item.Served {
			return false
		}
	}
	return true
}
