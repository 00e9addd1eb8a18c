package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/tavolo/possync/internal/models"
)

func menuItem(id, name string, cat models.Category) models.MenuItem {
	return models.MenuItem{ID: id, Name: name, Price: 8, Category: cat}
}

func line(item models.MenuItem, qty int) models.OrderItem {
	return models.OrderItem{MenuItem: item, Quantity: qty}
}

func TestRouterTotality(t *testing.T) {
	settings := models.DefaultSettings()
	for _, cat := range models.AllCategories {
		dept := DestinationOf(models.MenuItem{Category: cat}, settings)
		require.NotEmpty(t, dept, "category %s must route somewhere", cat)
		require.True(t, dept.Valid())
	}
}

func TestSpecificDepartmentOverridesCategory(t *testing.T) {
	settings := models.DefaultSettings()
	pub := models.DepartmentPub
	item := menuItem("m1", "Tiramisu della casa", models.CategoryDolci)
	item.SpecificDepartment = &pub

	require.Equal(t, models.DepartmentPub, DestinationOf(item, settings))
}

func TestInvalidOverrideFallsBackToCategory(t *testing.T) {
	settings := models.DefaultSettings()
	bogus := models.Department("garage")
	item := menuItem("m1", "Lasagne", models.CategoryPrimi)
	item.SpecificDepartment = &bogus

	require.Equal(t, models.DepartmentKitchen, DestinationOf(item, settings))
}

func TestKitchenSeesMargheritaPubDoesNot(t *testing.T) {
	settings := models.DefaultSettings()
	settings.CategoryDestinations[models.CategoryPizze] = models.DepartmentKitchen

	order := models.Order{
		ID:          "o1",
		TableNumber: "5",
		Items:       []models.OrderItem{line(menuItem("m1", "Margherita", models.CategoryPizze), 2)},
	}

	kitchen := ItemsFor(order, models.DepartmentKitchen, settings)
	require.Len(t, kitchen, 1)
	require.Equal(t, "Margherita", kitchen[0].MenuItem.Name)
	require.Equal(t, 2, kitchen[0].Quantity)

	require.Empty(t, ItemsFor(order, models.DepartmentPub, settings))
	require.False(t, HasItemsFor(order, models.DepartmentPub, settings))
}

func TestItemsForOrderedByCategoryPriority(t *testing.T) {
	settings := models.DefaultSettings()
	order := models.Order{
		Items: []models.OrderItem{
			line(menuItem("m1", "Tiramisu", models.CategoryDolci), 1),
			line(menuItem("m2", "Bruschette", models.CategoryAntipasti), 1),
			line(menuItem("m3", "Carbonara", models.CategoryPrimi), 1),
		},
	}

	items := ItemsFor(order, models.DepartmentKitchen, settings)
	require.Len(t, items, 3)
	require.Equal(t, "Bruschette", items[0].MenuItem.Name)
	require.Equal(t, "Carbonara", items[1].MenuItem.Name)
	require.Equal(t, "Tiramisu", items[2].MenuItem.Name)
}

func TestCoordinationAcrossDepartments(t *testing.T) {
	settings := models.DefaultSettings()
	order := models.Order{
		Items: []models.OrderItem{
			line(menuItem("m1", "Margherita", models.CategoryPizze), 1),
			line(menuItem("m2", "Carbonara", models.CategoryPrimi), 1),
			line(menuItem("m3", "Coca Cola", models.CategoryBevande), 2),
		},
	}

	departments := CoordinationDepartments(order, settings)
	require.Equal(t, []models.Department{models.DepartmentKitchen, models.DepartmentPizzeria}, departments)
	require.True(t, NeedsCoordination(order, settings))

	// Drinks go to the front of house and never count as "elsewhere".
	require.Equal(t, 1, ItemsElsewhere(order, models.DepartmentKitchen, settings))
	require.Equal(t, 1, ItemsElsewhere(order, models.DepartmentPizzeria, settings))
}

func TestSingleDepartmentNeedsNoCoordination(t *testing.T) {
	settings := models.DefaultSettings()
	order := models.Order{
		Items: []models.OrderItem{
			line(menuItem("m1", "Carbonara", models.CategoryPrimi), 1),
			line(menuItem("m2", "Saltimbocca", models.CategorySecondi), 1),
		},
	}

	require.False(t, NeedsCoordination(order, settings))
	require.Zero(t, ItemsElsewhere(order, models.DepartmentKitchen, settings))
}
