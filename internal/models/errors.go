package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidTableCount is returned when a profile carries a non-positive
// table count.
var ErrInvalidTableCount = errors.New("restaurant profile: table count must be positive")

// UnroutedCategoryError reports a category with no usable routing
// destination. It is fatal at settings-load time.
type UnroutedCategoryError struct {
	Category      Category
	BadDepartment Department
}

func (e *UnroutedCategoryError) Error() string {
	if e.BadDepartment != "" {
		return fmt.Sprintf("category %q routed to unknown department %q", e.Category, e.BadDepartment)
	}
	return fmt.Sprintf("category %q has no routing destination", e.Category)
}
