// Package restaurant holds the restaurant catalog and the customer's current
// restaurant selection.
package restaurant

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoRestaurantSelected is returned when an operation needs a selected
// restaurant and none is set.
var ErrNoRestaurantSelected = errors.New("no restaurant selected")

// Restaurant is a venue that accepts orders.
type Restaurant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Cuisine  string `json:"cuisine,omitempty"`
	IsOpen   bool   `json:"isOpen"`
}

// MenuItem is an orderable dish.
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Addons      []Addon         `json:"addons,omitempty"`
	Available   bool            `json:"available"`
}

// Addon is an optional paid modifier offered for a menu item.
type Addon struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Catalog reads restaurants and their menus from the backend.
type Catalog interface {
	Restaurants(ctx context.Context) ([]Restaurant, error)
	MenuItems(ctx context.Context, restaurantID string) ([]MenuItem, error)
}
