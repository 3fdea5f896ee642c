package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/domain/cart"
	"github.com/xenking/resto-client/internal/domain/restaurant"
)

// State is a step of the client-side order lifecycle:
// NoOrder -> Placed -> Updated* -> Cancelled | Completed.
type State string

const (
	StateNoOrder   State = "no_order"
	StatePlaced    State = "placed"
	StateUpdated   State = "updated"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// Active reports whether the state holds an order id.
func (s State) Active() bool {
	return s == StatePlaced || s == StateUpdated
}

// AddonShape is the documented contract for the values of AddonsMap.
type AddonShape string

const (
	// AddonPrice maps addon name to its unit price.
	AddonPrice AddonShape = "price"
	// AddonCount maps addon name to how many times it was selected.
	AddonCount AddonShape = "count"
)

// Validate rejects unknown shapes.
func (s AddonShape) Validate() error {
	switch s {
	case AddonPrice, AddonCount:
		return nil
	default:
		return errors.Errorf("unknown addon shape %q", string(s))
	}
}

// Details are the checkout choices that accompany the cart contents.
type Details struct {
	PaymentMethod  string `json:"paymentMethod,omitempty"`
	DeliveryMethod string `json:"deliveryMethod,omitempty"`
	Address        string `json:"address,omitempty"`
}

// Payload is the body of the create and update order requests.
type Payload struct {
	RestaurantID        string                        `json:"restaurantId,omitempty"`
	ProductsQuantityMap map[string]int                `json:"productsQuantityMap"`
	InstructionsMap     map[string]string             `json:"instructionsMap"`
	AddonsMap           map[string]map[string]float64 `json:"addonsMap"`
	PaymentMethod       string                        `json:"paymentMethod,omitempty"`
	DeliveryMethod      string                        `json:"deliveryMethod,omitempty"`
	Address             string                        `json:"address,omitempty"`
}

// Order is an order placed by this client.
type Order struct {
	ID string
	Payload
}

// Backend performs the remote order operations.
type Backend interface {
	CreateOrder(ctx context.Context, p Payload) (string, error)
	UpdateOrder(ctx context.Context, orderID string, p Payload) error
	CancelOrder(ctx context.Context, orderID string) error
}

// Cart is the subset of the cart used by the order lifecycle. ClearItems
// keeps the persisted order id, Clear drops it.
type Cart interface {
	Lines() []cart.LineItem
	ClearItems(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Restaurants resolves the currently selected restaurant.
type Restaurants interface {
	Selected(ctx context.Context) (*restaurant.Restaurant, error)
}

// BuildPayload converts cart lines into an order payload. Images and
// descriptions are not part of it; only id, quantity, instructions and
// addons are carried. Lines without instructions or addons get no entry in
// the corresponding map.
func BuildPayload(restaurantID string, lines []cart.LineItem, shape AddonShape, d Details) Payload {
	p := Payload{
		RestaurantID:        restaurantID,
		ProductsQuantityMap: make(map[string]int, len(lines)),
		InstructionsMap:     make(map[string]string),
		AddonsMap:           make(map[string]map[string]float64),
		PaymentMethod:       d.PaymentMethod,
		DeliveryMethod:      d.DeliveryMethod,
		Address:             d.Address,
	}
	for _, l := range lines {
		p.ProductsQuantityMap[l.ItemID] = l.Quantity
		if l.SpecialInstructions != "" {
			p.InstructionsMap[l.ItemID] = l.SpecialInstructions
		}
		if len(l.SelectedAddons) == 0 {
			continue
		}
		addons := make(map[string]float64, len(l.SelectedAddons))
		for _, a := range l.SelectedAddons {
			switch shape {
			case AddonCount:
				addons[a.Name]++
			default:
				addons[a.Name] = a.Price.InexactFloat64()
			}
		}
		p.AddonsMap[l.ItemID] = addons
	}
	return p
}
