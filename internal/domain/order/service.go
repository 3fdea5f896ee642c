// Package order drives checkout and the lifecycle of the single active order
// held by the client.
package order

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/resto-client/internal/domain/cart"
	"github.com/xenking/resto-client/internal/domain/restaurant"
	"github.com/xenking/resto-client/internal/storage"
)

// Sentinel errors for order validation. All of them are raised before any
// network call.
var (
	ErrNoActiveOrder = errors.New("no active order")
	ErrActiveOrder   = errors.New("an order is already in progress")
	ErrEmptyCart     = errors.New("cart is empty")
)

// Service encapsulates the checkout and order lifecycle logic.
type Service struct {
	backend     Backend
	cart        Cart
	restaurants Restaurants
	kv          storage.KV
	shape       AddonShape

	mu      sync.Mutex
	state   State
	details Details
}

// NewService creates an order Service. The state is restored from the
// persisted order id, if any.
func NewService(
	ctx context.Context,
	backend Backend,
	c Cart,
	restaurants Restaurants,
	kv storage.KV,
	shape AddonShape,
) (*Service, error) {
	if shape == "" {
		shape = AddonPrice
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		backend:     backend,
		cart:        c,
		restaurants: restaurants,
		kv:          kv,
		shape:       shape,
		state:       StateNoOrder,
	}

	id, err := s.ActiveOrderID(ctx)
	if err != nil {
		return nil, err
	}
	if id != "" {
		s.state = StatePlaced
		if _, err := storage.GetJSON(ctx, kv, storage.KeyOrderDetails, &s.details); err != nil {
			return nil, errors.Wrap(err, "load order details")
		}
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveOrderID returns the persisted order id, or "" when there is none.
func (s *Service) ActiveOrderID(ctx context.Context) (string, error) {
	var id string
	if _, err := storage.GetJSON(ctx, s.kv, storage.KeyOrderID, &id); err != nil {
		return "", errors.Wrap(err, "load order id")
	}
	return id, nil
}

// Checkout places an order for the cart contents at the selected restaurant.
// Once the backend accepts the order its id and details are persisted before
// the cart is cleared, so a failing cart store cannot orphan the order. If
// the order is rejected the cart is left untouched.
func (s *Service) Checkout(ctx context.Context, d Details) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.restaurants.Selected(ctx)
	if err != nil {
		if errors.Is(err, restaurant.ErrNoRestaurantSelected) {
			return nil, restaurant.ErrNoRestaurantSelected
		}
		return nil, errors.Wrap(err, "selected restaurant")
	}

	active, err := s.ActiveOrderID(ctx)
	if err != nil {
		return nil, err
	}
	if active != "" {
		return nil, ErrActiveOrder
	}

	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	p := BuildPayload(r.ID, lines, s.shape, d)
	id, err := s.backend.CreateOrder(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	lg := zctx.From(ctx).With(zap.String("order_id", id))
	if err := storage.SetJSON(ctx, s.kv, storage.KeyOrderID, id); err != nil {
		return nil, errors.Wrapf(err, "persist id of placed order %q", id)
	}
	s.state = StatePlaced
	s.details = d

	if err := storage.SetJSON(ctx, s.kv, storage.KeyOrderDetails, d); err != nil {
		lg.Warn("Order details not persisted", zap.Error(err))
	}
	if err := s.cart.ClearItems(ctx); err != nil {
		lg.Warn("Cart not cleared after checkout", zap.Error(err))
	}

	lg.Info("Order placed",
		zap.String("restaurant_id", r.ID),
		zap.Int("items", len(lines)),
	)
	return &Order{ID: id, Payload: p}, nil
}

// Update replaces the contents of the active order with lines. The cart and
// the order id are left as they are.
func (s *Service) Update(ctx context.Context, lines []cart.LineItem) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ActiveOrderID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrNoActiveOrder
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	restaurantID := ""
	if r, err := s.restaurants.Selected(ctx); err == nil {
		restaurantID = r.ID
	}

	p := BuildPayload(restaurantID, lines, s.shape, s.details)
	if err := s.backend.UpdateOrder(ctx, id, p); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	s.state = StateUpdated

	zctx.From(ctx).Info("Order updated", zap.String("order_id", id), zap.Int("items", len(lines)))
	return &Order{ID: id, Payload: p}, nil
}

// Cancel deletes the active order remotely, then clears the cart and the
// order id.
func (s *Service) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ActiveOrderID(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrNoActiveOrder
	}

	if err := s.backend.CancelOrder(ctx, id); err != nil {
		return errors.Wrap(err, "cancel order")
	}
	if err := s.forget(ctx); err != nil {
		return err
	}
	s.state = StateCancelled

	zctx.From(ctx).Info("Order cancelled", zap.String("order_id", id))
	return nil
}

// Complete ends the lifecycle of the active order after it was fulfilled:
// the cart and the order id are cleared.
func (s *Service) Complete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ActiveOrderID(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrNoActiveOrder
	}
	if err := s.forget(ctx); err != nil {
		return err
	}
	s.state = StateCompleted

	zctx.From(ctx).Info("Order completed", zap.String("order_id", id))
	return nil
}

// Reset drops the cart and any active order without contacting the backend.
// It runs on logout.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.forget(ctx); err != nil {
		return err
	}
	s.state = StateNoOrder
	return nil
}

// forget clears the cart, the order id and the order details.
func (s *Service) forget(ctx context.Context) error {
	if err := s.cart.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	if err := s.kv.Delete(ctx, storage.KeyOrderDetails); err != nil {
		return errors.Wrap(err, "clear order details")
	}
	s.details = Details{}
	return nil
}
