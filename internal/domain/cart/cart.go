// Package cart keeps the customer's line items and mirrors them to client
// storage on every change.
//
// Mutations within one process are serialized. Two processes sharing the
// same storage namespace overwrite each other (last writer wins); a cart is
// meant to be driven from a single place at a time.
package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/resto-client/internal/domain/restaurant"
	"github.com/xenking/resto-client/internal/storage"
)

// ErrInvalidItem is returned when an item without id is added.
var ErrInvalidItem = errors.New("item id required")

// Addon is a paid modifier selected for a line item.
type Addon struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is one product entry in the cart. Quantity is never below 1.
type LineItem struct {
	ItemID              string          `json:"itemId"`
	Name                string          `json:"name"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	SelectedAddons      []Addon         `json:"selectedAddons,omitempty"`
}

// Subtotal is (unit price + addon prices) * quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	unit := l.UnitPrice
	for _, a := range l.SelectedAddons {
		unit = unit.Add(a.Price)
	}
	return unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Item is what a caller puts into the cart. Description and ImageURL are
// accepted for convenience but never stored.
type Item struct {
	ID                  string
	Name                string
	Price               decimal.Decimal
	Description         string
	ImageURL            string
	SpecialInstructions string
	SelectedAddons      []Addon
}

// FromMenuItem builds an Item from a catalog entry.
func FromMenuItem(mi restaurant.MenuItem, instructions string, addons ...restaurant.Addon) Item {
	it := Item{
		ID:                  mi.ID,
		Name:                mi.Name,
		Price:               mi.Price,
		Description:         mi.Description,
		ImageURL:            mi.ImageURL,
		SpecialInstructions: instructions,
	}
	for _, a := range addons {
		it.SelectedAddons = append(it.SelectedAddons, Addon{Name: a.Name, Price: a.Price})
	}
	return it
}

// Cart is an ordered mapping from item id to line item.
type Cart struct {
	kv storage.KV

	mu    sync.RWMutex
	lines []LineItem
}

// New returns a cart restored from storage.
func New(ctx context.Context, kv storage.KV) (*Cart, error) {
	c := &Cart{kv: kv}
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Load replaces the in-memory lines with the persisted ones.
func (c *Cart) Load(ctx context.Context) error {
	var lines []LineItem
	if _, err := storage.GetJSON(ctx, c.kv, storage.KeyCart, &lines); err != nil {
		return errors.Wrap(err, "load cart")
	}

	// Drop anything that would break the quantity invariant.
	valid := lines[:0]
	for _, l := range lines {
		if l.ItemID != "" && l.Quantity >= 1 {
			valid = append(valid, l)
		}
	}

	c.mu.Lock()
	c.lines = valid
	c.mu.Unlock()
	return nil
}

// Add increments the quantity of an existing line or appends a new line with
// quantity 1.
func (c *Cart) Add(ctx context.Context, it Item) error {
	if it.ID == "" {
		return ErrInvalidItem
	}
	return c.mutate(ctx, func(lines []LineItem) []LineItem {
		if i := indexOf(lines, it.ID); i >= 0 {
			lines[i].Quantity++
			return lines
		}
		return append(lines, LineItem{
			ItemID:              it.ID,
			Name:                it.Name,
			UnitPrice:           it.Price,
			Quantity:            1,
			SpecialInstructions: it.SpecialInstructions,
			SelectedAddons:      append([]Addon(nil), it.SelectedAddons...),
		})
	})
}

// Remove deletes the line for itemID. Absent ids are a no-op.
func (c *Cart) Remove(ctx context.Context, itemID string) error {
	c.mu.RLock()
	present := indexOf(c.lines, itemID) >= 0
	c.mu.RUnlock()
	if !present {
		return nil
	}

	return c.mutate(ctx, func(lines []LineItem) []LineItem {
		if i := indexOf(lines, itemID); i >= 0 {
			return append(lines[:i], lines[i+1:]...)
		}
		return lines
	})
}

// UpdateQuantity overwrites the quantity of itemID. Quantities below 1 and
// absent ids are a no-op.
func (c *Cart) UpdateQuantity(ctx context.Context, itemID string, q int) error {
	if q < 1 {
		return nil
	}
	c.mu.RLock()
	present := indexOf(c.lines, itemID) >= 0
	c.mu.RUnlock()
	if !present {
		return nil
	}

	return c.mutate(ctx, func(lines []LineItem) []LineItem {
		if i := indexOf(lines, itemID); i >= 0 {
			lines[i].Quantity = q
		}
		return lines
	})
}

// Clear empties the cart and forgets the persisted active order id.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.clearItems(ctx); err != nil {
		return err
	}
	if err := c.kv.Delete(ctx, storage.KeyOrderID); err != nil {
		return errors.Wrap(err, "clear order id")
	}
	return nil
}

// ClearItems empties the cart and keeps the active order id.
func (c *Cart) ClearItems(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearItems(ctx)
}

func (c *Cart) clearItems(ctx context.Context) error {
	if err := c.kv.Delete(ctx, storage.KeyCart); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	c.lines = nil
	return nil
}

// mutate applies fn to a copy of the lines, persists the result and only
// then commits it in memory.
func (c *Cart) mutate(ctx context.Context, fn func([]LineItem) []LineItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fn(cloneLines(c.lines))
	if err := storage.SetJSON(ctx, c.kv, storage.KeyCart, next); err != nil {
		return errors.Wrap(err, "persist cart")
	}
	c.lines = next
	return nil
}

// Lines returns a copy of the line items in insertion order.
func (c *Cart) Lines() []LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneLines(c.lines)
}

// Get returns the line for itemID.
func (c *Cart) Get(itemID string) (LineItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.lines, itemID); i >= 0 {
		return cloneLines(c.lines[i : i+1])[0], true
	}
	return LineItem{}, false
}

// Len returns the number of distinct items.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return c.Len() == 0 }

// Count returns the summed quantity of all lines.
func (c *Cart) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Total returns the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Total(c.lines)
}

// Total sums the subtotals of lines.
func Total(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func indexOf(lines []LineItem, itemID string) int {
	for i := range lines {
		if lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

func cloneLines(lines []LineItem) []LineItem {
	if lines == nil {
		return nil
	}
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		l.SelectedAddons = append([]Addon(nil), l.SelectedAddons...)
		out[i] = l
	}
	return out
}
