// Package storage defines the key-value store that mirrors client state
// (session, cart, active order, selected restaurant) between runs.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// Keys under which client state is persisted.
const (
	KeyUser               = "user"
	KeyAdminUser          = "adminUser"
	KeyCart               = "cart"
	KeyOrderID            = "orderId"
	KeyOrderDetails       = "orderDetails"
	KeySelectedRestaurant = "selectedRestaurant"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a namespaced key-value store. Every Set replaces the whole value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores backed by a server.
type Pinger interface {
	Ping(ctx context.Context) error
}
