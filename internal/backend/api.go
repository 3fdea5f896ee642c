package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/apiclient"
	"github.com/xenking/resto-client/internal/domain/order"
	"github.com/xenking/resto-client/internal/domain/restaurant"
)

const (
	pathRestaurants = "/restaurant"
	pathOrders      = "/order/orders"
)

// API is the customer-facing part of the backend. All calls carry the user
// credentials and go through the refresh-and-retry cycle.
type API struct {
	client *apiclient.Client
}

// NewAPI creates an API on top of the user-scoped client.
func NewAPI(client *apiclient.Client) *API {
	return &API{client: client}
}

var (
	_ restaurant.Catalog = (*API)(nil)
	_ order.Backend      = (*API)(nil)
)

// Restaurants lists every restaurant.
func (a *API) Restaurants(ctx context.Context) ([]restaurant.Restaurant, error) {
	var out []restaurant.Restaurant
	if err := a.list(ctx, pathRestaurants, &out, "restaurants", "data"); err != nil {
		return nil, errors.Wrap(err, "restaurants")
	}
	return out, nil
}

// MenuItems lists the menu of a restaurant.
func (a *API) MenuItems(ctx context.Context, restaurantID string) ([]restaurant.MenuItem, error) {
	var out []restaurant.MenuItem
	path := pathRestaurants + "/" + url.PathEscape(restaurantID) + "/items"
	if err := a.list(ctx, path, &out, "items", "menu", "data"); err != nil {
		return nil, errors.Wrap(err, "menu items")
	}
	return out, nil
}

// CreateOrder places an order and returns the id assigned by the backend.
func (a *API) CreateOrder(ctx context.Context, p order.Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encode order")
	}
	resp, err := a.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   pathOrders,
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiclient.ReadError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read order")
	}
	id, err := findString(raw, []string{"orderId", "id", "_id"}, []string{"order", "data"})
	if err != nil {
		return "", errors.Wrap(err, "decode order")
	}
	if id == "" {
		return "", errors.New("backend returned no order id")
	}
	return id, nil
}

// UpdateOrder replaces the contents of an order.
func (a *API) UpdateOrder(ctx context.Context, orderID string, p order.Payload) error {
	return a.client.DoJSON(ctx, http.MethodPut, orderPath(orderID), p, nil)
}

// CancelOrder deletes an order.
func (a *API) CancelOrder(ctx context.Context, orderID string) error {
	return a.client.DoJSON(ctx, http.MethodDelete, orderPath(orderID), nil, nil)
}

func orderPath(id string) string {
	return pathOrders + "/" + url.PathEscape(id)
}

// list decodes a JSON array that may be wrapped in an object under one of
// keys.
func (a *API) list(ctx context.Context, path string, out any, keys ...string) error {
	return getList(ctx, a.client, path, out, keys...)
}

func getList(ctx context.Context, c *apiclient.Client, path string, out any, keys ...string) error {
	resp, err := c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiclient.ReadError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	arr, err := unwrapList(raw, keys...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(arr, out); err != nil {
		return errors.Wrap(err, "decode list")
	}
	return nil
}
