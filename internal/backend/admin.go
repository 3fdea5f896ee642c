package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/apiclient"
	"github.com/xenking/resto-client/internal/domain/analytics"
)

const pathAnalytics = "/order/admin/analytics"

// Admin is the restaurant-admin part of the backend. Calls carry the admin
// credentials; a 403 surfaces as apiclient.ErrForbidden.
type Admin struct {
	client *apiclient.Client
}

// NewAdmin creates an Admin on top of the admin-scoped client.
func NewAdmin(client *apiclient.Client) *Admin {
	return &Admin{client: client}
}

var _ analytics.Source = (*Admin)(nil)

// Revenue returns the daily revenue in r.
func (a *Admin) Revenue(ctx context.Context, r analytics.Range) ([]analytics.RevenuePoint, error) {
	var out []analytics.RevenuePoint
	if err := getList(ctx, a.client, analyticsPath("revenue", r, 0), &out, "revenue", "data"); err != nil {
		return nil, errors.Wrap(err, "revenue")
	}
	return out, nil
}

// OrderStats returns the order counts in r.
func (a *Admin) OrderStats(ctx context.Context, r analytics.Range) (*analytics.OrderStats, error) {
	resp, err := a.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: analyticsPath("orders", r, 0)})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiclient.ReadError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read order stats")
	}
	if inner, err := findObject(raw, "stats", "data"); err == nil && inner != nil {
		raw = inner
	}
	var out analytics.OrderStats
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode order stats")
	}
	return &out, nil
}

// TopItems returns up to limit best sellers in r.
func (a *Admin) TopItems(ctx context.Context, r analytics.Range, limit int) ([]analytics.TopItem, error) {
	var out []analytics.TopItem
	if err := getList(ctx, a.client, analyticsPath("top-items", r, limit), &out, "items", "data"); err != nil {
		return nil, errors.Wrap(err, "top items")
	}
	return out, nil
}

func analyticsPath(section string, r analytics.Range, limit int) string {
	q := url.Values{}
	if !r.From.IsZero() {
		q.Set("from", r.From.Format(analytics.DateLayout))
	}
	if !r.To.IsZero() {
		q.Set("to", r.To.Format(analytics.DateLayout))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	p := pathAnalytics + "/" + section
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}
