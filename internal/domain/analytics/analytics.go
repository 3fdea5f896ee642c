// Package analytics assembles the admin dashboard from the backend's
// analytics endpoints.
package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned when From lies after To.
var ErrInvalidRange = errors.New("invalid date range")

// DateLayout is the format of dates on the wire.
const DateLayout = "2006-01-02"

// Range is an inclusive day range. Zero bounds are left to the backend
// defaults.
type Range struct {
	From time.Time
	To   time.Time
}

// Validate checks the bounds are ordered.
func (r Range) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return ErrInvalidRange
	}
	return nil
}

// LastDays returns the range covering the n days up to and including now.
func LastDays(now time.Time, n int) Range {
	to := now.UTC().Truncate(24 * time.Hour)
	return Range{From: to.AddDate(0, 0, -(n - 1)), To: to}
}

// RevenuePoint is the revenue of a single day.
type RevenuePoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// OrderStats counts orders by outcome.
type OrderStats struct {
	Total        int             `json:"total"`
	Pending      int             `json:"pending"`
	Completed    int             `json:"completed"`
	Cancelled    int             `json:"cancelled"`
	AverageValue decimal.Decimal `json:"averageValue"`
}

// TopItem is a best-selling menu item.
type TopItem struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Dashboard is everything the admin overview shows.
type Dashboard struct {
	Range        Range
	Revenue      []RevenuePoint
	TotalRevenue decimal.Decimal
	Stats        OrderStats
	TopItems     []TopItem
}

// Source fetches the raw analytics. Implementations are expected to use the
// admin credentials.
type Source interface {
	Revenue(ctx context.Context, r Range) ([]RevenuePoint, error)
	OrderStats(ctx context.Context, r Range) (*OrderStats, error)
	TopItems(ctx context.Context, r Range, limit int) ([]TopItem, error)
}
