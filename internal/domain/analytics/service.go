package analytics

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultTopItems is the number of best sellers on the dashboard.
const DefaultTopItems = 5

// Service reads admin analytics.
type Service struct {
	src Source
}

// NewService creates an analytics Service.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Revenue returns the daily revenue in r.
func (s *Service) Revenue(ctx context.Context, r Range) ([]RevenuePoint, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return s.src.Revenue(ctx, r)
}

// OrderStats returns the order counts in r.
func (s *Service) OrderStats(ctx context.Context, r Range) (*OrderStats, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return s.src.OrderStats(ctx, r)
}

// TopItems returns up to limit best sellers in r.
func (s *Service) TopItems(ctx context.Context, r Range, limit int) ([]TopItem, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopItems
	}
	return s.src.TopItems(ctx, r, limit)
}

// Dashboard fetches all sections concurrently. The first error, a 403 on the
// admin scope included, fails the whole dashboard.
func (s *Service) Dashboard(ctx context.Context, r Range) (*Dashboard, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	d := &Dashboard{Range: r}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		points, err := s.src.Revenue(gctx, r)
		if err != nil {
			return errors.Wrap(err, "revenue")
		}
		d.Revenue = points
		return nil
	})
	g.Go(func() error {
		stats, err := s.src.OrderStats(gctx, r)
		if err != nil {
			return errors.Wrap(err, "order stats")
		}
		if stats != nil {
			d.Stats = *stats
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.src.TopItems(gctx, r, DefaultTopItems)
		if err != nil {
			return errors.Wrap(err, "top items")
		}
		d.TopItems = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.TotalRevenue = decimal.Zero
	orders := 0
	for _, p := range d.Revenue {
		d.TotalRevenue = d.TotalRevenue.Add(p.Revenue)
		orders += p.Orders
	}
	if d.Stats.AverageValue.IsZero() && orders > 0 {
		d.Stats.AverageValue = d.TotalRevenue.Div(decimal.NewFromInt(int64(orders))).Round(2)
	}
	return d, nil
}
