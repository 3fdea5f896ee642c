package restaurant

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/storage"
)

// Service browses the catalog and remembers the selected restaurant.
type Service struct {
	catalog Catalog
	kv      storage.KV

	mu       sync.RWMutex
	selected *Restaurant
	loaded   bool
}

// NewService creates a restaurant Service.
func NewService(catalog Catalog, kv storage.KV) *Service {
	return &Service{catalog: catalog, kv: kv}
}

// List returns every restaurant.
func (s *Service) List(ctx context.Context) ([]Restaurant, error) {
	rs, err := s.catalog.Restaurants(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list restaurants")
	}
	return rs, nil
}

// Items returns the menu of restaurant id.
func (s *Service) Items(ctx context.Context, id string) ([]MenuItem, error) {
	if id == "" {
		return nil, errors.New("restaurant id required")
	}
	items, err := s.catalog.MenuItems(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "menu of %s", id)
	}
	return items, nil
}

// Select makes r the current restaurant.
func (s *Service) Select(ctx context.Context, r Restaurant) error {
	if r.ID == "" {
		return errors.New("restaurant id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.SetJSON(ctx, s.kv, storage.KeySelectedRestaurant, r); err != nil {
		return errors.Wrap(err, "persist selection")
	}
	s.selected = &r
	s.loaded = true
	return nil
}

// Selected returns the current restaurant or ErrNoRestaurantSelected.
func (s *Service) Selected(ctx context.Context) (*Restaurant, error) {
	s.mu.RLock()
	if s.loaded {
		r := s.selected
		s.mu.RUnlock()
		if r == nil {
			return nil, ErrNoRestaurantSelected
		}
		out := *r
		return &out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var r Restaurant
	ok, err := storage.GetJSON(ctx, s.kv, storage.KeySelectedRestaurant, &r)
	if err != nil {
		return nil, errors.Wrap(err, "load selection")
	}
	s.loaded = true
	if !ok || r.ID == "" {
		s.selected = nil
		return nil, ErrNoRestaurantSelected
	}
	s.selected = &r
	out := r
	return &out, nil
}

// ClearSelection forgets the current restaurant.
func (s *Service) ClearSelection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = nil
	s.loaded = true
	if err := s.kv.Delete(ctx, storage.KeySelectedRestaurant); err != nil {
		return errors.Wrap(err, "clear selection")
	}
	return nil
}
