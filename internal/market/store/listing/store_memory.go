// Package listing persists Listing aggregates.
//
// The in-memory implementation keeps single-node deployments and tests
// lightweight; the Postgres implementation backs multi-node deployments.
// Both return pkg/platform/sentinel errors for resource facts.
package listing

import (
	"context"
	"sync"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
)

// InMemory stores listings in process memory. Copies go in and out so callers
// can never mutate stored state outside a transaction boundary.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.ListingID]models.Listing
	byItem   map[id.AssetID]id.ListingID
}

func NewInMemory() *InMemory {
	return &InMemory{
		listings: make(map[id.ListingID]models.Listing),
		byItem:   make(map[id.AssetID]id.ListingID),
	}
}

// Create persists a new listing. One live listing per item: a second listing
// of the same item is a conflict.
func (s *InMemory) Create(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; ok {
		return sentinel.ErrConflict
	}
	if existing, ok := s.byItem[l.ItemRef]; ok {
		if cur, found := s.listings[existing]; found && cur.State != models.ListingStateSettled {
			return sentinel.ErrConflict
		}
	}
	s.listings[l.ID] = *l
	s.byItem[l.ItemRef] = l.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := l
	return &copied, nil
}

// FindByItem resolves the listing addressable from an item identifier, so
// callers never need a separate index.
func (s *InMemory) FindByItem(_ context.Context, item id.AssetID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listingID, ok := s.byItem[item]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	l := s.listings[listingID]
	copied := l
	return &copied, nil
}

// Update persists a mutated aggregate. The caller must hold the listing's
// transaction lock so the read-validate-mutate sequence commits atomically.
func (s *InMemory) Update(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.listings[l.ID] = *l
	return nil
}

// List returns all listings, newest first not guaranteed; callers sort.
func (s *InMemory) List(_ context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		copied := l
		out = append(out, &copied)
	}
	return out, nil
}
