package registry

import (
	"context"
	"sync"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
)

// InMemory holds marketplace registry records keyed by deployment address.
// Suitable for tests and single-node runs.
type InMemory struct {
	mu         sync.RWMutex
	registries map[id.AccountID]models.Registry
}

func NewInMemory() *InMemory {
	return &InMemory{registries: make(map[id.AccountID]models.Registry)}
}

// Create stores the registry record. Returns sentinel.ErrConflict when the
// marketplace is already initialized.
func (s *InMemory) Create(_ context.Context, r *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registries[r.Marketplace]; ok {
		return sentinel.ErrConflict
	}
	s.registries[r.Marketplace] = *r
	return nil
}

func (s *InMemory) Get(_ context.Context, marketplace id.AccountID) (*models.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.registries[marketplace]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemory) Update(_ context.Context, r *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registries[r.Marketplace]; !ok {
		return sentinel.ErrNotFound
	}
	s.registries[r.Marketplace] = *r
	return nil
}
