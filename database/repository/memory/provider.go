package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bloomdispatch/database"
	providerRepo "bloomdispatch/database/repository/provider"
	"bloomdispatch/models"
)

// ProviderRepo is a read-only provider directory.
type ProviderRepo struct {
	mu        sync.RWMutex
	providers map[string]models.Provider
}

var _ providerRepo.ProviderRepository = (*ProviderRepo)(nil)

func NewProviderRepo(providers ...models.Provider) *ProviderRepo {
	r := &ProviderRepo{providers: make(map[string]models.Provider)}
	for _, p := range providers {
		r.providers[p.ID] = p
	}
	return r
}

func (r *ProviderRepo) GetByID(_ context.Context, id string) (*models.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", id, database.ErrNotFound)
	}
	return &p, nil
}

func (r *ProviderRepo) FindActiveByService(_ context.Context, serviceTypeID, excludeID string) ([]models.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Provider
	for _, p := range r.providers {
		if p.ID == excludeID || !p.Active || !p.Offers(serviceTypeID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
