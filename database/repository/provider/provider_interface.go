package providerRepo

import (
	"context"

	"bloomdispatch/models"
)

// ProviderRepository defines read access to providers. Providers are maintained
// by another system; nothing here writes them.
type ProviderRepository interface {
	// GetByID retrieves a provider by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Provider, error)
	// FindActiveByService returns active providers offering serviceTypeID, without excludeID.
	FindActiveByService(ctx context.Context, serviceTypeID, excludeID string) ([]models.Provider, error)
}
