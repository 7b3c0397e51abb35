package repositories

import (
	"context"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// ShadeCatalogRepository is the read-only composite shade catalog
type ShadeCatalogRepository interface {
	// ListByProductLine returns every shade of a product line, or an empty slice when unknown.
	ListByProductLine(ctx context.Context, productLine string) ([]entities.ShadeEntry, error)
}
