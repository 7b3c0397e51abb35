package database

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

// ShadeCatalogAdapter reads the composite shade catalog
type ShadeCatalogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewShadeCatalogAdapter creates a new shade catalog adapter
func NewShadeCatalogAdapter(client *postgres.Client) repositories.ShadeCatalogRepository {
	return &ShadeCatalogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListByProductLine matches the product line case-insensitively
func (a *ShadeCatalogAdapter) ListByProductLine(ctx context.Context, productLine string) ([]entities.ShadeEntry, error) {
	query, args, err := a.db.Select("manufacturer", "product_line", "shade", "type").
		From("resin_shade_catalog").
		Prepared(true).
		Where(goqu.Func("LOWER", goqu.C("product_line")).Eq(strings.ToLower(strings.TrimSpace(productLine)))).
		Order(goqu.I("shade").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list shades", err)
	}
	defer rows.Close()

	shades := []entities.ShadeEntry{}
	for rows.Next() {
		var entry entities.ShadeEntry
		var shadeType string
		if err := rows.Scan(&entry.Manufacturer, &entry.ProductLine, &entry.Shade, &shadeType); err != nil {
			return nil, apperrors.NewInternalError("failed to scan shade", err)
		}
		entry.Type = entities.ShadeType(shadeType)
		shades = append(shades, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate shades", err)
	}
	return shades, nil
}
