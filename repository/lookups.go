package repository

import (
	"context"
	"fmt"

	"ads-manager/models"

	"github.com/jmoiron/sqlx"
)

// LookupRepository reads the static reference tables
type LookupRepository struct {
	db *sqlx.DB
}

func NewLookupRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

func (r *LookupRepository) Cities(ctx context.Context) ([]models.Lookup, error) {
	return r.list(ctx, "SELECT id, city AS name FROM city ORDER BY city")
}

func (r *LookupRepository) Categories(ctx context.Context) ([]models.Lookup, error) {
	return r.list(ctx, "SELECT id, name FROM category ORDER BY name")
}

func (r *LookupRepository) Types(ctx context.Context) ([]models.Lookup, error) {
	return r.list(ctx, "SELECT id, type AS name FROM type ORDER BY type")
}

func (r *LookupRepository) Statuses(ctx context.Context) ([]models.Lookup, error) {
	return r.list(ctx, "SELECT id, status AS name FROM status ORDER BY status")
}

func (r *LookupRepository) list(ctx context.Context, query string) ([]models.Lookup, error) {
	items := []models.Lookup{}
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("query lookups: %w", err)
	}
	return items, nil
}
