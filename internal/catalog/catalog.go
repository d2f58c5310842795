// Package catalog serves the title list shown to signed-in users.
package catalog

import (
	"context"
	"fmt"
	"log"
	"strings"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"
)

// DefaultItems is inserted by Seed into an empty catalog.
var DefaultItems = []model.CatalogItem{
	{Title: "Inception", Genre: "Sci-Fi", Year: 2010, ThumbnailURL: "https://via.placeholder.com/300x450/0a0a0a/ffffff?text=INCEPTION", Rating: 8.8},
	{Title: "The Shawshank Redemption", Genre: "Drama", Year: 1994, ThumbnailURL: "https://via.placeholder.com/300x450/1e3a8a/ffffff?text=SHAWSHANK", Rating: 9.3},
	{Title: "The Dark Knight", Genre: "Action", Year: 2008, ThumbnailURL: "https://via.placeholder.com/300x450/000000/ffffff?text=DARK+KNIGHT", Rating: 9.0},
	{Title: "Pulp Fiction", Genre: "Crime", Year: 1994, ThumbnailURL: "https://via.placeholder.com/300x450/8b0000/ffffff?text=PULP+FICTION", Rating: 8.9},
	{Title: "Interstellar", Genre: "Sci-Fi", Year: 2014, ThumbnailURL: "https://via.placeholder.com/300x450/2c3e50/ffffff?text=INTERSTELLAR", Rating: 8.6},
	{Title: "Avatar", Genre: "Sci-Fi", Year: 2009, ThumbnailURL: "https://via.placeholder.com/300x450/0066cc/ffffff?text=AVATAR", Rating: 7.8},
	{Title: "Titanic", Genre: "Romance", Year: 1997, ThumbnailURL: "https://via.placeholder.com/300x450/006666/ffffff?text=TITANIC", Rating: 7.9},
	{Title: "The Godfather", Genre: "Crime", Year: 1972, ThumbnailURL: "https://via.placeholder.com/300x450/800000/ffffff?text=GODFATHER", Rating: 9.2},
}

type Service struct {
	items store.Catalog
}

func NewService(items store.Catalog) *Service {
	return &Service{items: items}
}

// Seed inserts items when the catalog is empty and reports how many were
// added.
func (s *Service) Seed(ctx context.Context, items []model.CatalogItem) (int, error) {
	n, err := s.items.CountCatalogItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	if n > 0 {
		log.Printf("[catalog] found %d items, skipping seed", n)
		return 0, nil
	}
	if err := s.items.AddCatalogItems(ctx, items); err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}
	log.Printf("[catalog] inserted %d sample items", len(items))
	return len(items), nil
}

// Search lists every item for an empty or blank term, otherwise the items
// whose title contains term, ignoring case.
func (s *Service) Search(ctx context.Context, term string) ([]model.CatalogItem, error) {
	term = strings.TrimSpace(term)
	items, err := s.items.SearchCatalog(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return items, nil
}
