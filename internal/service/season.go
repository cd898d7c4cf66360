package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

// SeasonCatalog resolves calendar dates to the recurring season in effect at
// a property.
type SeasonCatalog struct {
	catalog repository.CatalogRepository
}

func NewSeasonCatalog(catalog repository.CatalogRepository) *SeasonCatalog {
	return &SeasonCatalog{catalog: catalog}
}

// Resolve returns the season covering date, falling back to the property's
// default season. A property without a default season is misconfigured; that
// error is for operators, not guests.
func (s *SeasonCatalog) Resolve(ctx context.Context, property model.Property, date time.Time) (model.Season, error) {
	seasons, err := s.catalog.SeasonsByProperty(ctx, property)
	if err != nil {
		return model.Season{}, err
	}
	season, ok := model.ResolveSeason(seasons, date)
	if !ok {
		return model.Season{}, fmt.Errorf("property %s: %w", property, model.ErrNoDefaultSeason)
	}
	return season, nil
}
