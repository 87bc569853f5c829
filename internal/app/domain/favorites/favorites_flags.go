package favorites

import (
	"context"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

// Lookup answers batch is_favorite questions. Repository satisfies it.
type Lookup interface {
	FavoriteSet(ctx context.Context, owner models.Owner, itemType models.ItemType, itemIDs []int64) (map[int64]bool, error)
}

// MarkFavorites sets the favorite flag on every item the identity has
// favorited. Anonymous identities leave all flags false.
func MarkFavorites[T any](ctx context.Context, lookup Lookup, identity models.Identity, itemType models.ItemType, items []T, id func(*T) int64, mark func(*T)) error {
	owner, ok := identity.Owner()
	if !ok || len(items) == 0 {
		return nil
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = id(&items[i])
	}
	set, err := lookup.FavoriteSet(ctx, owner, itemType, ids)
	if err != nil {
		return err
	}
	for i := range items {
		if set[id(&items[i])] {
			mark(&items[i])
		}
	}
	return nil
}

func CityID(c *models.City) int64         { return c.ID }
func MarkCity(c *models.City)             { c.IsFavorite = true }
func POIID(p *models.POI) int64           { return p.ID }
func MarkPOI(p *models.POI)               { p.IsFavorite = true }
func MarkerID(m *models.CityMarker) int64 { return m.ID }
func MarkMarker(m *models.CityMarker)     { m.IsFavorite = true }
