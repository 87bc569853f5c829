package models

import (
	"time"

	"github.com/google/uuid"
)

type ItemType string

const (
	ItemTypeCity ItemType = "city"
	ItemTypePOI  ItemType = "poi"
)

// FavoriteRecord is one row of the favorites ledger.
type FavoriteRecord struct {
	ID        uuid.UUID `json:"id"`
	Owner     Owner     `json:"-"`
	ItemID    int64     `json:"item_id"`
	ItemType  ItemType  `json:"item_type"`
	CreatedAt time.Time `json:"created_at"`
}

// MergeResult counts what happened to a visitor's favorites at login.
type MergeResult struct {
	Moved   int64
	Dropped int64
}

type ToggleFavoriteResponse struct {
	IsFavorite bool   `json:"is_favorite"`
	VisitorID  string `json:"visitor_id,omitempty"`
}

// FavoriteCity is one card of the favorites page: a favorited city and the
// favorited POIs located in it.
type FavoriteCity struct {
	City
	POIs     []POI `json:"pois"`
	POICount int   `json:"poi_count"`
}
