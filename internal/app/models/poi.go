package models

import "fmt"

type POIType string

const (
	POITypeAttraction    POIType = "attraction"
	POITypeRestaurant    POIType = "restaurant"
	POITypeAccommodation POIType = "accommodation"
	POITypeEvent         POIType = "event"
)

// ParsePOIType validates a poi_type query value. The empty string means no
// filter.
func ParsePOIType(s string) (POIType, error) {
	switch t := POIType(s); t {
	case "", POITypeAttraction, POITypeRestaurant, POITypeAccommodation, POITypeEvent:
		return t, nil
	default:
		return "", fmt.Errorf("unknown poi type %q: %w", s, ErrValidation)
	}
}

type POI struct {
	ID          int64   `json:"id"`
	CityID      int64   `json:"city_id"`
	Name        string  `json:"name"`
	POIType     POIType `json:"poi_type"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	IsFavorite  bool    `json:"is_favorite"`
}

type POIDetail struct {
	POI
	Images []string `json:"images"`
	Tags   []string `json:"tags"`
}
