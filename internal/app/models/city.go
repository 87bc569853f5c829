package models

import "time"

type City struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Province           string    `json:"province"`
	Region             string    `json:"region"`
	Description        string    `json:"description"`
	CurrentTemperature float64   `json:"current_temperature"`
	BestSeason         string    `json:"best_season"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	CreatedAt          time.Time `json:"created_at"`
	IsFavorite         bool      `json:"is_favorite"`
}

// CityDetail is the single city page: media, POIs and recommendations.
type CityDetail struct {
	City
	Images            []string `json:"images"`
	Videos            []string `json:"videos"`
	POIs              []POI    `json:"pois"`
	RecommendedCities []City   `json:"recommended_cities"`
}

// CityMarker is the map projection of a city.
type CityMarker struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Province   string  `json:"province"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	IsFavorite bool    `json:"is_favorite"`
}

type CityFilter struct {
	Region string
	Skip   int
	Limit  int
}

// NewCity is a catalogue entry written by the seeder.
type NewCity struct {
	Name               string   `json:"name"`
	Province           string   `json:"province"`
	Region             string   `json:"region"`
	Description        string   `json:"description"`
	CurrentTemperature float64  `json:"current_temperature"`
	BestSeason         string   `json:"best_season"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Images             []string `json:"images,omitempty"`
}
