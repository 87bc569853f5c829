package utils

import (
	"fmt"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

// ValidateCoordinates reports whether lat/lng fall inside the WGS84 ranges.
func ValidateCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HasValidCoordinates is ValidateCoordinates that also treats 0,0 as missing.
func HasValidCoordinates(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	return ValidateCoordinates(lat, lng)
}

// CheckCity returns a validation error for catalogue entries that cannot be
// placed on the map.
func CheckCity(c models.NewCity) error {
	if c.Name == "" {
		return fmt.Errorf("city name is empty: %w", models.ErrValidation)
	}
	if !HasValidCoordinates(c.Latitude, c.Longitude) {
		return fmt.Errorf("city %s has invalid coordinates (%f, %f): %w", c.Name, c.Latitude, c.Longitude, models.ErrValidation)
	}
	return nil
}
