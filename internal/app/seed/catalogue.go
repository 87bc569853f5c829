package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
)

//go:embed cities.json
var catalogueJSON []byte

// Regions in the order the seeder walks them.
var Regions = []string{"North", "Northeast", "East", "Central", "South", "Southwest", "Northwest"}

// Entry is one city of the embedded catalogue.
type Entry struct {
	Name        string  `json:"name"`
	Province    string  `json:"province"`
	Region      string  `json:"-"`
	Capital     bool    `json:"capital"`
	Tourist     bool    `json:"tourist"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description,omitempty"`
}

// FallbackDescription is used when neither the catalogue nor the generator
// has anything better to say about a city.
func (e Entry) FallbackDescription() string {
	kind := "a well-known city"
	if e.Capital {
		kind = "the provincial capital"
	}
	return fmt.Sprintf("%s is %s of %s, in the %s region.", e.Name, kind, e.Province, e.Region)
}

// Catalogue returns the embedded city list, deduplicated by name.
func Catalogue() ([]Entry, error) {
	return parseCatalogue(catalogueJSON)
}

func parseCatalogue(data []byte) ([]Entry, error) {
	var byRegion map[string][]Entry
	if err := json.Unmarshal(data, &byRegion); err != nil {
		return nil, fmt.Errorf("failed to decode city catalogue: %w", err)
	}

	var extra []string
	for r := range byRegion {
		if !slices.Contains(Regions, r) {
			extra = append(extra, r)
		}
	}
	slices.Sort(extra)
	regions := append(slices.Clone(Regions), extra...)

	seen := make(map[string]bool)
	var entries []Entry
	for _, region := range regions {
		for _, e := range byRegion[region] {
			if seen[e.Name] {
				continue
			}
			seen[e.Name] = true
			e.Region = region
			entries = append(entries, e)
		}
	}
	return entries, nil
}
