package seed

import "slices"

var (
	winterSouth = []string{"Sanya", "Haikou", "Xishuangbanna"}
	winterNorth = []string{"Harbin", "Changchun"}
)

// BestSeason picks the recommended travel season from the region, with a few
// winter destinations called out by name.
func BestSeason(name, region string) string {
	switch region {
	case "South", "Southwest":
		if slices.Contains(winterSouth, name) {
			return "Winter"
		}
	case "North", "Northeast":
		if slices.Contains(winterNorth, name) {
			return "Winter"
		}
		return "Spring and summer"
	}
	return "Spring and autumn"
}
