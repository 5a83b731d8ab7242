package domain

import (
	"strings"
	"time"
)

const (
	CityMakkah  = "MAKKAH"
	CityMadinah = "MADINAH"
)

// NormalizeCity folds the spellings providers use (including Arabic)
// into the two canonical city codes. Unknown cities pass through upper-cased.
func NormalizeCity(city string) string {
	switch strings.ToLower(strings.TrimSpace(city)) {
	case "makkah", "mecca", "makka", "mekka", "مكة", "مكه":
		return CityMakkah
	case "madinah", "medina", "madina", "المدينة", "المنورة":
		return CityMadinah
	}
	return strings.ToUpper(strings.TrimSpace(city))
}

type Coords struct{ Lat, Lon float64 }

// CanonicalHotel is the single deduplicated identity of one physical
// property across all providers. (City, NormalizedName) is unique.
type CanonicalHotel struct {
	ID               int64
	Name             string
	NormalizedName   string
	City             string
	Coords           *Coords
	Stars            *int
	Amenities        []string
	DistanceToHaramM *int
	WalkingTimeMin   *int
	UpdatedAt        time.Time
}

// ProviderMapping links a provider-side hotel id to a canonical hotel.
// Primary key is (Provider, ProviderHotelID); Confidence is 0-100.
type ProviderMapping struct {
	Provider        string
	ProviderHotelID string
	HotelID         int64
	Confidence      int
	NeedsReview     bool
	Disagreements   int
	LastSeen        time.Time
}
