package providers

import (
	"context"
	"encoding/json"

	"umrah_prices/internal/domain"
)

// Demo is the local fallback dataset: last in the fan-out order, always
// reachable, long cache TTL. Prices drift deterministically with the
// check-in date so trend computation has something to chew on in dev.
type Demo struct{}

func NewDemo() *Demo { return &Demo{} }

func (d *Demo) Name() string { return "demo" }

type demoHotel struct {
	id       string
	name     string
	city     string
	lat, lon float64
	stars    int
	base     float64 // SAR per night
	distM    int
}

var demoHotels = []demoHotel{
	{"demo-mk-1", "Hilton Makkah Convention", domain.CityMakkah, 21.4230, 39.8260, 5, 950, 450},
	{"demo-mk-2", "Swissotel Al Maqam", domain.CityMakkah, 21.4187, 39.8247, 5, 880, 150},
	{"demo-mk-3", "Al Kiswah Towers", domain.CityMakkah, 21.4086, 39.8151, 3, 260, 1800},
	{"demo-md-1", "Pullman Zamzam Madinah", domain.CityMadinah, 24.4686, 39.6101, 5, 720, 120},
	{"demo-md-2", "Al Aqeeq Madinah", domain.CityMadinah, 24.4702, 39.6135, 4, 410, 350},
}

func (d *Demo) FetchOffers(ctx context.Context, q domain.ProviderQuery) ([]domain.RawOffer, error) {
	city := domain.NormalizeCity(q.City)
	day := q.CheckIn.YearDay()

	var out []domain.RawOffer
	for _, h := range demoHotels {
		if h.city != city {
			continue
		}
		// ±10% seasonal wobble keyed on day-of-year
		pn := h.base * (0.9 + 0.2*float64(day%10)/10)
		total := pn * float64(nights(q))

		lat, lon, stars, dist := h.lat, h.lon, h.stars, h.distM
		raw, _ := json.Marshal(map[string]any{
			"id": h.id, "name": h.name, "base": h.base, "per_night": pn,
		})

		ro := domain.RawOffer{
			Provider:        "demo",
			ProviderHotelID: h.id,
			HotelName:       h.name,
			Lat:             &lat,
			Lon:             &lon,
			Stars:           &stars,
			DistToHaramM:    &dist,
			Currency:        "SAR",
			Total:           total,
			PerNight:        &pn,
			Status:          domain.Available,
			RawPayload:      raw,
			SchemaVersion:   1,
		}
		fetchedQuery(&ro, q)
		out = append(out, ro)
	}
	return out, nil
}
