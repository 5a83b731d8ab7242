package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"umrah_prices/internal/domain"
)

// Xotelo serves TripAdvisor-sourced hotel rates through RapidAPI.
// Fast-moving source: short cache TTL, frequent refresh.
type Xotelo struct {
	base string
	c    *httpClient
}

func NewXotelo(cfg Config) *Xotelo {
	return &Xotelo{
		base: cfg.BaseURL,
		c: newHTTPClient(cfg, map[string]string{
			"X-RapidAPI-Key":  cfg.APIKey,
			"X-RapidAPI-Host": "xotelo-hotel-prices.p.rapidapi.com",
		}),
	}
}

func (x *Xotelo) Name() string { return "xotelo" }

func (x *Xotelo) FetchOffers(ctx context.Context, q domain.ProviderQuery) ([]domain.RawOffer, error) {
	u := fmt.Sprintf("%s/search?city=%s&chk_in=%s&chk_out=%s&adults=%d",
		x.base,
		url.QueryEscape(cityParam(q.City)),
		q.CheckIn.Format("2006-01-02"),
		q.CheckOut.Format("2006-01-02"),
		q.Adults,
	)

	var body struct {
		Hotels []map[string]any `json:"hotels"`
	}
	if err := x.c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	out := make([]domain.RawOffer, 0, len(body.Hotels))
	for _, h := range body.Hotels {
		name := lookupStr(h, "name", "hotel_name")
		if name == "" {
			continue
		}
		price := lookupFloat(h, "min_price", "price", "rate")
		if price == nil || *price <= 0 {
			continue
		}

		pid := lookupStr(h, "key", "hotel_key", "id")
		if pid == "" {
			pid = syntheticID("xotelo", name)
		}

		roomsLeft := lookupInt(h, "rooms_left", "available_rooms")
		raw, _ := json.Marshal(h)

		ro := domain.RawOffer{
			Provider:        "xotelo",
			ProviderHotelID: pid,
			HotelName:       name,
			Lat:             lookupFloat(h, "latitude", "lat", "geo.latitude"),
			Lon:             lookupFloat(h, "longitude", "lng", "lon", "geo.longitude"),
			Stars:           lookupInt(h, "stars", "star_rating", "rating.stars"),
			Amenities:       lookupStrings(h, "amenities", "facilities"),
			Currency:        "SAR",
			Total:           *price * float64(nights(q)),
			PerNight:        price,
			RoomsLeft:       roomsLeft,
			Status:          parseAvailability(lookupStr(h, "availability", "status"), roomsLeft),
			RawPayload:      raw,
			SchemaVersion:   1,
		}
		fetchedQuery(&ro, q)
		out = append(out, ro)
	}
	return out, nil
}
