package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"umrah_prices/internal/domain"
)

// Amadeus is the expensive, authoritative source: confirmed availability
// and room/board attributes. Crawled on a slow cadence.
type Amadeus struct {
	base string
	c    *httpClient
}

func NewAmadeus(cfg Config) *Amadeus {
	return &Amadeus{
		base: cfg.BaseURL,
		c: newHTTPClient(cfg, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
	}
}

func (a *Amadeus) Name() string { return "amadeus" }

func (a *Amadeus) FetchOffers(ctx context.Context, q domain.ProviderQuery) ([]domain.RawOffer, error) {
	u := fmt.Sprintf("%s/v3/shopping/hotel-offers?cityCode=%s&checkInDate=%s&checkOutDate=%s&adults=%d",
		a.base,
		amadeusCityCode(q.City),
		q.CheckIn.Format("2006-01-02"),
		q.CheckOut.Format("2006-01-02"),
		q.Adults,
	)

	var body struct {
		Data []map[string]any `json:"data"`
	}
	if err := a.c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	out := make([]domain.RawOffer, 0, len(body.Data))
	for _, d := range body.Data {
		hotel, _ := lookupAny(d, "hotel").(map[string]any)
		if hotel == nil {
			continue
		}
		name := lookupStr(hotel, "name")
		if name == "" {
			continue
		}

		offers, _ := lookupAny(d, "offers").([]any)
		if len(offers) == 0 {
			continue
		}
		offer, _ := offers[0].(map[string]any)
		if offer == nil {
			continue
		}
		total := lookupFloat(offer, "price.total")
		if total == nil || *total <= 0 {
			continue
		}
		totalSAR := toSAR(*total, lookupStr(offer, "price.currency"))

		pid := lookupStr(hotel, "hotelId", "hotel_id")
		if pid == "" {
			pid = syntheticID("amadeus", name)
		}

		var roomType, board *string
		if rt := lookupStr(offer, "room.typeEstimated.category", "room.type"); rt != "" {
			roomType = &rt
		}
		if bt := lookupStr(offer, "boardType"); bt != "" {
			board = &bt
		}

		available := true
		if v, ok := lookupAny(d, "available").(bool); ok {
			available = v
		}
		status := domain.Available
		if !available {
			status = domain.SoldOut
		}

		raw, _ := json.Marshal(d)
		ro := domain.RawOffer{
			Provider:        "amadeus",
			ProviderHotelID: pid,
			HotelName:       name,
			Lat:             lookupFloat(hotel, "latitude", "geoCode.latitude"),
			Lon:             lookupFloat(hotel, "longitude", "geoCode.longitude"),
			Stars:           lookupInt(hotel, "rating"),
			RoomType:        roomType,
			BoardType:       board,
			Currency:        "SAR",
			Total:           totalSAR,
			PerNight:        perNight(totalSAR, q),
			Taxes:           lookupFloat(offer, "price.taxes"),
			Status:          status,
			RawPayload:      raw,
			SchemaVersion:   1,
		}
		fetchedQuery(&ro, q)
		out = append(out, ro)
	}
	return out, nil
}

func amadeusCityCode(city string) string {
	if domain.NormalizeCity(city) == domain.CityMadinah {
		return "MED"
	}
	return "QCA" // Makkah has no airport code; Amadeus uses QCA for the city
}

// toSAR converts the few currencies Amadeus quotes in. Pinned rates match
// the upstream aggregation behavior; FX refresh is out of scope here.
func toSAR(total float64, currency string) float64 {
	switch currency {
	case "USD":
		return total * 3.75
	case "EUR":
		return total * 4.10
	default:
		return total
	}
}
