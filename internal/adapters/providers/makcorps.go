package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"umrah_prices/internal/domain"
)

// MakCorps aggregates OTA price comparisons per hotel. It reports one row
// per (hotel, vendor); we keep the cheapest vendor quote per hotel.
type MakCorps struct {
	base string
	c    *httpClient
}

func NewMakCorps(cfg Config) *MakCorps {
	return &MakCorps{
		base: cfg.BaseURL,
		c: newHTTPClient(cfg, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
	}
}

func (m *MakCorps) Name() string { return "makcorps" }

func (m *MakCorps) FetchOffers(ctx context.Context, q domain.ProviderQuery) ([]domain.RawOffer, error) {
	u := fmt.Sprintf("%s/city?name=%s&checkin=%s&checkout=%s&adults=%d&rooms=1",
		m.base,
		url.QueryEscape(cityParam(q.City)),
		q.CheckIn.Format("2006-01-02"),
		q.CheckOut.Format("2006-01-02"),
		q.Adults,
	)

	var rows []map[string]any
	if err := m.c.getJSON(ctx, u, &rows); err != nil {
		return nil, err
	}

	// cheapest quote per provider-side hotel id
	best := make(map[string]domain.RawOffer, len(rows))
	for _, h := range rows {
		name := lookupStr(h, "hotelName", "hotel_name", "name")
		if name == "" {
			continue
		}
		price := lookupFloat(h, "price1", "price", "lowest_price")
		if price == nil || *price <= 0 {
			continue
		}

		pid := lookupStr(h, "hotelId", "hotel_id", "id")
		if pid == "" {
			pid = syntheticID("makcorps", name)
		}

		raw, _ := json.Marshal(h)
		ro := domain.RawOffer{
			Provider:        "makcorps",
			ProviderHotelID: pid,
			HotelName:       name,
			Lat:             lookupFloat(h, "geocode.latitude", "lat"),
			Lon:             lookupFloat(h, "geocode.longitude", "lon", "lng"),
			Stars:           lookupInt(h, "stars", "hotel_class"),
			Currency:        "SAR",
			Total:           *price * float64(nights(q)),
			PerNight:        price,
			Taxes:           lookupFloat(h, "tax1", "taxes"),
			Status:          parseAvailability(lookupStr(h, "availability"), nil),
			RawPayload:      raw,
			SchemaVersion:   1,
		}
		fetchedQuery(&ro, q)

		if prev, ok := best[pid]; !ok || ro.Total < prev.Total {
			best[pid] = ro
		}
	}

	out := make([]domain.RawOffer, 0, len(best))
	for _, ro := range best {
		out = append(out, ro)
	}
	return out, nil
}
