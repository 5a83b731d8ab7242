package providers

import (
	"strings"

	"umrah_prices/internal/domain"
)

// cityParam maps canonical city codes to the spelling most OTAs use.
func cityParam(city string) string {
	switch domain.NormalizeCity(city) {
	case domain.CityMadinah:
		return "Medina"
	default:
		return "Mecca"
	}
}

func parseAvailability(s string, roomsLeft *int) domain.AvailabilityStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "in_stock", "yes", "true":
		return domain.Available
	case "limited", "few_left", "low":
		return domain.Limited
	case "last_rooms", "last room", "last_room":
		return domain.LastRooms
	case "sold_out", "soldout", "unavailable", "no":
		return domain.SoldOut
	}
	if roomsLeft != nil {
		switch {
		case *roomsLeft <= 0:
			return domain.SoldOut
		case *roomsLeft <= 2:
			return domain.LastRooms
		case *roomsLeft <= 5:
			return domain.Limited
		default:
			return domain.Available
		}
	}
	return domain.UnknownAv
}

func nights(q domain.ProviderQuery) int {
	n := int(q.CheckOut.Sub(q.CheckIn).Hours() / 24)
	if n < 1 {
		n = 1
	}
	return n
}

func perNight(total float64, q domain.ProviderQuery) *float64 {
	pn := total / float64(nights(q))
	return &pn
}

func fetchedQuery(raw *domain.RawOffer, q domain.ProviderQuery) {
	raw.City = domain.NormalizeCity(q.City)
	raw.CheckIn = q.CheckIn
	raw.CheckOut = q.CheckOut
	raw.Adults = q.Adults
	raw.Children = q.Children
}
