package httpserver

import (
	"time"

	"umrah_prices/internal/domain"
)

// Wire DTOs. Kept separate from the domain structs so the JSON surface can
// evolve without touching storage.

type hotelView struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	City             string   `json:"city"`
	Lat              *float64 `json:"lat,omitempty"`
	Lon              *float64 `json:"lon,omitempty"`
	Stars            *int     `json:"stars,omitempty"`
	Amenities        []string `json:"amenities,omitempty"`
	DistanceToHaramM *int     `json:"distance_to_haram_m,omitempty"`
	WalkingTimeMin   *int     `json:"walking_time_min,omitempty"`
}

func toHotelView(h domain.CanonicalHotel) hotelView {
	v := hotelView{
		ID:               h.ID,
		Name:             h.Name,
		City:             h.City,
		Stars:            h.Stars,
		Amenities:        h.Amenities,
		DistanceToHaramM: h.DistanceToHaramM,
		WalkingTimeMin:   h.WalkingTimeMin,
	}
	if h.Coords != nil {
		lat, lon := h.Coords.Lat, h.Coords.Lon
		v.Lat, v.Lon = &lat, &lon
	}
	return v
}

type offerView struct {
	Provider  string   `json:"provider"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
	Adults    int      `json:"adults"`
	Children  int      `json:"children,omitempty"`
	RoomType  *string  `json:"room_type,omitempty"`
	BoardType *string  `json:"board_type,omitempty"`
	Currency  string   `json:"currency"`
	Total     float64  `json:"total"`
	PerNight  *float64 `json:"per_night,omitempty"`
	Taxes     *float64 `json:"taxes,omitempty"`
	TotalIDR  *float64 `json:"total_idr,omitempty"`
	RoomsLeft *int     `json:"rooms_left,omitempty"`
	Status    string   `json:"status"`
	FetchedAt string   `json:"fetched_at"`
}

func toOfferView(o domain.Offer) offerView {
	return offerView{
		Provider:  o.Provider,
		CheckIn:   o.CheckIn.Format("2006-01-02"),
		CheckOut:  o.CheckOut.Format("2006-01-02"),
		Adults:    o.Adults,
		Children:  o.Children,
		RoomType:  o.RoomType,
		BoardType: o.BoardType,
		Currency:  o.Currency,
		Total:     o.Total,
		PerNight:  o.PerNight,
		Taxes:     o.Taxes,
		TotalIDR:  o.TotalIDR,
		RoomsLeft: o.RoomsLeft,
		Status:    string(o.Status),
		FetchedAt: o.FetchedAt.UTC().Format(time.RFC3339),
	}
}

type searchRowView struct {
	Hotel     hotelView   `json:"hotel"`
	Offers    []offerView `json:"offers"`
	MinPrice  float64     `json:"min_price"`
	Currency  string      `json:"currency"`
	FetchedAt string      `json:"fetched_at"`
}

func toSearchView(rows []domain.HotelBestPrice) []searchRowView {
	out := make([]searchRowView, 0, len(rows))
	for _, r := range rows {
		rv := searchRowView{
			Hotel:     toHotelView(r.Hotel),
			MinPrice:  r.MinPrice,
			Currency:  r.Currency,
			FetchedAt: r.FetchedAt.UTC().Format(time.RFC3339),
		}
		for _, o := range r.Offers {
			rv.Offers = append(rv.Offers, toOfferView(o))
		}
		out = append(out, rv)
	}
	return out
}

type historyPointView struct {
	Provider      string   `json:"provider"`
	CheckIn       string   `json:"check_in"`
	Price         float64  `json:"price"`
	Status        string   `json:"status"`
	RecordedAt    string   `json:"recorded_at"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

func toHistoryView(points []domain.PriceHistoryPoint) []historyPointView {
	out := make([]historyPointView, 0, len(points))
	for _, p := range points {
		out = append(out, historyPointView{
			Provider:      p.Provider,
			CheckIn:       p.CheckIn.Format("2006-01-02"),
			Price:         p.Price,
			Status:        string(p.Status),
			RecordedAt:    p.RecordedAt.UTC().Format(time.RFC3339),
			ChangePercent: p.ChangePercent,
		})
	}
	return out
}

type calendarDayView struct {
	Date     string   `json:"date"`
	MinPrice *float64 `json:"min_price"`
	Status   string   `json:"status"`
}

func toCalendarView(days []domain.CalendarDay) []calendarDayView {
	out := make([]calendarDayView, 0, len(days))
	for _, d := range days {
		out = append(out, calendarDayView{
			Date:     d.Date.Format("2006-01-02"),
			MinPrice: d.MinPrice,
			Status:   string(d.Status),
		})
	}
	return out
}

type riskView struct {
	HotelID        int64    `json:"hotel_id"`
	City           string   `json:"city"`
	CheckIn        string   `json:"check_in"`
	Score          int      `json:"score"`
	Level          string   `json:"level"`
	Reasons        []string `json:"reasons"`
	Recommendation string   `json:"recommendation"`
	ComputedAt     string   `json:"computed_at"`
}

func toRiskView(r domain.RiskScore) riskView {
	return riskView{
		HotelID:        r.HotelID,
		City:           r.City,
		CheckIn:        r.CheckIn.Format("2006-01-02"),
		Score:          r.Score,
		Level:          string(r.Level),
		Reasons:        r.Reasons,
		Recommendation: r.Recommendation,
		ComputedAt:     r.ComputedAt.UTC().Format(time.RFC3339),
	}
}

type transportView struct {
	Operator    string   `json:"operator"`
	Mode        string   `json:"mode"`
	FromCity    string   `json:"from_city"`
	ToCity      string   `json:"to_city"`
	Depart      string   `json:"depart"`
	Arrive      string   `json:"arrive"`
	DurationMin int      `json:"duration_min"`
	Price       *float64 `json:"price,omitempty"`
	Class       *string  `json:"class,omitempty"`
	Available   bool     `json:"available"`
}

func toTransportView(rows []domain.TransportOption) []transportView {
	out := make([]transportView, 0, len(rows))
	for _, r := range rows {
		out = append(out, transportView{
			Operator:    r.Operator,
			Mode:        r.Mode,
			FromCity:    r.FromCity,
			ToCity:      r.ToCity,
			Depart:      r.Depart,
			Arrive:      r.Arrive,
			DurationMin: r.DurationMin,
			Price:       r.Price,
			Class:       r.Class,
			Available:   r.Available,
		})
	}
	return out
}

type jobView struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	RunAt     string  `json:"run_at"`
	Attempts  int     `json:"attempts"`
	LastError *string `json:"last_error,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toJobView(j domain.CrawlJob) jobView {
	return jobView{
		ID:        j.ID,
		Type:      j.Type,
		Status:    string(j.Status),
		RunAt:     j.RunAt.UTC().Format(time.RFC3339),
		Attempts:  j.Attempts,
		LastError: j.LastError,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type providerHealthView struct {
	Provider     string  `json:"provider"`
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	LastCall     *string `json:"last_call,omitempty"`
}

func toHealthView(rows []domain.ProviderHealth) []providerHealthView {
	out := make([]providerHealthView, 0, len(rows))
	for _, h := range rows {
		v := providerHealthView{
			Provider:     h.Provider,
			Calls:        h.Calls,
			Failures:     h.Failures,
			SuccessRate:  h.SuccessRate,
			AvgLatencyMS: h.AvgLatencyMS,
		}
		if h.LastCall != nil {
			s := h.LastCall.UTC().Format(time.RFC3339)
			v.LastCall = &s
		}
		out = append(out, v)
	}
	return out
}
