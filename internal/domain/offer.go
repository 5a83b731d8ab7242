package domain

import "time"

type AvailabilityStatus string

const (
	Available AvailabilityStatus = "available"
	Limited   AvailabilityStatus = "limited"
	LastRooms AvailabilityStatus = "last_rooms"
	SoldOut   AvailabilityStatus = "sold_out"
	UnknownAv AvailabilityStatus = "unknown"
)

// RawOffer is what a provider adapter hands to the resolver: the provider's
// own view of a hotel plus one price/availability observation.
type RawOffer struct {
	Provider        string
	ProviderHotelID string
	HotelName       string
	City            string
	Lat, Lon        *float64
	Stars           *int
	Amenities       []string
	DistToHaramM    *int

	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
	Children int

	RoomType  *string
	BoardType *string
	Currency  string
	Total     float64
	PerNight  *float64
	Taxes     *float64
	RoomsLeft *int
	Status    AvailabilityStatus

	RawPayload    []byte
	SchemaVersion int
}

// Offer is one immutable observation. Rows are append-only; a repeat fetch
// produces a new row even when nothing changed.
type Offer struct {
	ID       int64
	HotelID  int64
	Provider string
	City     string

	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
	Children int

	RoomType  *string
	BoardType *string
	Currency  string
	Total     float64
	PerNight  *float64
	Taxes     *float64
	TotalIDR  *float64
	RoomsLeft *int
	Status    AvailabilityStatus

	FetchedAt     time.Time
	RawPayload    []byte
	SchemaVersion int
}

// PriceHistoryPoint summarizes price movement between consecutive offers
// for the same (hotel, provider, check-in) key. ChangePercent is nil for
// the first observation of a key.
type PriceHistoryPoint struct {
	ID            int64
	HotelID       int64
	Provider      string
	CheckIn       time.Time
	Price         float64
	Status        AvailabilityStatus
	RecordedAt    time.Time
	ChangePercent *float64
}

// TransportOption is one schedule entry between the two cities, refreshed
// by the same crawl machinery as hotel prices.
type TransportOption struct {
	ID          int64
	Operator    string
	Mode        string // TRAIN | BUS
	FromCity    string
	ToCity      string
	Depart      string // HH:MM local
	Arrive      string
	DurationMin int
	Price       *float64
	Class       *string
	Available   bool
	FetchedAt   time.Time
}
