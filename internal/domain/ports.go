package domain

import (
	"context"
	"time"
)

// HotelRepository is the canonical-identity store. Only the entity resolver
// writes through it; other components read.
type HotelRepository interface {
	GetMapping(ctx context.Context, provider, providerHotelID string) (ProviderMapping, error)
	// BindMapping inserts or supersedes the (provider, provider_hotel_id) row.
	BindMapping(ctx context.Context, m ProviderMapping) error
	TouchMapping(ctx context.Context, provider, providerHotelID string, confidence int, disagreements int, needsReview bool) error
	ConfirmMapping(ctx context.Context, provider, providerHotelID string) error

	GetHotel(ctx context.Context, id int64) (CanonicalHotel, error)
	GetHotelByName(ctx context.Context, city, normalizedName string) (CanonicalHotel, error)
	ListHotelsByCity(ctx context.Context, city string) ([]CanonicalHotel, error)
	// CreateHotel returns ErrConflict when (city, normalized_name) already
	// exists, so racing resolvers re-resolve against the committed row.
	CreateHotel(ctx context.Context, h CanonicalHotel) (int64, error)
	EnrichHotel(ctx context.Context, h CanonicalHotel) error
}

// OfferRepository owns the append-only observation log and its derived
// price history.
type OfferRepository interface {
	InsertOffer(ctx context.Context, o Offer) (int64, error)
	ListOffers(ctx context.Context, hotelID int64, limit int) ([]Offer, error)
	RecentOffers(ctx context.Context, hotelID int64, checkIn time.Time, limit int) ([]Offer, error)

	LatestHistoryPoint(ctx context.Context, hotelID int64, provider string, checkIn time.Time) (PriceHistoryPoint, error)
	InsertHistoryPoint(ctx context.Context, p PriceHistoryPoint) error
	ListHistory(ctx context.Context, hotelID int64, since time.Time) ([]PriceHistoryPoint, error)

	SearchBestOffers(ctx context.Context, q SearchQuery) ([]HotelBestPrice, error)
	Calendar(ctx context.Context, hotelID int64, from, to time.Time) ([]CalendarDay, error)
}

// JobRepository owns the durable crawl queue and its audit log.
type JobRepository interface {
	// Enqueue inserts the job unless a job with the same fingerprint is
	// still queued or running; reports whether a row was created.
	Enqueue(ctx context.Context, job CrawlJob) (bool, error)
	// DequeueReady atomically claims up to limit due jobs, marking them
	// running so concurrent workers cannot double-dispatch.
	DequeueReady(ctx context.Context, limit int) ([]CrawlJob, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
	// RequeueFailed resets a terminal-failed job for a manual operator retry.
	RequeueFailed(ctx context.Context, id string) error

	GetJob(ctx context.Context, id string) (CrawlJob, error)
	// GetJobByFingerprint returns the live (queued or running) job carrying
	// the fingerprint, so a deduplicated enqueue can report the real row.
	GetJobByFingerprint(ctx context.Context, fingerprint string) (CrawlJob, error)
	ListJobs(ctx context.Context, status JobStatus, limit int) ([]CrawlJob, error)

	AppendLog(ctx context.Context, l CrawlLog) error
	ProviderHealth(ctx context.Context, since time.Time) ([]ProviderHealth, error)
}

type TransportRepository interface {
	ReplaceSchedule(ctx context.Context, operator string, rows []TransportOption) error
	ListTransport(ctx context.Context, from, to string) ([]TransportOption, error)
}

// OfferProvider is the uniform capability every hotel-price source exposes.
// FetchOffers fails with one of the taxonomy errors in errors.go.
type OfferProvider interface {
	Name() string
	FetchOffers(ctx context.Context, q ProviderQuery) ([]RawOffer, error)
}

// TransportProvider fetches a full schedule snapshot for one operator.
type TransportProvider interface {
	Name() string
	FetchSchedule(ctx context.Context) ([]TransportOption, error)
}

type ProviderQuery struct {
	City     string
	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
	Children int
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ---- read models ----

type SearchQuery struct {
	City     string
	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
	Children int
	Currency string
	MinStars *int
	MaxPrice *float64
	Limit    int
}

// HotelBestPrice is the search result row: the most recent available offer
// per provider plus the minimum price across providers.
type HotelBestPrice struct {
	Hotel     CanonicalHotel
	Offers    []Offer // latest per provider, cheapest first
	MinPrice  float64
	Currency  string
	FetchedAt time.Time // newest offer in the row; staleness indicator
}

type CalendarDay struct {
	Date     time.Time
	MinPrice *float64
	Status   AvailabilityStatus
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type RiskScore struct {
	HotelID        int64
	City           string
	CheckIn        time.Time
	Score          int // 0-100
	Level          RiskLevel
	Reasons        []string
	Recommendation string
	ComputedAt     time.Time
}
