package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"umrah_prices/internal/domain"
)

// QueryService is the read-only surface behind the public API. It serves
// stored observations; it never reaches out to a provider.
type QueryService struct {
	hotels    domain.HotelRepository
	offers    domain.OfferRepository
	transport domain.TransportRepository
	risk      *RiskScorer
	cache     *CacheManager
}

func NewQueryService(
	hotels domain.HotelRepository,
	offers domain.OfferRepository,
	transport domain.TransportRepository,
	risk *RiskScorer,
	cache *CacheManager,
) *QueryService {
	return &QueryService{hotels: hotels, offers: offers, transport: transport, risk: risk, cache: cache}
}

// SearchHotels returns per-hotel best prices for a city and stay. Results
// are cached briefly; FetchedAt on each row tells the caller how stale the
// underlying offers are.
func (s *QueryService) SearchHotels(ctx context.Context, q domain.SearchQuery) ([]domain.HotelBestPrice, error) {
	q.City = domain.NormalizeCity(q.City)
	if q.City == "" {
		return nil, fmt.Errorf("%w: unknown city", domain.ErrPermanent)
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50
	}

	key := searchCacheKey(q)
	rows, _, err := GetOrFetch(ctx, s.cache, "search", key, func(ctx context.Context) ([]domain.HotelBestPrice, error) {
		return s.offers.SearchBestOffers(ctx, q)
	})
	return rows, err
}

// HotelOffers returns the canonical record plus its recent observations,
// newest first.
func (s *QueryService) HotelOffers(ctx context.Context, hotelID int64, limit int) (domain.CanonicalHotel, []domain.Offer, error) {
	h, err := s.hotels.GetHotel(ctx, hotelID)
	if err != nil {
		return domain.CanonicalHotel{}, nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offers, err := s.offers.ListOffers(ctx, hotelID, limit)
	if err != nil {
		return domain.CanonicalHotel{}, nil, err
	}
	return h, offers, nil
}

func (s *QueryService) PriceHistory(ctx context.Context, hotelID int64, since time.Time) ([]domain.PriceHistoryPoint, error) {
	if _, err := s.hotels.GetHotel(ctx, hotelID); err != nil {
		return nil, err
	}
	return s.offers.ListHistory(ctx, hotelID, since)
}

// Calendar returns day-by-day min price and availability for a date range.
func (s *QueryService) Calendar(ctx context.Context, hotelID int64, from, to time.Time) ([]domain.CalendarDay, error) {
	if _, err := s.hotels.GetHotel(ctx, hotelID); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty date range", domain.ErrPermanent)
	}
	return s.offers.Calendar(ctx, hotelID, from, to)
}

func (s *QueryService) Transport(ctx context.Context, from, to string) ([]domain.TransportOption, error) {
	f, t := domain.NormalizeCity(from), domain.NormalizeCity(to)
	if f == "" || t == "" {
		return nil, fmt.Errorf("%w: unknown city", domain.ErrPermanent)
	}
	return s.transport.ListTransport(ctx, f, t)
}

func (s *QueryService) Risk(ctx context.Context, hotelID int64, checkIn time.Time) (domain.RiskScore, error) {
	h, err := s.hotels.GetHotel(ctx, hotelID)
	if err != nil {
		return domain.RiskScore{}, err
	}
	return s.risk.Compute(ctx, hotelID, h.City, checkIn)
}

func searchCacheKey(q domain.SearchQuery) string {
	stars, maxPrice := 0, 0.0
	if q.MinStars != nil {
		stars = *q.MinStars
	}
	if q.MaxPrice != nil {
		maxPrice = *q.MaxPrice
	}
	return fmt.Sprintf("search:%s:%s:%s:%da%dc:s%d:p%.0f:l%d",
		q.City, q.CheckIn.Format("2006-01-02"), q.CheckOut.Format("2006-01-02"),
		q.Adults, q.Children, stars, maxPrice, q.Limit)
}

// OpsService backs the operator endpoints: queue introspection, manual
// retries, mapping review and provider health.
type OpsService struct {
	jobs      domain.JobRepository
	hotels    domain.HotelRepository
	scheduler *Scheduler
	log       zerolog.Logger
}

func NewOpsService(jobs domain.JobRepository, hotels domain.HotelRepository, scheduler *Scheduler, log zerolog.Logger) *OpsService {
	return &OpsService{jobs: jobs, hotels: hotels, scheduler: scheduler, log: log.With().Str("component", "ops").Logger()}
}

func (s *OpsService) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.CrawlJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.jobs.ListJobs(ctx, status, limit)
}

func (s *OpsService) GetJob(ctx context.Context, id string) (domain.CrawlJob, error) {
	return s.jobs.GetJob(ctx, id)
}

// RetryJob resets a terminal-failed job for another run. Anything not in
// the failed state is rejected so operators cannot double-run live jobs.
func (s *OpsService) RetryJob(ctx context.Context, id string) error {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != domain.JobFailed {
		return fmt.Errorf("%w: job %s is %s, only failed jobs can be retried", domain.ErrConflict, id, job.Status)
	}
	if err := s.jobs.RequeueFailed(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("job_id", id).Str("type", job.Type).Msg("job requeued by operator")
	return nil
}

// TriggerCrawl enqueues an ad-hoc job to run immediately.
func (s *OpsService) TriggerCrawl(ctx context.Context, jobType string, payload any) (domain.CrawlJob, bool, error) {
	return s.scheduler.Enqueue(ctx, jobType, payload, time.Now())
}

// ConfirmMapping pins a provider mapping after human review: confidence 100,
// review flag cleared.
func (s *OpsService) ConfirmMapping(ctx context.Context, provider, providerHotelID string) error {
	if err := s.hotels.ConfirmMapping(ctx, provider, providerHotelID); err != nil {
		return err
	}
	s.log.Info().Str("provider", provider).Str("provider_hotel_id", providerHotelID).Msg("mapping confirmed")
	return nil
}

func (s *OpsService) ProviderHealth(ctx context.Context, since time.Time) ([]domain.ProviderHealth, error) {
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	return s.jobs.ProviderHealth(ctx, since)
}
