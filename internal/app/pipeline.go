package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"umrah_prices/internal/adapters/observability"
	"umrah_prices/internal/domain"
)

// ProviderSource is the slice of the provider registry the pipeline needs.
type ProviderSource interface {
	Offer(name string) (domain.OfferProvider, bool)
	Fanout() []domain.OfferProvider
	Transport(name string) (domain.TransportProvider, bool)
	OfferNames() []string
	TransportNames() []string
}

type CrawlConfig struct {
	SARToIDR  float64 // conversion rate stamped onto SAR offers
	DaysAhead int     // check-in horizon when the payload gives days_ahead
}

// CrawlService turns a claimed crawl job into stored offers: fetch (through
// the cache), resolve identities, append offers and price history.
type CrawlService struct {
	providers ProviderSource
	resolver  *Resolver
	offers    domain.OfferRepository
	transport domain.TransportRepository
	cache     *CacheManager
	cfg       CrawlConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewCrawlService(
	providers ProviderSource,
	resolver *Resolver,
	offers domain.OfferRepository,
	transport domain.TransportRepository,
	cache *CacheManager,
	cfg CrawlConfig,
	log zerolog.Logger,
) *CrawlService {
	return &CrawlService{
		providers: providers,
		resolver:  resolver,
		offers:    offers,
		transport: transport,
		cache:     cache,
		cfg:       cfg,
		log:       log.With().Str("component", "crawler").Logger(),
		now:       time.Now,
	}
}

// crawlPayload is the wire shape of CrawlJob.Payload.
type crawlPayload struct {
	City      string `json:"city"`
	CheckIn   string `json:"check_in,omitempty"`
	CheckOut  string `json:"check_out,omitempty"`
	DaysAhead int    `json:"days_ahead,omitempty"`
	Nights    int    `json:"nights,omitempty"`
	Adults    int    `json:"adults,omitempty"`
	Children  int    `json:"children,omitempty"`
	FanOut    bool   `json:"fan_out,omitempty"`
}

// Run dispatches on the job type: prices_<provider> or transport_<operator>.
func (c *CrawlService) Run(ctx context.Context, job domain.CrawlJob) (CrawlOutcome, error) {
	switch {
	case strings.HasPrefix(job.Type, "prices_"):
		return c.runPrices(ctx, strings.TrimPrefix(job.Type, "prices_"), job)
	case strings.HasPrefix(job.Type, "transport_"):
		return c.runTransport(ctx, strings.TrimPrefix(job.Type, "transport_"))
	default:
		return CrawlOutcome{}, fmt.Errorf("%w: unknown job type %q", domain.ErrPermanent, job.Type)
	}
}

func (c *CrawlService) runPrices(ctx context.Context, provider string, job domain.CrawlJob) (CrawlOutcome, error) {
	var p crawlPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return CrawlOutcome{Provider: provider}, fmt.Errorf("%w: bad payload: %v", domain.ErrPermanent, err)
	}
	q, err := c.queryFor(p)
	if err != nil {
		return CrawlOutcome{Provider: provider}, err
	}

	if p.FanOut {
		return c.fanout(ctx, q)
	}

	src, ok := c.providers.Offer(provider)
	if !ok {
		return CrawlOutcome{Provider: provider}, fmt.Errorf("%w: provider %q not enabled", domain.ErrPermanent, provider)
	}
	n, err := c.fetchAndIngest(ctx, src, q)
	return CrawlOutcome{Provider: provider, Items: n}, err
}

// fanout walks enabled providers in priority order and stops at the first
// one that yields offers, so a primary outage degrades to the next source
// instead of failing the job.
func (c *CrawlService) fanout(ctx context.Context, q domain.ProviderQuery) (CrawlOutcome, error) {
	var lastErr error
	var last string
	for _, src := range c.providers.Fanout() {
		last = src.Name()
		n, err := c.fetchAndIngest(ctx, src, q)
		if err == nil && n > 0 {
			return CrawlOutcome{Provider: src.Name(), Items: n}, nil
		}
		if err != nil {
			c.log.Warn().Err(err).Str("provider", src.Name()).Msg("fan-out source failed, trying next")
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no provider returned offers", domain.ErrTransient)
	}
	return CrawlOutcome{Provider: last}, lastErr
}

func (c *CrawlService) queryFor(p crawlPayload) (domain.ProviderQuery, error) {
	q := domain.ProviderQuery{
		City:     domain.NormalizeCity(p.City),
		Adults:   p.Adults,
		Children: p.Children,
	}
	if q.City == "" {
		return q, fmt.Errorf("%w: payload missing city", domain.ErrPermanent)
	}
	if q.Adults <= 0 {
		q.Adults = 2
	}

	switch {
	case p.CheckIn != "":
		ci, err := time.Parse("2006-01-02", p.CheckIn)
		if err != nil {
			return q, fmt.Errorf("%w: bad check_in: %v", domain.ErrPermanent, err)
		}
		q.CheckIn = ci
		if p.CheckOut != "" {
			co, err := time.Parse("2006-01-02", p.CheckOut)
			if err != nil {
				return q, fmt.Errorf("%w: bad check_out: %v", domain.ErrPermanent, err)
			}
			q.CheckOut = co
		}
	default:
		ahead := p.DaysAhead
		if ahead <= 0 {
			ahead = c.cfg.DaysAhead
		}
		if ahead <= 0 {
			ahead = 14
		}
		q.CheckIn = c.now().AddDate(0, 0, ahead).Truncate(24 * time.Hour)
	}
	if q.CheckOut.IsZero() || !q.CheckOut.After(q.CheckIn) {
		nights := p.Nights
		if nights <= 0 {
			nights = 3
		}
		q.CheckOut = q.CheckIn.AddDate(0, 0, nights)
	}
	return q, nil
}

func (c *CrawlService) fetchAndIngest(ctx context.Context, src domain.OfferProvider, q domain.ProviderQuery) (int, error) {
	key := offerCacheKey(src.Name(), q)
	raws, hit, err := GetOrFetch(ctx, c.cache, src.Name(), key, func(ctx context.Context) ([]domain.RawOffer, error) {
		return src.FetchOffers(ctx, q)
	})
	if err != nil {
		return 0, err
	}
	if hit {
		c.log.Debug().Str("provider", src.Name()).Str("key", key).Msg("served crawl from cache")
	}
	return c.ingest(ctx, src.Name(), raws)
}

// ingest resolves each raw offer and appends the observation. A single bad
// offer is logged and skipped; the batch fails only when nothing lands.
func (c *CrawlService) ingest(ctx context.Context, provider string, raws []domain.RawOffer) (int, error) {
	inserted := 0
	var firstErr error
	for _, raw := range raws {
		if err := c.ingestOne(ctx, raw); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			c.log.Warn().Err(err).
				Str("provider", provider).
				Str("provider_hotel_id", raw.ProviderHotelID).
				Msg("offer skipped")
			continue
		}
		inserted++
	}
	if inserted > 0 {
		observability.ObserveOffers(provider, inserted)
	}
	if inserted == 0 && firstErr != nil {
		return 0, firstErr
	}
	return inserted, nil
}

func (c *CrawlService) ingestOne(ctx context.Context, raw domain.RawOffer) error {
	m, err := c.resolver.Resolve(ctx, raw)
	if err != nil {
		return err
	}

	fetchedAt := c.now()
	o := offerFromRaw(raw, m.HotelID, fetchedAt, c.cfg.SARToIDR)
	if _, err := c.offers.InsertOffer(ctx, o); err != nil {
		return err
	}
	return c.appendHistory(ctx, o)
}

// appendHistory derives the change-percent against the previous observation
// of the same (hotel, provider, check-in) key. First observation stores nil.
func (c *CrawlService) appendHistory(ctx context.Context, o domain.Offer) error {
	point := domain.PriceHistoryPoint{
		HotelID:    o.HotelID,
		Provider:   o.Provider,
		CheckIn:    o.CheckIn,
		Price:      o.Total,
		Status:     o.Status,
		RecordedAt: o.FetchedAt,
	}

	prior, err := c.offers.LatestHistoryPoint(ctx, o.HotelID, o.Provider, o.CheckIn)
	switch {
	case err == nil && prior.Price > 0:
		pct := (o.Total - prior.Price) / prior.Price * 100
		point.ChangePercent = &pct
	case err != nil && !isNotFound(err):
		return err
	}
	return c.offers.InsertHistoryPoint(ctx, point)
}

func (c *CrawlService) runTransport(ctx context.Context, operator string) (CrawlOutcome, error) {
	src, ok := c.providers.Transport(operator)
	if !ok {
		return CrawlOutcome{Provider: operator}, fmt.Errorf("%w: transport operator %q not enabled", domain.ErrPermanent, operator)
	}
	rows, err := src.FetchSchedule(ctx)
	if err != nil {
		return CrawlOutcome{Provider: operator}, err
	}
	if err := c.transport.ReplaceSchedule(ctx, src.Name(), rows); err != nil {
		return CrawlOutcome{Provider: operator}, err
	}
	return CrawlOutcome{Provider: operator, Items: len(rows)}, nil
}

func offerFromRaw(raw domain.RawOffer, hotelID int64, fetchedAt time.Time, sarToIDR float64) domain.Offer {
	o := domain.Offer{
		HotelID:       hotelID,
		Provider:      raw.Provider,
		City:          domain.NormalizeCity(raw.City),
		CheckIn:       raw.CheckIn,
		CheckOut:      raw.CheckOut,
		Adults:        raw.Adults,
		Children:      raw.Children,
		RoomType:      raw.RoomType,
		BoardType:     raw.BoardType,
		Currency:      raw.Currency,
		Total:         raw.Total,
		PerNight:      raw.PerNight,
		Taxes:         raw.Taxes,
		RoomsLeft:     raw.RoomsLeft,
		Status:        raw.Status,
		FetchedAt:     fetchedAt,
		RawPayload:    raw.RawPayload,
		SchemaVersion: raw.SchemaVersion,
	}
	if raw.Currency == "SAR" && sarToIDR > 0 {
		idr := raw.Total * sarToIDR
		o.TotalIDR = &idr
	}
	return o
}

func offerCacheKey(provider string, q domain.ProviderQuery) string {
	return fmt.Sprintf("offers:%s:%s:%s:%s:%da%dc",
		provider, q.City,
		q.CheckIn.Format("2006-01-02"), q.CheckOut.Format("2006-01-02"),
		q.Adults, q.Children)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
