package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"umrah_prices/internal/domain"
)

func testCrawlService(src ProviderSource, hotels *fakeHotelRepo, offers *fakeOfferRepo, transport *fakeTransportRepo, cache domain.Cache) *CrawlService {
	return NewCrawlService(
		src,
		NewResolver(hotels, DefaultResolverConfig()),
		offers,
		transport,
		NewCacheManager(cache, nil, 900),
		CrawlConfig{SARToIDR: 4250, DaysAhead: 14},
		zerolog.Nop(),
	)
}

func pricesJob(t *testing.T, jobType string, payload map[string]any) domain.CrawlJob {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.CrawlJob{ID: "j-1", Type: jobType, Payload: raw}
}

func TestCrawl_PricesJobStoresOffersAndHistory(t *testing.T) {
	hotels := newFakeHotelRepo()
	offers := newFakeOfferRepo()
	src := &fakeSource{offers: []*fakeProvider{{
		name: "xotelo",
		raws: []domain.RawOffer{
			rawOffer("xotelo", "x-1", "Hilton Makkah Convention", 940),
			rawOffer("xotelo", "x-2", "Swissotel Al Maqam", 620),
		},
	}}}
	c := testCrawlService(src, hotels, offers, newFakeTransportRepo(), newMemCache())

	job := pricesJob(t, "prices_xotelo", map[string]any{
		"city": "Makkah", "check_in": "2026-09-10", "check_out": "2026-09-13",
	})
	out, err := c.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "xotelo", out.Provider)
	require.Equal(t, 2, out.Items)

	require.Len(t, offers.offers, 2)
	require.Len(t, hotels.hotels, 2, "each property gets one canonical record")

	for _, o := range offers.offers {
		require.Equal(t, domain.CityMakkah, o.City)
		require.Equal(t, mustDate("2026-09-10"), o.CheckIn)
		require.NotNil(t, o.TotalIDR)
		require.InDelta(t, o.Total*4250, *o.TotalIDR, 0.01)
	}

	// first observation of each key has no change-percent
	require.Len(t, offers.history, 2)
	for _, p := range offers.history {
		require.Nil(t, p.ChangePercent)
	}
}

func TestCrawl_SecondRunRecordsChangePercent(t *testing.T) {
	hotels := newFakeHotelRepo()
	offers := newFakeOfferRepo()
	p := &fakeProvider{name: "xotelo", raws: []domain.RawOffer{rawOffer("xotelo", "x-1", "Hilton Makkah Convention", 1000)}}
	cache := newMemCache()
	c := testCrawlService(&fakeSource{offers: []*fakeProvider{p}}, hotels, offers, newFakeTransportRepo(), cache)
	ctx := context.Background()

	job := pricesJob(t, "prices_xotelo", map[string]any{
		"city": "Makkah", "check_in": "2026-09-10", "check_out": "2026-09-13",
	})
	_, err := c.Run(ctx, job)
	require.NoError(t, err)

	// bypass the cache and raise the price for the second observation
	require.NoError(t, cache.Del(ctx, offerCacheKey("xotelo", domain.ProviderQuery{
		City: domain.CityMakkah, CheckIn: mustDate("2026-09-10"), CheckOut: mustDate("2026-09-13"), Adults: 2,
	})))
	p.raws[0].Total = 1100
	_, err = c.Run(ctx, job)
	require.NoError(t, err)

	require.Len(t, offers.history, 2)
	require.Nil(t, offers.history[0].ChangePercent)
	require.NotNil(t, offers.history[1].ChangePercent)
	require.InDelta(t, 10.0, *offers.history[1].ChangePercent, 0.01)
}

func TestCrawl_CacheSuppressesRepeatFetch(t *testing.T) {
	p := &fakeProvider{name: "xotelo", raws: []domain.RawOffer{rawOffer("xotelo", "x-1", "Hilton Makkah Convention", 940)}}
	c := testCrawlService(&fakeSource{offers: []*fakeProvider{p}}, newFakeHotelRepo(), newFakeOfferRepo(), newFakeTransportRepo(), newMemCache())
	ctx := context.Background()

	job := pricesJob(t, "prices_xotelo", map[string]any{
		"city": "Makkah", "check_in": "2026-09-10", "check_out": "2026-09-13",
	})
	_, err := c.Run(ctx, job)
	require.NoError(t, err)
	_, err = c.Run(ctx, job)
	require.NoError(t, err)

	require.Equal(t, 1, p.callCount(), "second run inside the TTL must hit the cache")
}

func TestCrawl_FanOutFallsBackToNextProvider(t *testing.T) {
	primary := &fakeProvider{name: "xotelo", err: domain.ErrTransient}
	fallback := &fakeProvider{name: "demo", raws: []domain.RawOffer{rawOffer("demo", "d-1", "Anjum Makkah", 400)}}
	c := testCrawlService(&fakeSource{offers: []*fakeProvider{primary, fallback}}, newFakeHotelRepo(), newFakeOfferRepo(), newFakeTransportRepo(), newMemCache())

	job := pricesJob(t, "prices_xotelo", map[string]any{
		"city": "Makkah", "check_in": "2026-09-10", "fan_out": true,
	})
	out, err := c.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "demo", out.Provider)
	require.Equal(t, 1, out.Items)
	require.Equal(t, 1, primary.callCount())
}

func TestCrawl_UnknownJobTypeIsPermanent(t *testing.T) {
	c := testCrawlService(&fakeSource{}, newFakeHotelRepo(), newFakeOfferRepo(), newFakeTransportRepo(), newMemCache())

	_, err := c.Run(context.Background(), domain.CrawlJob{ID: "j", Type: "weird", Payload: []byte(`{}`)})
	require.ErrorIs(t, err, domain.ErrPermanent)
	require.False(t, domain.Retryable(err))
}

func TestCrawl_DaysAheadPayload(t *testing.T) {
	p := &fakeProvider{name: "demo", raws: []domain.RawOffer{rawOffer("demo", "d-1", "Anjum Makkah", 400)}}
	c := testCrawlService(&fakeSource{offers: []*fakeProvider{p}}, newFakeHotelRepo(), newFakeOfferRepo(), newFakeTransportRepo(), newMemCache())
	now := mustDate("2026-09-01")
	c.now = func() time.Time { return now }

	job := pricesJob(t, "prices_demo", map[string]any{"city": "Madinah", "days_ahead": 7, "nights": 2})
	_, err := c.Run(context.Background(), job)
	require.NoError(t, err)

	q, err := c.queryFor(crawlPayload{City: "Madinah", DaysAhead: 7, Nights: 2})
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, 7), q.CheckIn)
	require.Equal(t, q.CheckIn.AddDate(0, 0, 2), q.CheckOut)
	require.Equal(t, domain.CityMadinah, q.City)
}

func TestCrawl_TransportJobReplacesSchedule(t *testing.T) {
	transport := newFakeTransportRepo()
	src := &fakeSource{transport: map[string]domain.TransportProvider{
		"haramain": &fakeTransportProvider{name: "haramain", rows: []domain.TransportOption{
			{Operator: "HARAMAIN", Mode: "TRAIN", FromCity: domain.CityMakkah, ToCity: domain.CityMadinah, Depart: "08:00", Arrive: "10:30", DurationMin: 150, Available: true},
			{Operator: "HARAMAIN", Mode: "TRAIN", FromCity: domain.CityMadinah, ToCity: domain.CityMakkah, Depart: "09:00", Arrive: "11:30", DurationMin: 150, Available: true},
		}},
	}}
	c := testCrawlService(src, newFakeHotelRepo(), newFakeOfferRepo(), transport, newMemCache())

	out, err := c.Run(context.Background(), domain.CrawlJob{ID: "j", Type: "transport_haramain", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, 2, out.Items)

	rows, err := transport.ListTransport(context.Background(), domain.CityMakkah, domain.CityMadinah)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
