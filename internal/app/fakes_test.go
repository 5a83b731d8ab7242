package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"umrah_prices/internal/domain"
)

// In-memory doubles for the repository ports. They keep the invariants the
// MySQL layer enforces (unique names, fingerprint dedupe, atomic claim) so
// service tests exercise real control flow.

type fakeHotelRepo struct {
	mu       sync.Mutex
	nextID   int64
	hotels   map[int64]domain.CanonicalHotel
	byName   map[string]int64 // city|normalized_name
	mappings map[string]domain.ProviderMapping
}

func newFakeHotelRepo() *fakeHotelRepo {
	return &fakeHotelRepo{
		nextID:   1,
		hotels:   make(map[int64]domain.CanonicalHotel),
		byName:   make(map[string]int64),
		mappings: make(map[string]domain.ProviderMapping),
	}
}

func mapKey(provider, pid string) string { return provider + "|" + pid }
func nameKey(city, norm string) string   { return city + "|" + norm }

func (f *fakeHotelRepo) GetMapping(_ context.Context, provider, pid string) (domain.ProviderMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[mapKey(provider, pid)]
	if !ok {
		return domain.ProviderMapping{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeHotelRepo) BindMapping(_ context.Context, m domain.ProviderMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings[mapKey(m.Provider, m.ProviderHotelID)] = m
	return nil
}

func (f *fakeHotelRepo) TouchMapping(_ context.Context, provider, pid string, confidence, disagreements int, needsReview bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[mapKey(provider, pid)]
	if !ok {
		return domain.ErrNotFound
	}
	m.Confidence = confidence
	m.Disagreements = disagreements
	m.NeedsReview = needsReview
	m.LastSeen = time.Now()
	f.mappings[mapKey(provider, pid)] = m
	return nil
}

func (f *fakeHotelRepo) ConfirmMapping(_ context.Context, provider, pid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[mapKey(provider, pid)]
	if !ok {
		return domain.ErrNotFound
	}
	m.Confidence = 100
	m.NeedsReview = false
	f.mappings[mapKey(provider, pid)] = m
	return nil
}

func (f *fakeHotelRepo) GetHotel(_ context.Context, id int64) (domain.CanonicalHotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hotels[id]
	if !ok {
		return domain.CanonicalHotel{}, domain.ErrNotFound
	}
	return h, nil
}

func (f *fakeHotelRepo) GetHotelByName(_ context.Context, city, norm string) (domain.CanonicalHotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byName[nameKey(city, norm)]
	if !ok {
		return domain.CanonicalHotel{}, domain.ErrNotFound
	}
	return f.hotels[id], nil
}

func (f *fakeHotelRepo) ListHotelsByCity(_ context.Context, city string) ([]domain.CanonicalHotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CanonicalHotel
	for _, h := range f.hotels {
		if h.City == city {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeHotelRepo) CreateHotel(_ context.Context, h domain.CanonicalHotel) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := nameKey(h.City, h.NormalizedName)
	if _, ok := f.byName[k]; ok {
		return 0, domain.ErrConflict
	}
	h.ID = f.nextID
	f.nextID++
	f.hotels[h.ID] = h
	f.byName[k] = h.ID
	return h.ID, nil
}

func (f *fakeHotelRepo) EnrichHotel(_ context.Context, h domain.CanonicalHotel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hotels[h.ID]; !ok {
		return domain.ErrNotFound
	}
	f.hotels[h.ID] = h
	return nil
}

type fakeOfferRepo struct {
	mu      sync.Mutex
	nextID  int64
	offers  []domain.Offer
	history []domain.PriceHistoryPoint
}

func newFakeOfferRepo() *fakeOfferRepo { return &fakeOfferRepo{nextID: 1} }

func (f *fakeOfferRepo) InsertOffer(_ context.Context, o domain.Offer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.nextID
	f.nextID++
	f.offers = append(f.offers, o)
	return o.ID, nil
}

func (f *fakeOfferRepo) ListOffers(_ context.Context, hotelID int64, limit int) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Offer
	for i := len(f.offers) - 1; i >= 0 && len(out) < limit; i-- {
		if f.offers[i].HotelID == hotelID {
			out = append(out, f.offers[i])
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) RecentOffers(_ context.Context, hotelID int64, checkIn time.Time, limit int) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Offer
	for i := len(f.offers) - 1; i >= 0 && len(out) < limit; i-- {
		o := f.offers[i]
		if o.HotelID == hotelID && o.CheckIn.Equal(checkIn) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) LatestHistoryPoint(_ context.Context, hotelID int64, provider string, checkIn time.Time) (domain.PriceHistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.history) - 1; i >= 0; i-- {
		p := f.history[i]
		if p.HotelID == hotelID && p.Provider == provider && p.CheckIn.Equal(checkIn) {
			return p, nil
		}
	}
	return domain.PriceHistoryPoint{}, domain.ErrNotFound
}

func (f *fakeOfferRepo) InsertHistoryPoint(_ context.Context, p domain.PriceHistoryPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = int64(len(f.history) + 1)
	f.history = append(f.history, p)
	return nil
}

func (f *fakeOfferRepo) ListHistory(_ context.Context, hotelID int64, since time.Time) ([]domain.PriceHistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PriceHistoryPoint
	for _, p := range f.history {
		if p.HotelID == hotelID && !p.RecordedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) SearchBestOffers(_ context.Context, q domain.SearchQuery) ([]domain.HotelBestPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	best := make(map[int64]*domain.HotelBestPrice)
	for _, o := range f.offers {
		if o.City != q.City || !o.CheckIn.Equal(q.CheckIn) {
			continue
		}
		// sold_out and unknown observations never enter the best-price view
		if o.Status == domain.SoldOut || o.Status == domain.UnknownAv {
			continue
		}
		row, ok := best[o.HotelID]
		if !ok {
			row = &domain.HotelBestPrice{Hotel: domain.CanonicalHotel{ID: o.HotelID}, MinPrice: o.Total, Currency: o.Currency}
			best[o.HotelID] = row
		}
		if o.Total < row.MinPrice {
			row.MinPrice = o.Total
		}
		if o.FetchedAt.After(row.FetchedAt) {
			row.FetchedAt = o.FetchedAt
		}
		row.Offers = append(row.Offers, o)
	}
	var out []domain.HotelBestPrice
	for _, r := range best {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinPrice < out[j].MinPrice })
	return out, nil
}

func (f *fakeOfferRepo) Calendar(_ context.Context, hotelID int64, from, to time.Time) ([]domain.CalendarDay, error) {
	return nil, nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.CrawlJob
	logs []domain.CrawlLog
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*domain.CrawlJob)}
}

func (f *fakeJobRepo) Enqueue(_ context.Context, job domain.CrawlJob) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.Fingerprint == job.Fingerprint && (j.Status == domain.JobQueued || j.Status == domain.JobRunning) {
			return false, nil
		}
	}
	cp := job
	f.jobs[job.ID] = &cp
	return true, nil
}

func (f *fakeJobRepo) DequeueReady(_ context.Context, limit int) ([]domain.CrawlJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []domain.CrawlJob
	ids := make([]string, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		j := f.jobs[id]
		if len(out) >= limit {
			break
		}
		if j.Status == domain.JobQueued && !j.RunAt.After(now) {
			j.Status = domain.JobRunning
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) MarkDone(_ context.Context, id string) error {
	return f.setStatus(id, domain.JobDone, nil)
}

func (f *fakeJobRepo) Reschedule(_ context.Context, id string, runAt time.Time, attempts int, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.JobQueued
	j.RunAt = runAt
	j.Attempts = attempts
	j.LastError = &lastErr
	return nil
}

func (f *fakeJobRepo) MarkFailed(_ context.Context, id string, lastErr string) error {
	return f.setStatus(id, domain.JobFailed, &lastErr)
}

func (f *fakeJobRepo) RequeueFailed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != domain.JobFailed {
		return domain.ErrConflict
	}
	j.Status = domain.JobQueued
	j.Attempts = 0
	j.RunAt = time.Now()
	return nil
}

func (f *fakeJobRepo) setStatus(id string, st domain.JobStatus, lastErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = st
	if lastErr != nil {
		j.LastError = lastErr
	}
	return nil
}

func (f *fakeJobRepo) GetJob(_ context.Context, id string) (domain.CrawlJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.CrawlJob{}, domain.ErrNotFound
	}
	return *j, nil
}

func (f *fakeJobRepo) GetJobByFingerprint(_ context.Context, fingerprint string) (domain.CrawlJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.Fingerprint == fingerprint && (j.Status == domain.JobQueued || j.Status == domain.JobRunning) {
			return *j, nil
		}
	}
	return domain.CrawlJob{}, domain.ErrNotFound
}

func (f *fakeJobRepo) ListJobs(_ context.Context, status domain.JobStatus, limit int) ([]domain.CrawlJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CrawlJob
	for _, j := range f.jobs {
		if (status == "" || j.Status == status) && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) AppendLog(_ context.Context, l domain.CrawlLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeJobRepo) ProviderHealth(_ context.Context, since time.Time) ([]domain.ProviderHealth, error) {
	return nil, nil
}

type fakeTransportRepo struct {
	mu   sync.Mutex
	rows map[string][]domain.TransportOption
}

func newFakeTransportRepo() *fakeTransportRepo {
	return &fakeTransportRepo{rows: make(map[string][]domain.TransportOption)}
}

func (f *fakeTransportRepo) ReplaceSchedule(_ context.Context, operator string, rows []domain.TransportOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[operator] = rows
	return nil
}

func (f *fakeTransportRepo) ListTransport(_ context.Context, from, to string) ([]domain.TransportOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransportOption
	for _, rows := range f.rows {
		for _, r := range rows {
			if r.FromCity == from && r.ToCity == to {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// memCache is a domain.Cache that ignores TTLs; failNext forces the next
// read to error so fall-through behavior can be tested.
type memCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	failNext bool
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		c.failNext = false
		return false, errors.New("cache down")
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// fakeProvider returns canned offers and counts upstream calls.
type fakeProvider struct {
	name  string
	raws  []domain.RawOffer
	err   error
	calls int
	mu    sync.Mutex
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchOffers(_ context.Context, q domain.ProviderQuery) ([]domain.RawOffer, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([]domain.RawOffer, len(p.raws))
	copy(out, p.raws)
	for i := range out {
		out[i].City = q.City
		out[i].CheckIn = q.CheckIn
		out[i].CheckOut = q.CheckOut
		out[i].Adults = q.Adults
	}
	return out, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeTransportProvider struct {
	name string
	rows []domain.TransportOption
	err  error
}

func (p *fakeTransportProvider) Name() string { return p.name }

func (p *fakeTransportProvider) FetchSchedule(context.Context) ([]domain.TransportOption, error) {
	return p.rows, p.err
}

type fakeSource struct {
	offers    []*fakeProvider
	transport map[string]domain.TransportProvider
}

func (s *fakeSource) Offer(name string) (domain.OfferProvider, bool) {
	for _, p := range s.offers {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

func (s *fakeSource) Fanout() []domain.OfferProvider {
	out := make([]domain.OfferProvider, 0, len(s.offers))
	for _, p := range s.offers {
		out = append(out, p)
	}
	return out
}

func (s *fakeSource) Transport(name string) (domain.TransportProvider, bool) {
	p, ok := s.transport[name]
	return p, ok
}

func (s *fakeSource) OfferNames() []string {
	out := make([]string, 0, len(s.offers))
	for _, p := range s.offers {
		out = append(out, p.name)
	}
	return out
}

func (s *fakeSource) TransportNames() []string {
	out := make([]string, 0, len(s.transport))
	for name := range s.transport {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func rawOffer(provider, pid, name string, total float64) domain.RawOffer {
	return domain.RawOffer{
		Provider:        provider,
		ProviderHotelID: pid,
		HotelName:       name,
		City:            "Makkah",
		Currency:        "SAR",
		Total:           total,
		Status:          domain.Available,
		SchemaVersion:   1,
	}
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q: %v", s, err))
	}
	return t
}
