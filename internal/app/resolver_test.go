package app

import (
	"context"
	"testing"

	"umrah_prices/internal/domain"
)

func seedHotel(t *testing.T, repo *fakeHotelRepo, name string, lat, lon float64) int64 {
	t.Helper()
	id, err := repo.CreateHotel(context.Background(), domain.CanonicalHotel{
		Name:           name,
		NormalizedName: NormalizeName(name),
		City:           domain.CityMakkah,
		Coords:         &domain.Coords{Lat: lat, Lon: lon},
	})
	if err != nil {
		t.Fatalf("seed hotel: %v", err)
	}
	return id
}

func TestResolver_ExactHitDriftsConfidence(t *testing.T) {
	repo := newFakeHotelRepo()
	r := NewResolver(repo, DefaultResolverConfig())
	ctx := context.Background()

	id := seedHotel(t, repo, "Hilton Makkah Convention", 21.4230, 39.8260)

	raw := rawOffer("xotelo", "h-1", "Hilton Makkah Convention", 950)
	raw.Lat, raw.Lon = ptrF(21.4230), ptrF(39.8260)

	m1, err := r.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if m1.HotelID != id {
		t.Fatalf("expected bind to seeded hotel %d, got %d", id, m1.HotelID)
	}

	m2, err := r.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if m2.HotelID != id {
		t.Fatalf("exact hit rebound to a different hotel: %d", m2.HotelID)
	}
	if m2.Confidence <= m1.Confidence && m1.Confidence < 100 {
		t.Fatalf("agreeing observation should raise confidence: %d -> %d", m1.Confidence, m2.Confidence)
	}
	if len(repo.hotels) != 1 {
		t.Fatalf("no new canonical record expected, have %d", len(repo.hotels))
	}
}

func TestResolver_CrossProviderDedup(t *testing.T) {
	repo := newFakeHotelRepo()
	r := NewResolver(repo, DefaultResolverConfig())
	ctx := context.Background()

	a := rawOffer("xotelo", "x-9", "Hilton Makkah Convention", 950)
	a.Lat, a.Lon = ptrF(21.4230), ptrF(39.8260)

	b := rawOffer("makcorps", "m-77", "Makkah Hilton Convention", 940)
	b.Lat, b.Lon = ptrF(21.4231), ptrF(39.8261)

	ma, err := r.Resolve(ctx, a)
	if err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	mb, err := r.Resolve(ctx, b)
	if err != nil {
		t.Fatalf("resolve b: %v", err)
	}

	if ma.HotelID != mb.HotelID {
		t.Fatalf("same property from two providers split into hotels %d and %d", ma.HotelID, mb.HotelID)
	}
	if len(repo.hotels) != 1 {
		t.Fatalf("expected one canonical record, have %d", len(repo.hotels))
	}
}

func TestResolver_AmbiguousMatchFlagsReview(t *testing.T) {
	repo := newFakeHotelRepo()
	r := NewResolver(repo, DefaultResolverConfig())
	ctx := context.Background()

	id := seedHotel(t, repo, "Hilton Makkah Convention", 21.4230, 39.8260)

	// close by (~55m) but only half the name matches: mid-band score
	raw := rawOffer("amadeus", "a-3", "Makkah Hilton Towers", 900)
	raw.Lat, raw.Lon = ptrF(21.4235), ptrF(39.8260)

	m, err := r.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m.HotelID != id {
		t.Fatalf("ambiguous match should still bind the candidate, got hotel %d", m.HotelID)
	}
	if !m.NeedsReview {
		t.Fatalf("mid-band score must be flagged for review: %+v", m)
	}
	if m.Confidence >= DefaultResolverConfig().AcceptScore {
		t.Fatalf("ambiguous confidence too high: %d", m.Confidence)
	}
}

func TestResolver_NoMatchCreatesCanonical(t *testing.T) {
	repo := newFakeHotelRepo()
	r := NewResolver(repo, DefaultResolverConfig())
	ctx := context.Background()

	seedHotel(t, repo, "Hilton Makkah Convention", 21.4230, 39.8260)

	// far away and unrelated name
	raw := rawOffer("xotelo", "x-55", "Anjum Hotel", 400)
	raw.Lat, raw.Lon = ptrF(21.3900), ptrF(39.8500)
	raw.Stars = ptrI(4)

	m, err := r.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(repo.hotels) != 2 {
		t.Fatalf("expected a second canonical record, have %d", len(repo.hotels))
	}
	h, _ := repo.GetHotel(ctx, m.HotelID)
	if h.NormalizedName != NormalizeName("Anjum Hotel") {
		t.Fatalf("new canonical has wrong name key: %q", h.NormalizedName)
	}
	if h.Stars == nil || *h.Stars != 4 {
		t.Fatalf("creation should carry observed attributes: %+v", h)
	}
}

func TestResolver_RemapAfterDisagreementRun(t *testing.T) {
	repo := newFakeHotelRepo()
	cfg := DefaultResolverConfig()
	r := NewResolver(repo, cfg)
	ctx := context.Background()

	id := seedHotel(t, repo, "Hilton Makkah Convention", 21.4230, 39.8260)
	if err := repo.BindMapping(ctx, domain.ProviderMapping{
		Provider: "xotelo", ProviderHotelID: "drifted", HotelID: id, Confidence: 60,
	}); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	// provider now reports a completely different property under the same id
	raw := rawOffer("xotelo", "drifted", "Dar Al Eiman Royal", 300)

	var m domain.ProviderMapping
	var err error
	for i := 0; i < cfg.RemapAfter; i++ {
		m, err = r.Resolve(ctx, raw)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if m.HotelID == id {
		t.Fatalf("mapping should have been rebound after %d disagreements", cfg.RemapAfter)
	}
	if len(repo.hotels) != 2 {
		t.Fatalf("remap should have created the real property, have %d hotels", len(repo.hotels))
	}
}

// raceRepo simulates losing the create race: the duplicate check misses
// once, then the insert hits the unique constraint.
type raceRepo struct {
	*fakeHotelRepo
	missedOnce bool
}

func (r *raceRepo) ListHotelsByCity(ctx context.Context, city string) ([]domain.CanonicalHotel, error) {
	if !r.missedOnce {
		return nil, nil // snapshot taken before the other writer committed
	}
	return r.fakeHotelRepo.ListHotelsByCity(ctx, city)
}

func (r *raceRepo) GetHotelByName(ctx context.Context, city, norm string) (domain.CanonicalHotel, error) {
	if !r.missedOnce {
		r.missedOnce = true
		return domain.CanonicalHotel{}, domain.ErrNotFound
	}
	return r.fakeHotelRepo.GetHotelByName(ctx, city, norm)
}

func TestResolver_CreateRaceMergesOntoCommittedRow(t *testing.T) {
	inner := newFakeHotelRepo()
	committedID := seedHotel(t, inner, "Anjum Makkah", 21.4200, 39.8300)

	r := NewResolver(&raceRepo{fakeHotelRepo: inner}, DefaultResolverConfig())

	raw := rawOffer("makcorps", "m-1", "Anjum Makkah", 500)
	m, err := r.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m.HotelID != committedID {
		t.Fatalf("race loser must merge onto committed row %d, got %d", committedID, m.HotelID)
	}
	if len(inner.hotels) != 1 {
		t.Fatalf("race must not create a duplicate, have %d hotels", len(inner.hotels))
	}
}
