package app

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"umrah_prices/internal/adapters/observability"
	"umrah_prices/internal/domain"
)

// ResolverConfig carries the matching policy. Thresholds are deliberately
// tunable; the defaults have not been validated against live provider data.
type ResolverConfig struct {
	GeoRadiusM  float64 // candidate admission radius
	NameCutoff  float64 // candidate admission similarity
	AcceptScore int     // >= binds with confidence
	RejectScore int     // < creates a new canonical record
	GeoWeight   float64
	NameWeight  float64
	RemapAfter  int // consecutive disagreements before rebinding
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		GeoRadiusM:  150,
		NameCutoff:  0.85,
		AcceptScore: 70,
		RejectScore: 40,
		GeoWeight:   0.45,
		NameWeight:  0.55,
		RemapAfter:  3,
	}
}

// Resolver maps provider-asserted hotel identities to canonical records.
// It is the only writer of CanonicalHotel and ProviderMapping rows.
type Resolver struct {
	repo domain.HotelRepository
	cfg  ResolverConfig
	now  func() time.Time
}

func NewResolver(repo domain.HotelRepository, cfg ResolverConfig) *Resolver {
	return &Resolver{repo: repo, cfg: cfg, now: time.Now}
}

// Resolve returns the mapping for a raw offer, creating canonical records
// as needed. It never drops an offer: an ambiguous match produces a
// low-confidence mapping flagged for review instead of an error.
func (r *Resolver) Resolve(ctx context.Context, raw domain.RawOffer) (domain.ProviderMapping, error) {
	city := domain.NormalizeCity(raw.City)

	m, err := r.repo.GetMapping(ctx, raw.Provider, raw.ProviderHotelID)
	if err == nil {
		return r.refresh(ctx, m, raw)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ProviderMapping{}, err
	}
	return r.bind(ctx, raw, city)
}

// refresh is the O(1) hit path: touch last_seen and drift confidence with
// the new observation. A run of disagreements triggers a remap.
func (r *Resolver) refresh(ctx context.Context, m domain.ProviderMapping, raw domain.RawOffer) (domain.ProviderMapping, error) {
	hotel, err := r.repo.GetHotel(ctx, m.HotelID)
	if err != nil {
		return domain.ProviderMapping{}, err
	}

	score := r.score(raw, hotel)
	switch {
	case score >= r.cfg.AcceptScore:
		m.Confidence = minInt(100, m.Confidence+3)
		m.Disagreements = 0
	case score < r.cfg.RejectScore:
		m.Confidence = maxInt(0, m.Confidence-10)
		m.Disagreements++
	}

	if m.Disagreements >= r.cfg.RemapAfter {
		log.Warn().
			Str("provider", m.Provider).
			Str("provider_hotel_id", m.ProviderHotelID).
			Int64("hotel_id", m.HotelID).
			Int("score", score).
			Msg("mapping disagreement run, remapping")
		observability.ObserveResolver("remapped")
		return r.bind(ctx, raw, domain.NormalizeCity(raw.City))
	}

	m.NeedsReview = m.NeedsReview || m.Confidence < r.cfg.RejectScore
	if err := r.repo.TouchMapping(ctx, m.Provider, m.ProviderHotelID, m.Confidence, m.Disagreements, m.NeedsReview); err != nil {
		return domain.ProviderMapping{}, err
	}
	observability.ObserveResolver("exact_hit")
	return m, nil
}

// bind runs the candidate search and writes a new (or superseding) mapping.
func (r *Resolver) bind(ctx context.Context, raw domain.RawOffer, city string) (domain.ProviderMapping, error) {
	norm := NormalizeName(raw.HotelName)

	candidates, err := r.repo.ListHotelsByCity(ctx, city)
	if err != nil {
		return domain.ProviderMapping{}, err
	}

	var best *domain.CanonicalHotel
	bestScore := -1
	for i := range candidates {
		c := &candidates[i]
		nameScore := NameSimilarity(norm, c.NormalizedName)
		inRadius := false
		if raw.Lat != nil && raw.Lon != nil && c.Coords != nil {
			inRadius = HaversineMeters(*raw.Lat, *raw.Lon, c.Coords.Lat, c.Coords.Lon) <= r.cfg.GeoRadiusM
		}
		if !inRadius && nameScore < r.cfg.NameCutoff {
			continue
		}
		if s := r.score(raw, *c); s > bestScore {
			best, bestScore = c, s
		}
	}

	switch {
	case best != nil && bestScore >= r.cfg.AcceptScore:
		if err := r.enrich(ctx, *best, raw); err != nil {
			return domain.ProviderMapping{}, err
		}
		observability.ObserveResolver("accepted")
		return r.write(ctx, raw, best.ID, bestScore, false)

	case best != nil && bestScore >= r.cfg.RejectScore:
		// ambiguous band: bind low-confidence and surface for review
		observability.ObserveResolver("ambiguous")
		return r.write(ctx, raw, best.ID, bestScore, true)
	}

	// No plausible candidate: create a canonical record. The candidate
	// search above doubles as the duplicate-prevention check; an exact
	// normalized-name collision merges instead of creating.
	if existing, err := r.repo.GetHotelByName(ctx, city, norm); err == nil {
		observability.ObserveResolver("merged")
		return r.write(ctx, raw, existing.ID, 85, false)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.ProviderMapping{}, err
	}

	h := canonicalFromRaw(raw, city, norm, r.now())
	id, err := r.repo.CreateHotel(ctx, h)
	if errors.Is(err, domain.ErrConflict) {
		// lost the creation race: resolve against the committed row
		committed, gerr := r.repo.GetHotelByName(ctx, city, norm)
		if gerr != nil {
			return domain.ProviderMapping{}, gerr
		}
		observability.ObserveResolver("merged")
		return r.write(ctx, raw, committed.ID, 85, false)
	}
	if err != nil {
		return domain.ProviderMapping{}, err
	}
	observability.ObserveResolver("created")
	return r.write(ctx, raw, id, 90, false)
}

func (r *Resolver) write(ctx context.Context, raw domain.RawOffer, hotelID int64, confidence int, review bool) (domain.ProviderMapping, error) {
	m := domain.ProviderMapping{
		Provider:        raw.Provider,
		ProviderHotelID: raw.ProviderHotelID,
		HotelID:         hotelID,
		Confidence:      confidence,
		NeedsReview:     review,
		LastSeen:        r.now(),
	}
	if err := r.repo.BindMapping(ctx, m); err != nil {
		return domain.ProviderMapping{}, err
	}
	return m, nil
}

// enrich fills fields the canonical record is missing from a
// high-confidence observation.
func (r *Resolver) enrich(ctx context.Context, h domain.CanonicalHotel, raw domain.RawOffer) error {
	changed := false
	if h.Coords == nil && raw.Lat != nil && raw.Lon != nil {
		h.Coords = &domain.Coords{Lat: *raw.Lat, Lon: *raw.Lon}
		changed = true
	}
	if h.Stars == nil && raw.Stars != nil {
		h.Stars = raw.Stars
		changed = true
	}
	if len(h.Amenities) == 0 && len(raw.Amenities) > 0 {
		h.Amenities = raw.Amenities
		changed = true
	}
	if h.DistanceToHaramM == nil && raw.DistToHaramM != nil {
		h.DistanceToHaramM = raw.DistToHaramM
		changed = true
	}
	if !changed {
		return nil
	}
	h.UpdatedAt = r.now() // timestamp assigned here, not by a DB trigger
	return r.repo.EnrichHotel(ctx, h)
}

// score combines geo proximity and name similarity into 0-100.
func (r *Resolver) score(raw domain.RawOffer, h domain.CanonicalHotel) int {
	nameScore := NameSimilarity(NormalizeName(raw.HotelName), h.NormalizedName)

	if raw.Lat == nil || raw.Lon == nil || h.Coords == nil {
		return int(math.Round(nameScore * 100))
	}
	d := HaversineMeters(*raw.Lat, *raw.Lon, h.Coords.Lat, h.Coords.Lon)
	geoScore := 1 - d/r.cfg.GeoRadiusM
	if geoScore < 0 {
		geoScore = 0
	}
	combined := (r.cfg.GeoWeight*geoScore + r.cfg.NameWeight*nameScore) /
		(r.cfg.GeoWeight + r.cfg.NameWeight)
	return int(math.Round(combined * 100))
}

func canonicalFromRaw(raw domain.RawOffer, city, norm string, now time.Time) domain.CanonicalHotel {
	h := domain.CanonicalHotel{
		Name:             raw.HotelName,
		NormalizedName:   norm,
		City:             city,
		Stars:            raw.Stars,
		Amenities:        raw.Amenities,
		DistanceToHaramM: raw.DistToHaramM,
		UpdatedAt:        now,
	}
	if raw.Lat != nil && raw.Lon != nil {
		h.Coords = &domain.Coords{Lat: *raw.Lat, Lon: *raw.Lon}
	}
	return h
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
