package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"umrah_prices/internal/domain"
)

// SeasonWindow marks a demand spike (Ramadan, Hajj, Eid, school holidays).
// Weight 1.0 is normal demand; 2.0 is peak.
type SeasonWindow struct {
	Name     string
	From, To time.Time
	Weight   float64
}

type RiskConfig struct {
	MinObservations int // below this the scorer returns a neutral default
	RecentLimit     int // observations fed into the trend factors
	Seasons         []SeasonWindow
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{MinObservations: 3, RecentLimit: 20}
}

// Factor weights, summing to 1. Mirrors the upstream scoring model:
// current availability dominates, seasonality nudges.
const (
	wAvailability = 0.30
	wRoomsLeft    = 0.25
	wPriceTrend   = 0.20
	wUrgency      = 0.15
	wSeason       = 0.10
)

// RiskScorer derives a sold-out-likelihood score per hotel/date from the
// append-only offer history. Read-only: it owns no tables.
type RiskScorer struct {
	offers domain.OfferRepository
	cfg    RiskConfig
	now    func() time.Time
}

func NewRiskScorer(offers domain.OfferRepository, cfg RiskConfig) *RiskScorer {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	return &RiskScorer{offers: offers, cfg: cfg, now: time.Now}
}

// Compute returns the risk score for a hotel and check-in date. Sparse
// history yields a neutral MEDIUM instead of an error.
func (r *RiskScorer) Compute(ctx context.Context, hotelID int64, city string, checkIn time.Time) (domain.RiskScore, error) {
	recent, err := r.offers.RecentOffers(ctx, hotelID, checkIn, r.cfg.RecentLimit)
	if err != nil {
		return domain.RiskScore{}, err
	}

	if len(recent) < r.cfg.MinObservations {
		return domain.RiskScore{
			HotelID: hotelID, City: city, CheckIn: checkIn,
			Score:          50,
			Level:          domain.RiskMedium,
			Reasons:        []string{fmt.Sprintf("only %d recent observations", len(recent))},
			Recommendation: "Not enough price history yet; check back after the next crawl cycle.",
			ComputedAt:     r.now(),
		}, nil
	}

	var reasons []string

	av, avReasons := availabilityFactor(recent)
	reasons = append(reasons, avReasons...)

	rooms := roomsFactor(recent[0].RoomsLeft)
	if recent[0].RoomsLeft != nil && *recent[0].RoomsLeft <= 2 {
		reasons = append(reasons, fmt.Sprintf("only %d rooms left", *recent[0].RoomsLeft))
	}

	trend := trendFactor(recent)
	if trend >= 0.7 {
		reasons = append(reasons, "prices rising")
	}

	urgency := urgencyFactor(r.now(), checkIn)
	if urgency >= 0.8 {
		reasons = append(reasons, "check-in less than a week away")
	}

	season := r.seasonFactor(checkIn, &reasons)

	raw := wAvailability*av + wRoomsLeft*rooms + wPriceTrend*trend + wUrgency*urgency + wSeason*season
	score := int(math.Round(raw * 100))
	if score > 100 {
		score = 100
	}

	level := levelFor(score)
	return domain.RiskScore{
		HotelID: hotelID, City: city, CheckIn: checkIn,
		Score:          score,
		Level:          level,
		Reasons:        reasons,
		Recommendation: recommendationFor(level),
		ComputedAt:     r.now(),
	}, nil
}

// availabilityFactor blends the newest status with the fraction of recent
// observations that were constrained, so a tightening trend scores higher
// than a single bad reading.
func availabilityFactor(recent []domain.Offer) (float64, []string) {
	statusScore := map[domain.AvailabilityStatus]float64{
		domain.Available: 0.10,
		domain.Limited:   0.50,
		domain.LastRooms: 0.80,
		domain.SoldOut:   1.00,
		domain.UnknownAv: 0.50,
	}

	latest := statusScore[recent[0].Status]

	constrained := 0
	for _, o := range recent {
		if o.Status != domain.Available && o.Status != domain.UnknownAv {
			constrained++
		}
	}
	frac := float64(constrained) / float64(len(recent))

	f := 0.6*latest + 0.4*frac

	var reasons []string
	switch recent[0].Status {
	case domain.SoldOut:
		reasons = append(reasons, "latest fetch reported sold out")
	case domain.LastRooms:
		reasons = append(reasons, "last rooms reported")
	case domain.Limited:
		reasons = append(reasons, "limited availability reported")
	}
	// a recent sold-out reading keeps pressure on even after recovery
	for _, o := range recent[:minInt(3, len(recent))] {
		if o.Status == domain.SoldOut && recent[0].Status != domain.SoldOut {
			f = math.Min(1, f+0.2)
			reasons = append(reasons, "sold out in a recent fetch")
			break
		}
	}
	return f, reasons
}

func roomsFactor(roomsLeft *int) float64 {
	if roomsLeft == nil {
		return 0.5
	}
	switch {
	case *roomsLeft <= 2:
		return 1.0
	case *roomsLeft <= 5:
		return 0.7
	case *roomsLeft <= 10:
		return 0.4
	default:
		return 0.1
	}
}

// trendFactor compares newest vs oldest price in the window.
func trendFactor(recent []domain.Offer) float64 {
	if len(recent) < 2 {
		return 0.2
	}
	newest := recent[0].Total
	oldest := recent[len(recent)-1].Total
	if oldest <= 0 {
		return 0.2
	}
	pct := (newest - oldest) / oldest * 100
	switch {
	case pct > 10:
		return 1.0
	case pct > 3:
		return 0.7
	case pct > 0:
		return 0.5
	default:
		return 0.2
	}
}

func urgencyFactor(now, checkIn time.Time) float64 {
	days := int(checkIn.Sub(now).Hours() / 24)
	switch {
	case days <= 3:
		return 1.0
	case days <= 7:
		return 0.8
	case days <= 14:
		return 0.6
	case days <= 30:
		return 0.4
	default:
		return 0.1
	}
}

func (r *RiskScorer) seasonFactor(checkIn time.Time, reasons *[]string) float64 {
	for _, s := range r.cfg.Seasons {
		if !checkIn.Before(s.From) && !checkIn.After(s.To) {
			*reasons = append(*reasons, "check-in falls in "+s.Name)
			f := s.Weight - 1
			if f < 0 {
				f = 0
			}
			if f > 1 {
				f = 1
			}
			return f
		}
	}
	return 0
}

func levelFor(score int) domain.RiskLevel {
	switch {
	case score < 40:
		return domain.RiskLow
	case score < 70:
		return domain.RiskMedium
	case score < 85:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

func recommendationFor(level domain.RiskLevel) string {
	switch level {
	case domain.RiskLow:
		return "Plenty of availability; safe to keep comparing prices."
	case domain.RiskMedium:
		return "Some booking pressure; lock a refundable rate if the dates are fixed."
	case domain.RiskHigh:
		return "Availability is tightening fast; book soon to avoid higher prices."
	default:
		return "Almost sold out for these dates; book immediately or pick backup dates."
	}
}
