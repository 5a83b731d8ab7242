package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"umrah_prices/internal/domain"
)

func riskOffer(hotelID int64, checkIn time.Time, total float64, status domain.AvailabilityStatus, roomsLeft *int) domain.Offer {
	return domain.Offer{
		HotelID:   hotelID,
		Provider:  "xotelo",
		City:      domain.CityMakkah,
		CheckIn:   checkIn,
		Currency:  "SAR",
		Total:     total,
		RoomsLeft: roomsLeft,
		Status:    status,
		FetchedAt: time.Now(),
	}
}

func TestRiskScorer_EscalatesAsAvailabilityTightens(t *testing.T) {
	repo := newFakeOfferRepo()
	now := mustDate("2026-09-01")
	checkIn := mustDate("2026-09-11")

	s := NewRiskScorer(repo, RiskConfig{MinObservations: 1, RecentLimit: 20})
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := repo.InsertOffer(ctx, riskOffer(1, checkIn, 1000, domain.Available, nil))
	require.NoError(t, err)
	first, err := s.Compute(ctx, 1, domain.CityMakkah, checkIn)
	require.NoError(t, err)

	_, err = repo.InsertOffer(ctx, riskOffer(1, checkIn, 1100, domain.Limited, ptrI(4)))
	require.NoError(t, err)
	second, err := s.Compute(ctx, 1, domain.CityMakkah, checkIn)
	require.NoError(t, err)

	_, err = repo.InsertOffer(ctx, riskOffer(1, checkIn, 1250, domain.SoldOut, ptrI(0)))
	require.NoError(t, err)
	third, err := s.Compute(ctx, 1, domain.CityMakkah, checkIn)
	require.NoError(t, err)

	require.Less(t, first.Score, second.Score, "limited must outscore available")
	require.Less(t, second.Score, third.Score, "sold out must outscore limited")
	require.Equal(t, domain.RiskLow, first.Level)
	require.NotEqual(t, domain.RiskLow, third.Level)
	require.NotEmpty(t, third.Reasons)
	require.NotEmpty(t, third.Recommendation)
}

func TestRiskScorer_SparseHistoryIsNeutral(t *testing.T) {
	repo := newFakeOfferRepo()
	checkIn := mustDate("2026-09-11")

	s := NewRiskScorer(repo, DefaultRiskConfig())
	ctx := context.Background()

	_, err := repo.InsertOffer(ctx, riskOffer(1, checkIn, 1000, domain.SoldOut, ptrI(0)))
	require.NoError(t, err)

	got, err := s.Compute(ctx, 1, domain.CityMakkah, checkIn)
	require.NoError(t, err)
	require.Equal(t, 50, got.Score)
	require.Equal(t, domain.RiskMedium, got.Level)
	require.NotEmpty(t, got.Reasons)
}

func TestRiskScorer_SeasonRaisesScore(t *testing.T) {
	repo := newFakeOfferRepo()
	now := mustDate("2026-02-01")
	checkIn := mustDate("2026-03-05")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.InsertOffer(ctx, riskOffer(1, checkIn, 900, domain.Limited, ptrI(5)))
		require.NoError(t, err)
	}

	off := NewRiskScorer(repo, RiskConfig{MinObservations: 1})
	off.now = func() time.Time { return now }
	base, err := off.Compute(ctx, 1, domain.CityMakkah, checkIn)
	require.NoError(t, err)

	on := NewRiskScorer(repo, RiskConfig{
		MinObservations: 1,
		Seasons: []SeasonWindow{
			{Name: "Ramadan", From: mustDate("2026-02-18"), To: mustDate("2026-03-20"), Weight: 2.0},
		},
	})
	on.now = func() time.Time { return now }
	peak, err := on.Compute(ctx, 1, domain.CityMakkah, checkIn)
	require.NoError(t, err)

	require.Greater(t, peak.Score, base.Score)
	require.Contains(t, peak.Reasons, "check-in falls in Ramadan")
}

func TestRiskLevels(t *testing.T) {
	require.Equal(t, domain.RiskLow, levelFor(39))
	require.Equal(t, domain.RiskMedium, levelFor(40))
	require.Equal(t, domain.RiskMedium, levelFor(69))
	require.Equal(t, domain.RiskHigh, levelFor(70))
	require.Equal(t, domain.RiskHigh, levelFor(84))
	require.Equal(t, domain.RiskCritical, levelFor(85))
}
