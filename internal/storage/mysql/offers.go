package mysql

import (
	"context"
	"database/sql"
	"time"

	"umrah_prices/internal/domain"
)

func (r *Repo) InsertOffer(ctx context.Context, o domain.Offer) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertOfferSQL,
		o.HotelID,
		o.Provider,
		o.City,
		o.CheckIn,
		o.CheckOut,
		o.Adults,
		o.Children,
		valStr(o.RoomType),
		valStr(o.BoardType),
		o.Currency,
		o.Total,
		valF64(o.PerNight),
		valF64(o.Taxes),
		valF64(o.TotalIDR),
		valInt(o.RoomsLeft),
		string(o.Status),
		o.FetchedAt,
		valJSON(o.RawPayload),
		o.SchemaVersion,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) ListOffers(ctx context.Context, hotelID int64, limit int) ([]domain.Offer, error) {
	return r.queryOffers(ctx, listOffersSQL, hotelID, limit)
}

func (r *Repo) RecentOffers(ctx context.Context, hotelID int64, checkIn time.Time, limit int) ([]domain.Offer, error) {
	return r.queryOffers(ctx, recentOffersSQL, hotelID, checkIn, limit)
}

func (r *Repo) queryOffers(ctx context.Context, query string, args ...any) ([]domain.Offer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOffer(row rowScanner) (domain.Offer, error) {
	var o domain.Offer
	var roomType, boardType sql.NullString
	var perNight, taxes, totalIDR sql.NullFloat64
	var roomsLeft sql.NullInt64
	var status string
	var raw []byte

	err := row.Scan(
		&o.ID,
		&o.HotelID,
		&o.Provider,
		&o.City,
		&o.CheckIn,
		&o.CheckOut,
		&o.Adults,
		&o.Children,
		&roomType,
		&boardType,
		&o.Currency,
		&o.Total,
		&perNight,
		&taxes,
		&totalIDR,
		&roomsLeft,
		&status,
		&o.FetchedAt,
		&raw,
		&o.SchemaVersion,
	)
	if err != nil {
		return domain.Offer{}, err
	}

	if roomType.Valid {
		s := roomType.String
		o.RoomType = &s
	}
	if boardType.Valid {
		s := boardType.String
		o.BoardType = &s
	}
	if perNight.Valid {
		f := perNight.Float64
		o.PerNight = &f
	}
	if taxes.Valid {
		f := taxes.Float64
		o.Taxes = &f
	}
	if totalIDR.Valid {
		f := totalIDR.Float64
		o.TotalIDR = &f
	}
	if roomsLeft.Valid {
		n := int(roomsLeft.Int64)
		o.RoomsLeft = &n
	}
	o.Status = domain.AvailabilityStatus(status)
	if len(raw) > 0 {
		o.RawPayload = append([]byte(nil), raw...)
	}
	return o, nil
}

// ---- price history ----

func (r *Repo) InsertHistoryPoint(ctx context.Context, p domain.PriceHistoryPoint) error {
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		p.HotelID,
		p.Provider,
		p.CheckIn,
		p.Price,
		string(p.Status),
		p.RecordedAt,
		valF64(p.ChangePercent),
	)
	return err
}

func (r *Repo) LatestHistoryPoint(ctx context.Context, hotelID int64, provider string, checkIn time.Time) (domain.PriceHistoryPoint, error) {
	p, err := scanHistory(r.db.QueryRowContext(ctx, latestHistorySQL, hotelID, provider, checkIn))
	if err == sql.ErrNoRows {
		return domain.PriceHistoryPoint{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) ListHistory(ctx context.Context, hotelID int64, since time.Time) ([]domain.PriceHistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx, listHistorySQL, hotelID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceHistoryPoint
	for rows.Next() {
		p, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanHistory(row rowScanner) (domain.PriceHistoryPoint, error) {
	var p domain.PriceHistoryPoint
	var status string
	var change sql.NullFloat64

	err := row.Scan(
		&p.ID,
		&p.HotelID,
		&p.Provider,
		&p.CheckIn,
		&p.Price,
		&status,
		&p.RecordedAt,
		&change,
	)
	if err != nil {
		return domain.PriceHistoryPoint{}, err
	}
	p.Status = domain.AvailabilityStatus(status)
	if change.Valid {
		f := change.Float64
		p.ChangePercent = &f
	}
	return p, nil
}

// Calendar aggregates per check-in day: minimum price across providers and
// the availability from the freshest observation.
func (r *Repo) Calendar(ctx context.Context, hotelID int64, from, to time.Time) ([]domain.CalendarDay, error) {
	offers, err := r.queryOffers(ctx, calendarOffersSQL, hotelID, from, to)
	if err != nil {
		return nil, err
	}

	type agg struct {
		min    float64
		status domain.AvailabilityStatus
		seen   bool
	}
	days := make(map[string]*agg)
	for _, o := range offers {
		k := o.CheckIn.Format("2006-01-02")
		a, ok := days[k]
		if !ok {
			// rows arrive freshest-first per day, so the first row wins status
			days[k] = &agg{min: o.Total, status: o.Status, seen: true}
			continue
		}
		if o.Total < a.min {
			a.min = o.Total
		}
	}

	var out []domain.CalendarDay
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		day := domain.CalendarDay{Date: d, Status: domain.UnknownAv}
		if a, ok := days[d.Format("2006-01-02")]; ok && a.seen {
			m := a.min
			day.MinPrice = &m
			day.Status = a.status
		}
		out = append(out, day)
	}
	return out, nil
}
