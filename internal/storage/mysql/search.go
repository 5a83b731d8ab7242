package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"

	"umrah_prices/internal/domain"
)

var dialect = goqu.Dialect("mysql")

// SearchBestOffers builds the filtered offer/hotel join dynamically and
// collapses it to the latest available offer per (hotel, provider) in memory. The
// result is cheapest-hotel-first with the cross-provider minimum on each row.
func (r *Repo) SearchBestOffers(ctx context.Context, q domain.SearchQuery) ([]domain.HotelBestPrice, error) {
	ds := dialect.
		From(goqu.T("offers").As("o")).
		Join(goqu.T("hotels").As("h"), goqu.On(goqu.I("h.id").Eq(goqu.I("o.hotel_id")))).
		Select(
			goqu.I("o.id"), goqu.I("o.hotel_id"), goqu.I("o.provider"), goqu.I("o.city"),
			goqu.I("o.check_in"), goqu.I("o.check_out"), goqu.I("o.adults"), goqu.I("o.children"),
			goqu.I("o.room_type"), goqu.I("o.board_type"), goqu.I("o.currency"),
			goqu.I("o.total"), goqu.I("o.per_night"), goqu.I("o.taxes"), goqu.I("o.total_idr"),
			goqu.I("o.rooms_left"), goqu.I("o.status"), goqu.I("o.fetched_at"),
			goqu.I("h.name"), goqu.I("h.normalized_name"), goqu.I("h.lat"), goqu.I("h.lon"),
			goqu.I("h.stars"), goqu.I("h.amenities"), goqu.I("h.distance_to_haram_m"),
			goqu.I("h.walking_time_min"), goqu.I("h.updated_at"),
		).
		Where(
			goqu.I("o.city").Eq(q.City),
			goqu.I("o.check_in").Eq(q.CheckIn),
			// best-price rows are bookable: sold_out and unknown observations
			// never participate, so each provider contributes its most
			// recent still-available quote
			goqu.I("o.status").In(
				string(domain.Available), string(domain.Limited), string(domain.LastRooms),
			),
		).
		Order(
			goqu.I("o.hotel_id").Asc(),
			goqu.I("o.provider").Asc(),
			goqu.I("o.fetched_at").Desc(),
			goqu.I("o.id").Desc(),
		)

	if !q.CheckOut.IsZero() {
		ds = ds.Where(goqu.I("o.check_out").Eq(q.CheckOut))
	}
	if q.Adults > 0 {
		ds = ds.Where(goqu.I("o.adults").Eq(q.Adults))
	}
	if q.Currency != "" {
		ds = ds.Where(goqu.I("o.currency").Eq(q.Currency))
	}
	if q.MinStars != nil {
		ds = ds.Where(goqu.I("h.stars").Gte(*q.MinStars))
	}
	if q.MaxPrice != nil {
		ds = ds.Where(goqu.I("o.total").Lte(*q.MaxPrice))
	}

	sqlStr, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct {
		hotel    int64
		provider string
	}
	seen := make(map[key]bool)
	byHotel := make(map[int64]*domain.HotelBestPrice)
	var order []int64

	for rows.Next() {
		o, h, err := scanSearchRow(rows)
		if err != nil {
			return nil, err
		}
		// rows are sorted freshest-first within (hotel, provider): keep one
		k := key{o.HotelID, o.Provider}
		if seen[k] {
			continue
		}
		seen[k] = true

		row, ok := byHotel[o.HotelID]
		if !ok {
			row = &domain.HotelBestPrice{Hotel: h, MinPrice: o.Total, Currency: o.Currency}
			byHotel[o.HotelID] = row
			order = append(order, o.HotelID)
		}
		row.Offers = append(row.Offers, o)
		if o.Total < row.MinPrice {
			row.MinPrice = o.Total
		}
		if o.FetchedAt.After(row.FetchedAt) {
			row.FetchedAt = o.FetchedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.HotelBestPrice, 0, len(order))
	for _, id := range order {
		row := byHotel[id]
		sort.Slice(row.Offers, func(i, j int) bool { return row.Offers[i].Total < row.Offers[j].Total })
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinPrice < out[j].MinPrice })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func scanSearchRow(row rowScanner) (domain.Offer, domain.CanonicalHotel, error) {
	var o domain.Offer
	var h domain.CanonicalHotel
	var roomType, boardType sql.NullString
	var perNight, taxes, totalIDR sql.NullFloat64
	var roomsLeft sql.NullInt64
	var status string
	var lat, lon sql.NullFloat64
	var stars, dist, walk sql.NullInt64
	var amenities []byte

	err := row.Scan(
		&o.ID, &o.HotelID, &o.Provider, &o.City,
		&o.CheckIn, &o.CheckOut, &o.Adults, &o.Children,
		&roomType, &boardType, &o.Currency,
		&o.Total, &perNight, &taxes, &totalIDR,
		&roomsLeft, &status, &o.FetchedAt,
		&h.Name, &h.NormalizedName, &lat, &lon,
		&stars, &amenities, &dist,
		&walk, &h.UpdatedAt,
	)
	if err != nil {
		return domain.Offer{}, domain.CanonicalHotel{}, err
	}

	h.ID = o.HotelID
	h.City = o.City
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
	if lat.Valid && lon.Valid {
		h.Coords = &domain.Coords{Lat: lat.Float64, Lon: lon.Float64}
	}
	if stars.Valid {
		s := int(stars.Int64)
		h.Stars = &s
	}
	if dist.Valid {
		d := int(dist.Int64)
		h.DistanceToHaramM = &d
	}
	if walk.Valid {
		w := int(walk.Int64)
		h.WalkingTimeMin = &w
	}
	_ = json.Unmarshal(amenities, &h.Amenities)
	return o, h, nil
}
