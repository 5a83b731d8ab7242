package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"

	"umrah_prices/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func isDuplicateKey(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- hotels ----

func (r *Repo) CreateHotel(ctx context.Context, h domain.CanonicalHotel) (int64, error) {
	amen, _ := json.Marshal(h.Amenities)
	var lat, lon any
	if h.Coords != nil {
		lat, lon = h.Coords.Lat, h.Coords.Lon
	}
	res, err := r.db.ExecContext(ctx, insertHotelSQL,
		h.Name,
		h.NormalizedName,
		h.City,
		lat, lon,
		valInt(h.Stars),
		string(amen),
		valInt(h.DistanceToHaramM),
		valInt(h.WalkingTimeMin),
		h.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return 0, domain.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) EnrichHotel(ctx context.Context, h domain.CanonicalHotel) error {
	var amen any
	if len(h.Amenities) > 0 {
		b, _ := json.Marshal(h.Amenities)
		amen = string(b)
	}
	var lat, lon any
	if h.Coords != nil {
		lat, lon = h.Coords.Lat, h.Coords.Lon
	}
	_, err := r.db.ExecContext(ctx, enrichHotelSQL,
		lat, lon,
		valInt(h.Stars),
		amen,
		valInt(h.DistanceToHaramM),
		valInt(h.WalkingTimeMin),
		h.UpdatedAt,
		h.ID,
	)
	return err
}

func (r *Repo) GetHotel(ctx context.Context, id int64) (domain.CanonicalHotel, error) {
	return scanHotel(r.db.QueryRowContext(ctx, getHotelSQL, id))
}

func (r *Repo) GetHotelByName(ctx context.Context, city, normalizedName string) (domain.CanonicalHotel, error) {
	return scanHotel(r.db.QueryRowContext(ctx, getHotelByNameSQL, city, normalizedName))
}

func (r *Repo) ListHotelsByCity(ctx context.Context, city string) ([]domain.CanonicalHotel, error) {
	rows, err := r.db.QueryContext(ctx, listHotelsByCitySQL, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CanonicalHotel
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanHotel(row rowScanner) (domain.CanonicalHotel, error) {
	var h domain.CanonicalHotel
	var lat, lon sql.NullFloat64
	var stars, dist, walk sql.NullInt64
	var amenities []byte

	err := row.Scan(
		&h.ID,
		&h.Name,
		&h.NormalizedName,
		&h.City,
		&lat, &lon,
		&stars,
		&amenities,
		&dist,
		&walk,
		&h.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.CanonicalHotel{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CanonicalHotel{}, err
	}

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
	return h, nil
}

// ---- provider mappings ----

func (r *Repo) GetMapping(ctx context.Context, provider, providerHotelID string) (domain.ProviderMapping, error) {
	var m domain.ProviderMapping
	err := r.db.QueryRowContext(ctx, getMappingSQL, provider, providerHotelID).Scan(
		&m.Provider,
		&m.ProviderHotelID,
		&m.HotelID,
		&m.Confidence,
		&m.NeedsReview,
		&m.Disagreements,
		&m.LastSeen,
	)
	if err == sql.ErrNoRows {
		return domain.ProviderMapping{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ProviderMapping{}, err
	}
	return m, nil
}

func (r *Repo) BindMapping(ctx context.Context, m domain.ProviderMapping) error {
	_, err := r.db.ExecContext(ctx, upsertMappingSQL,
		m.Provider,
		m.ProviderHotelID,
		m.HotelID,
		m.Confidence,
		m.NeedsReview,
		m.Disagreements,
		m.LastSeen,
	)
	return err
}

func (r *Repo) TouchMapping(ctx context.Context, provider, providerHotelID string, confidence, disagreements int, needsReview bool) error {
	res, err := r.db.ExecContext(ctx, touchMappingSQL,
		confidence, disagreements, needsReview, provider, providerHotelID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// mapping may exist with identical values; distinguish via lookup
		if _, gerr := r.GetMapping(ctx, provider, providerHotelID); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (r *Repo) ConfirmMapping(ctx context.Context, provider, providerHotelID string) error {
	res, err := r.db.ExecContext(ctx, confirmMappingSQL, provider, providerHotelID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := r.GetMapping(ctx, provider, providerHotelID); gerr != nil {
			return gerr
		}
	}
	return nil
}
