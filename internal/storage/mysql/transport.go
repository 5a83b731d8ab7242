package mysql

import (
	"context"
	"database/sql"

	"umrah_prices/internal/domain"
)

// ReplaceSchedule swaps the operator's snapshot atomically so readers never
// see a half-written schedule.
func (r *Repo) ReplaceSchedule(ctx context.Context, operator string, options []domain.TransportOption) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteTransportSQL, operator); err != nil {
		return err
	}
	for _, o := range options {
		if _, err := tx.ExecContext(ctx, insertTransportSQL,
			o.Operator,
			o.Mode,
			o.FromCity,
			o.ToCity,
			o.Depart,
			o.Arrive,
			o.DurationMin,
			valF64(o.Price),
			valStr(o.Class),
			o.Available,
			o.FetchedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) ListTransport(ctx context.Context, from, to string) ([]domain.TransportOption, error) {
	rows, err := r.db.QueryContext(ctx, listTransportSQL, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TransportOption
	for rows.Next() {
		var o domain.TransportOption
		var price sql.NullFloat64
		var class sql.NullString
		if err := rows.Scan(
			&o.ID,
			&o.Operator,
			&o.Mode,
			&o.FromCity,
			&o.ToCity,
			&o.Depart,
			&o.Arrive,
			&o.DurationMin,
			&price,
			&class,
			&o.Available,
			&o.FetchedAt,
		); err != nil {
			return nil, err
		}
		if price.Valid {
			f := price.Float64
			o.Price = &f
		}
		if class.Valid {
			s := class.String
			o.Class = &s
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
