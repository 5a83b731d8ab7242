package mysql

import (
	"context"
	"database/sql"
	"time"

	"umrah_prices/internal/domain"
)

func (r *Repo) Enqueue(ctx context.Context, job domain.CrawlJob) (bool, error) {
	res, err := r.db.ExecContext(ctx, enqueueJobSQL,
		job.ID,
		job.Type,
		valJSON(job.Payload),
		job.Fingerprint,
		job.RunAt,
		job.Fingerprint,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DequeueReady claims due jobs inside one transaction: select with
// SKIP LOCKED, flip to running, commit. A crashed worker leaves rows in
// running; operators requeue them through the ops surface.
func (r *Repo) DequeueReady(ctx context.Context, limit int) ([]domain.CrawlJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, claimJobsSQL, limit)
	if err != nil {
		return nil, err
	}
	var claimed []domain.CrawlJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, j)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range claimed {
		if _, err := tx.ExecContext(ctx, markRunningSQL, claimed[i].ID); err != nil {
			return nil, err
		}
		claimed[i].Status = domain.JobRunning
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *Repo) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, markDoneSQL, id)
	return err
}

func (r *Repo) Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastErr string) error {
	_, err := r.db.ExecContext(ctx, rescheduleJobSQL, runAt, attempts, lastErr, id)
	return err
}

func (r *Repo) MarkFailed(ctx context.Context, id string, lastErr string) error {
	_, err := r.db.ExecContext(ctx, markFailedSQL, lastErr, id)
	return err
}

func (r *Repo) RequeueFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, requeueFailedSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := r.GetJob(ctx, id); gerr != nil {
			return gerr
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *Repo) GetJob(ctx context.Context, id string) (domain.CrawlJob, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, getJobSQL, id))
	if err == sql.ErrNoRows {
		return domain.CrawlJob{}, domain.ErrNotFound
	}
	return j, err
}

func (r *Repo) GetJobByFingerprint(ctx context.Context, fingerprint string) (domain.CrawlJob, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, getJobByFingerprintSQL, fingerprint))
	if err == sql.ErrNoRows {
		return domain.CrawlJob{}, domain.ErrNotFound
	}
	return j, err
}

func (r *Repo) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.CrawlJob, error) {
	rows, err := r.db.QueryContext(ctx, listJobsSQL, string(status), string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CrawlJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (domain.CrawlJob, error) {
	var j domain.CrawlJob
	var payload []byte
	var status string
	var lastErr sql.NullString

	err := row.Scan(
		&j.ID,
		&j.Type,
		&payload,
		&j.Fingerprint,
		&status,
		&j.RunAt,
		&j.Attempts,
		&lastErr,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return domain.CrawlJob{}, err
	}
	j.Status = domain.JobStatus(status)
	if len(payload) > 0 {
		j.Payload = append([]byte(nil), payload...)
	}
	if lastErr.Valid {
		s := lastErr.String
		j.LastError = &s
	}
	return j, nil
}

// ---- crawl audit log ----

func (r *Repo) AppendLog(ctx context.Context, l domain.CrawlLog) error {
	_, err := r.db.ExecContext(ctx, insertCrawlLogSQL,
		l.JobID,
		l.Provider,
		l.OK,
		l.HTTPCode,
		l.LatencyMS,
		valStr(l.Error),
		l.CreatedAt,
	)
	return err
}

func (r *Repo) ProviderHealth(ctx context.Context, since time.Time) ([]domain.ProviderHealth, error) {
	rows, err := r.db.QueryContext(ctx, providerHealthSQL, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProviderHealth
	for rows.Next() {
		var h domain.ProviderHealth
		var avg sql.NullFloat64
		var last sql.NullTime
		if err := rows.Scan(&h.Provider, &h.Calls, &h.Failures, &avg, &last); err != nil {
			return nil, err
		}
		if avg.Valid {
			h.AvgLatencyMS = avg.Float64
		}
		if last.Valid {
			t := last.Time
			h.LastCall = &t
		}
		if h.Calls > 0 {
			h.SuccessRate = float64(h.Calls-h.Failures) / float64(h.Calls)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
