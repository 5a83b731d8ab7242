package app

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"umrah_prices/internal/adapters/observability"
	"umrah_prices/internal/domain"
)

// JobRunner executes one claimed crawl job. The error (classified with the
// domain taxonomy) decides retry vs terminal failure.
type JobRunner interface {
	Run(ctx context.Context, job domain.CrawlJob) (CrawlOutcome, error)
}

// CrawlOutcome feeds the per-call audit log.
type CrawlOutcome struct {
	Provider string
	Items    int
}

type SchedulerConfig struct {
	PollEvery   time.Duration
	Workers     int64
	JobTimeout  time.Duration
	BatchSize   int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// MaxJobAge bounds total retry wall-clock from job creation. A job that
	// keeps failing transiently is closed out once it goes stale.
	MaxJobAge time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollEvery:   5 * time.Second,
		Workers:     4,
		JobTimeout:  90 * time.Second,
		BatchSize:   10,
		MaxRetries:  5,
		BackoffBase: 2 * time.Second,
		BackoffCap:  5 * time.Minute,
		MaxJobAge:   time.Hour,
	}
}

// Scheduler owns the durable crawl queue: idempotent enqueue, atomic claim,
// bounded parallel execution and retry with exponential backoff.
type Scheduler struct {
	jobs   domain.JobRepository
	runner JobRunner
	cfg    SchedulerConfig
	sem    *semaphore.Weighted
	log    zerolog.Logger
	now    func() time.Time
}

func NewScheduler(jobs domain.JobRepository, runner JobRunner, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Scheduler{
		jobs:   jobs,
		runner: runner,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.Workers),
		log:    log.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Enqueue queues a (type, payload) pair for runAt. Returns false without
// error when an identical job is already queued or running; the job returned
// in that case is the live duplicate, not the rejected candidate.
func (s *Scheduler) Enqueue(ctx context.Context, jobType string, payload any, runAt time.Time) (domain.CrawlJob, bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.CrawlJob{}, false, err
	}
	fingerprint := domain.JobFingerprint(jobType, raw)

	// two passes cover the duplicate finishing between insert and lookup
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now()
		job := domain.CrawlJob{
			ID:          uuid.NewString(),
			Type:        jobType,
			Payload:     raw,
			Fingerprint: fingerprint,
			Status:      domain.JobQueued,
			RunAt:       runAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created, err := s.jobs.Enqueue(ctx, job)
		if err != nil {
			return domain.CrawlJob{}, false, err
		}
		if created {
			return job, true, nil
		}

		existing, err := s.jobs.GetJobByFingerprint(ctx, fingerprint)
		if err == nil {
			s.log.Debug().Str("type", jobType).Str("fingerprint", fingerprint).Msg("duplicate job skipped")
			observability.ObserveJob(jobType, "deduplicated")
			return existing, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.CrawlJob{}, false, err
		}
	}
	return domain.CrawlJob{}, false, domain.ErrConflict
}

// Run polls for due jobs until ctx is cancelled. It blocks; callers start it
// in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Int64("workers", s.cfg.Workers).Dur("poll_every", s.cfg.PollEvery).Msg("scheduler started")
	ticker := time.NewTicker(s.cfg.PollEvery)
	defer ticker.Stop()

	for {
		s.drain(ctx)
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// drain claims one batch of due jobs and dispatches them to the worker pool.
func (s *Scheduler) drain(ctx context.Context) {
	jobs, err := s.jobs.DequeueReady(ctx, s.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("dequeue failed")
		}
		return
	}
	for _, job := range jobs {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		job := job
		go func() {
			defer s.sem.Release(1)
			s.execute(ctx, job)
		}()
	}
}

func (s *Scheduler) execute(ctx context.Context, job domain.CrawlJob) {
	start := s.now()

	runCtx := ctx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	outcome, err := s.runner.Run(runCtx, job)
	if errors.Is(err, context.DeadlineExceeded) {
		err = domain.ErrTransient
	}
	latency := s.now().Sub(start)

	s.audit(ctx, job, outcome, err, latency)

	switch {
	case err == nil:
		if mErr := s.jobs.MarkDone(ctx, job.ID); mErr != nil {
			s.log.Error().Err(mErr).Str("job_id", job.ID).Msg("mark done failed")
		}
		observability.ObserveJob(job.Type, "done")
		s.log.Info().Str("job_id", job.ID).Str("type", job.Type).
			Int("items", outcome.Items).Dur("took", latency).Msg("job done")

	case !domain.Retryable(err):
		s.fail(ctx, job, err, "permanent error")

	case job.Attempts+1 >= s.cfg.MaxRetries:
		s.fail(ctx, job, err, "retries exhausted")

	case s.cfg.MaxJobAge > 0 && s.now().Sub(job.CreatedAt) > s.cfg.MaxJobAge:
		s.fail(ctx, job, err, "job too old to retry")

	default:
		delay := retryDelay(s.cfg.BackoffBase, s.cfg.BackoffCap, job.Attempts)
		runAt := s.now().Add(delay)
		if rErr := s.jobs.Reschedule(ctx, job.ID, runAt, job.Attempts+1, err.Error()); rErr != nil {
			s.log.Error().Err(rErr).Str("job_id", job.ID).Msg("reschedule failed")
			return
		}
		observability.ObserveJob(job.Type, "retried")
		s.log.Warn().Err(err).Str("job_id", job.ID).Str("type", job.Type).
			Int("attempt", job.Attempts+1).Dur("retry_in", delay).Msg("job rescheduled")
	}
}

func (s *Scheduler) fail(ctx context.Context, job domain.CrawlJob, err error, why string) {
	if mErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
		s.log.Error().Err(mErr).Str("job_id", job.ID).Msg("mark failed failed")
	}
	observability.ObserveJob(job.Type, "failed")
	s.log.Error().Err(err).Str("job_id", job.ID).Str("type", job.Type).
		Int("attempts", job.Attempts+1).Msg("job failed: " + why)
}

func (s *Scheduler) audit(ctx context.Context, job domain.CrawlJob, outcome CrawlOutcome, err error, latency time.Duration) {
	l := domain.CrawlLog{
		JobID:     job.ID,
		Provider:  outcome.Provider,
		OK:        err == nil,
		HTTPCode:  httpCodeFor(err),
		LatencyMS: latency.Milliseconds(),
		CreatedAt: s.now(),
	}
	if err != nil {
		msg := err.Error()
		l.Error = &msg
	}
	if aErr := s.jobs.AppendLog(ctx, l); aErr != nil {
		s.log.Error().Err(aErr).Str("job_id", job.ID).Msg("append crawl log failed")
	}
}

// httpCodeFor maps the error taxonomy back to a representative status code
// for the audit log, where the concrete upstream code is out of reach.
func httpCodeFor(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, domain.ErrAuth):
		return 401
	case errors.Is(err, domain.ErrRateLimited):
		return 429
	case errors.Is(err, domain.ErrPermanent):
		return 400
	default:
		return 502
	}
}

// retryDelay is base*2^attempt capped, plus up to 25% jitter so a burst of
// failures does not re-land in one poll tick.
func retryDelay(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 2 * time.Second
	}
	d := base
	for i := 0; i < attempt && d < cap; i++ {
		d *= 2
	}
	if cap > 0 && d > cap {
		d = cap
	}
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(d)/4+1)); err == nil {
		d += time.Duration(n.Int64())
	}
	return d
}

// StartRecurring enqueues the standing crawl set on each cadence tick. The
// fingerprint check makes the tick idempotent when jobs outlive the period.
func (s *Scheduler) StartRecurring(ctx context.Context, every time.Duration, enqueue func(ctx context.Context) error) {
	if every <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		if err := enqueue(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("recurring enqueue failed")
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := enqueue(ctx); err != nil && ctx.Err() == nil {
					s.log.Error().Err(err).Msg("recurring enqueue failed")
				}
			}
		}
	}()
}
